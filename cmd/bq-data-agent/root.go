/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"bq-data-agent/internal/auth"
	"bq-data-agent/internal/config"
	"bq-data-agent/internal/executor"
	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/session"
	"bq-data-agent/internal/tools"
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	configFile     string
	envFile        string
	projectID      string
	dataset        string
	tables         string
	templatePath   string
	metadataSource string
	sampleRows     int
	logLevel       string
	accessToken    string

	// serve only
	httpMode  bool
	httpAddr  string
	tlsMode   bool
	certFile  string
	keyFile   string
	chainFile string
	noAuth    bool
	tokenFile string
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bq-data-agent",
		Short:         "Natural-language data agent for a BigQuery dataset",
		Long:          "Answers questions about one BigQuery dataset. The agent assembles dataset metadata, data profiles or sample rows, and worked examples into its instruction, and runs SQL through a single query tool.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (default: "+config.DefaultConfigFileName+" next to the binary)")
	flags.StringVar(&opts.envFile, "env-file", "", "Path to .env file (default: .env)")
	flags.StringVar(&opts.projectID, "project", "", "Google Cloud project id")
	flags.StringVar(&opts.dataset, "dataset", "", "BigQuery dataset name")
	flags.StringVar(&opts.tables, "tables", "", "Comma separated table names (default: all tables)")
	flags.StringVar(&opts.templatePath, "template", "", "Path to instruction template (default: embedded)")
	flags.StringVar(&opts.metadataSource, "metadata-source", "", "Table metadata source: dataplex or bigquery")
	flags.IntVar(&opts.sampleRows, "sample-rows", config.DefaultSampleRows, "Sample rows shown per table")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.accessToken, "access-token", "", "Delegated OAuth access token for queries (requires auth_id)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newInstructionsCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newConsoleCmd(opts))
	rootCmd.AddCommand(newTokenCmd(opts))

	return rootCmd
}

// cliFlags records which flags were set on the command line
func (o *rootOptions) cliFlags(fs *pflag.FlagSet) config.CLIFlags {
	var f config.CLIFlags
	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "config":
			f.ConfigFileSet, f.ConfigFile = true, o.configFile
		case "env-file":
			f.EnvFileSet, f.EnvFile = true, o.envFile
		case "project":
			f.ProjectIDSet, f.ProjectID = true, o.projectID
		case "dataset":
			f.DatasetSet, f.Dataset = true, o.dataset
		case "tables":
			f.TablesSet, f.Tables = true, o.tables
		case "template":
			f.TemplatePathSet, f.TemplatePath = true, o.templatePath
		case "metadata-source":
			f.MetadataSourceSet, f.MetadataSource = true, o.metadataSource
		case "sample-rows":
			f.SampleRowsSet, f.SampleRows = true, o.sampleRows
		case "log-level":
			f.LogLevelSet, f.LogLevel = true, o.logLevel
		case "http":
			f.HTTPEnabledSet, f.HTTPEnabled = true, o.httpMode
		case "addr":
			f.HTTPAddrSet, f.HTTPAddr = true, o.httpAddr
		case "tls":
			f.TLSEnabledSet, f.TLSEnabled = true, o.tlsMode
		case "cert":
			f.TLSCertSet, f.TLSCertFile = true, o.certFile
		case "key":
			f.TLSKeySet, f.TLSKeyFile = true, o.keyFile
		case "chain":
			f.TLSChainSet, f.TLSChainFile = true, o.chainFile
		case "no-auth":
			// Inverted because the flag is "no-auth"
			f.AuthEnabledSet, f.AuthEnabled = true, !o.noAuth
		case "token-file":
			f.AuthTokenSet, f.AuthTokenFile = true, o.tokenFile
		}
	})
	return f
}

// load resolves the configuration for cmd and applies its log level
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	flags := o.cliFlags(cmd.Flags())
	flags.DefaultTokenFile = auth.GetDefaultTokenPath(execPath)

	configPath := o.configFile
	if !flags.ConfigFileSet {
		configPath = config.GetDefaultConfigPath(execPath)
		if !config.ConfigFileExists(configPath) {
			configPath = ""
		}
	}

	cfg, err := config.LoadConfig(configPath, flags)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.Level())
	return cfg, nil
}

// localSession seeds a session with --access-token under the reserved key
func (o *rootOptions) localSession(cfg *config.Config, state *session.State) *session.State {
	if state == nil {
		state = session.NewState()
	}
	if o.accessToken == "" {
		return state
	}
	if cfg.Agent.AuthID == "" {
		logging.Warn("access_token_ignored", "agent", cfg.Agent.DisplayName, "reason", "auth_id is not configured")
		return state
	}
	state.Set(session.TokenKey(cfg.Agent.AuthID), o.accessToken)
	return state
}

// delegatedToken resolves --access-token through a local session, the same
// path tool calls take
func (o *rootOptions) delegatedToken(ctx context.Context, cfg *config.Config) *executor.DelegatedToken {
	state := o.localSession(cfg, nil)
	return tools.DelegatedToken(session.WithState(ctx, state), cfg.Agent.AuthID)
}
