/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/logging"
)

// Metadata sources for the table metadata section
const (
	MetadataSourceDataplex = "dataplex"
	MetadataSourceBigQuery = "bigquery"
)

const (
	DefaultModel            = "gemini-2.5-pro"
	DefaultDisplayName      = "DATA_AGENT"
	DefaultDescription      = "An agent that can answer questions about data in BigQuery."
	DefaultLocation         = "us-central1"
	DefaultSampleRows       = 3
	DefaultMaxPercentNull   = 90
	DefaultDelegationHeader = "X-Delegated-Authorization"
	DefaultConfigFileName   = "bq-data-agent.yaml"

	maxSampleRows = 100
)

// Config represents the complete agent configuration
type Config struct {
	// Agent identity and delegation settings
	Agent AgentConfig `yaml:"agent"`

	// Dataset scope
	BigQuery BigQueryConfig `yaml:"bigquery"`

	// Context assembly tuning
	Context ContextConfig `yaml:"context"`

	// HTTP server configuration
	HTTP HTTPConfig `yaml:"http"`

	LogLevel string `yaml:"log_level"`
}

// AgentConfig describes the agent as the hosting runtime sees it
type AgentConfig struct {
	Model       string `yaml:"model"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	// AuthID names the delegation flow; tokens live under "temp:<auth_id>"
	AuthID string `yaml:"auth_id"`
	// DelegationHeader carries the delegated bearer token on HTTP requests
	DelegationHeader string `yaml:"delegation_header"`
}

// BigQueryConfig holds the dataset coordinates
type BigQueryConfig struct {
	ProjectID     string   `yaml:"project_id"`
	ProjectNumber string   `yaml:"project_number"`
	Location      string   `yaml:"location"`
	Dataset       string   `yaml:"dataset"`
	Tables        []string `yaml:"tables"`
	ProfilesTable string   `yaml:"data_profiles_table"`
	FewShotTable  string   `yaml:"few_shot_examples_table"`
}

// ContextConfig controls how the instruction is assembled
type ContextConfig struct {
	TemplatePath   string  `yaml:"template_path"`   // empty uses the embedded template
	MetadataSource string  `yaml:"metadata_source"` // dataplex or bigquery
	SampleRows     int     `yaml:"sample_rows"`
	MaxPercentNull float64 `yaml:"max_percent_null"`
}

// HTTPConfig holds HTTP/HTTPS server settings
type HTTPConfig struct {
	Enabled bool       `yaml:"enabled"`
	Address string     `yaml:"address"`
	TLS     TLSConfig  `yaml:"tls"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds API token authentication settings
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TokenFile string `yaml:"token_file"`
}

// TLSConfig holds TLS/HTTPS settings
type TLSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	CertFile  string `yaml:"cert_file"`
	KeyFile   string `yaml:"key_file"`
	ChainFile string `yaml:"chain_file"`
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	EnvFile    string
	EnvFileSet bool

	// HTTP flags
	HTTPEnabled    bool
	HTTPEnabledSet bool
	HTTPAddr       string
	HTTPAddrSet    bool

	// TLS flags
	TLSEnabled    bool
	TLSEnabledSet bool
	TLSCertFile   string
	TLSCertSet    bool
	TLSKeyFile    string
	TLSKeySet     bool
	TLSChainFile  string
	TLSChainSet   bool

	// Auth flags
	AuthEnabled    bool
	AuthEnabledSet bool
	AuthTokenFile  string
	AuthTokenSet   bool
	// DefaultTokenFile is used when HTTP is enabled and nothing else names
	// a token file
	DefaultTokenFile string

	// Scope flags
	ProjectID    string
	ProjectIDSet bool
	Dataset      string
	DatasetSet   bool
	Tables       string
	TablesSet    bool

	// Context flags
	TemplatePath      string
	TemplatePathSet   bool
	MetadataSource    string
	MetadataSourceSet bool
	SampleRows        int
	SampleRowsSet     bool

	LogLevel    string
	LogLevelSet bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables (including those loaded from the .env file)
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// Only an explicitly requested file has to exist
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	envFile := envFilePath(cliFlags)
	if err := LoadEnvFile(envFile); err != nil && cliFlags.EnvFileSet {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	applyCLIFlags(cfg, cliFlags)

	if cfg.HTTP.Enabled && cfg.HTTP.Auth.TokenFile == "" {
		cfg.HTTP.Auth.TokenFile = cliFlags.DefaultTokenFile
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:            DefaultModel,
			DisplayName:      DefaultDisplayName,
			Description:      DefaultDescription,
			DelegationHeader: DefaultDelegationHeader,
		},
		BigQuery: BigQueryConfig{
			Location: DefaultLocation,
		},
		Context: ContextConfig{
			MetadataSource: MetadataSourceDataplex,
			SampleRows:     DefaultSampleRows,
			MaxPercentNull: DefaultMaxPercentNull,
		},
		HTTP: HTTPConfig{
			Address: ":8080",
			TLS: TLSConfig{
				CertFile: "./server.crt",
				KeyFile:  "./server.key",
			},
			Auth: AuthConfig{
				Enabled: true,
			},
		},
		LogLevel: "info",
	}
}

// loadConfigFile decodes a YAML file over the defaults, so keys absent
// from the file keep their default values
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return cfg, nil
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	// HTTP
	if flags.HTTPEnabledSet {
		cfg.HTTP.Enabled = flags.HTTPEnabled
	}
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}

	// TLS
	if flags.TLSEnabledSet {
		cfg.HTTP.TLS.Enabled = flags.TLSEnabled
	}
	if flags.TLSCertSet {
		cfg.HTTP.TLS.CertFile = flags.TLSCertFile
	}
	if flags.TLSKeySet {
		cfg.HTTP.TLS.KeyFile = flags.TLSKeyFile
	}
	if flags.TLSChainSet {
		cfg.HTTP.TLS.ChainFile = flags.TLSChainFile
	}

	// Auth
	if flags.AuthEnabledSet {
		cfg.HTTP.Auth.Enabled = flags.AuthEnabled
	}
	if flags.AuthTokenSet {
		cfg.HTTP.Auth.TokenFile = flags.AuthTokenFile
	}

	// Scope
	if flags.ProjectIDSet {
		cfg.BigQuery.ProjectID = flags.ProjectID
	}
	if flags.DatasetSet {
		cfg.BigQuery.Dataset = flags.Dataset
	}
	if flags.TablesSet {
		cfg.BigQuery.Tables = dataset.ParseTableNames(flags.Tables)
	}

	// Context
	if flags.TemplatePathSet {
		cfg.Context.TemplatePath = flags.TemplatePath
	}
	if flags.MetadataSourceSet {
		cfg.Context.MetadataSource = flags.MetadataSource
	}
	if flags.SampleRowsSet {
		cfg.Context.SampleRows = flags.SampleRows
	}

	if flags.LogLevelSet {
		cfg.LogLevel = flags.LogLevel
	}
}

// validateConfig checks if the configuration is valid. A missing project or
// dataset is allowed: the assembler degrades to placeholder text instead.
func validateConfig(cfg *Config) error {
	if cfg.HTTP.TLS.Enabled && !cfg.HTTP.Enabled {
		return fmt.Errorf("TLS requires HTTP mode to be enabled")
	}

	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertFile == "" {
			return fmt.Errorf("TLS certificate file is required when HTTPS is enabled")
		}
		if cfg.HTTP.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when HTTPS is enabled")
		}
	}

	if cfg.HTTP.Enabled && cfg.HTTP.Auth.Enabled && cfg.HTTP.Auth.TokenFile == "" {
		return fmt.Errorf("authentication token file is required when HTTP auth is enabled (use --no-auth to disable)")
	}

	if cfg.Context.SampleRows < 1 || cfg.Context.SampleRows > maxSampleRows {
		return fmt.Errorf("sample_rows must be between 1 and %d, got %d", maxSampleRows, cfg.Context.SampleRows)
	}

	switch cfg.Context.MetadataSource {
	case MetadataSourceDataplex, MetadataSourceBigQuery:
	default:
		return fmt.Errorf("metadata_source must be %q or %q, got %q",
			MetadataSourceDataplex, MetadataSourceBigQuery, cfg.Context.MetadataSource)
	}

	if cfg.Context.MaxPercentNull < 0 || cfg.Context.MaxPercentNull > 100 {
		return fmt.Errorf("max_percent_null must be between 0 and 100, got %v", cfg.Context.MaxPercentNull)
	}

	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return nil
}

// Scope returns the dataset scope shared by every component
func (c *Config) Scope() dataset.Scope {
	var tables []string
	if len(c.BigQuery.Tables) > 0 {
		tables = append(tables, c.BigQuery.Tables...)
	}
	return dataset.Scope{
		ProjectID:     c.BigQuery.ProjectID,
		DatasetID:     c.BigQuery.Dataset,
		Location:      c.BigQuery.Location,
		TableNames:    tables,
		ProfilesTable: c.BigQuery.ProfilesTable,
		FewShotTable:  c.BigQuery.FewShotTable,
	}
}

// Level returns the configured log level, falling back to INFO
func (c *Config) Level() logging.LogLevel {
	level, ok := logging.ParseLevel(c.LogLevel)
	if !ok {
		return logging.LevelInfo
	}
	return level
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/bq-data-agent/ first, then binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := filepath.Join("/etc/bq-data-agent", DefaultConfigFileName)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, DefaultConfigFileName)
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
