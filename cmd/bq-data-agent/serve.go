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
	"time"

	"github.com/spf13/cobra"

	"bq-data-agent/internal/agent"
	"bq-data-agent/internal/auth"
	"bq-data-agent/internal/config"
	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/mcp"
	"bq-data-agent/internal/prompts"
	"bq-data-agent/internal/resources"
	"bq-data-agent/internal/tools"
)

const tokenCleanupInterval = 5 * time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cmd.Context(), opts, cfg)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.httpMode, "http", false, "Enable HTTP transport mode (default: stdio)")
	flags.StringVar(&opts.httpAddr, "addr", "", "HTTP server address")
	flags.BoolVar(&opts.tlsMode, "tls", false, "Enable TLS/HTTPS (requires --http)")
	flags.StringVar(&opts.certFile, "cert", "", "Path to TLS certificate file")
	flags.StringVar(&opts.keyFile, "key", "", "Path to TLS key file")
	flags.StringVar(&opts.chainFile, "chain", "", "Path to TLS certificate chain file (optional)")
	flags.BoolVar(&opts.noAuth, "no-auth", false, "Disable API token authentication in HTTP mode")
	flags.StringVar(&opts.tokenFile, "token-file", "", "Path to API token file")

	return cmd
}

// newMCPServer wires the agent's tool, prompt and resources into a server
func newMCPServer(a *agent.Agent) *mcp.Server {
	toolRegistry := tools.NewRegistry()
	toolRegistry.Register(tools.BigQueryQueryTool(a))

	promptRegistry := prompts.NewRegistry()
	promptRegistry.Register(prompts.InstructionsPrompt(a))

	resourceRegistry := resources.NewRegistry()
	resourceRegistry.Register(resources.InstructionsResource(a))
	resourceRegistry.Register(resources.ScopeResource(a.Scope()))

	server := mcp.NewServer(toolRegistry)
	server.SetPromptProvider(promptRegistry)
	server.SetResourceProvider(resourceRegistry)
	server.SetInstructionProvider(a)
	return server
}

func serve(ctx context.Context, opts *rootOptions, cfg *config.Config) error {
	if cfg.HTTP.TLS.Enabled {
		for _, f := range []struct{ name, path string }{
			{"certificate", cfg.HTTP.TLS.CertFile},
			{"key", cfg.HTTP.TLS.KeyFile},
		} {
			if _, err := os.Stat(f.path); err != nil {
				return fmt.Errorf("TLS %s file not accessible: %w", f.name, err)
			}
		}
	}

	a := agent.New(cfg)
	defer a.Close()

	if err := a.Build(ctx); err != nil {
		return err
	}
	if err := a.WatchTemplate(ctx); err != nil {
		logging.Warn("template_watch_failed", "agent", a.Name(), "error", err.Error())
	}

	server := newMCPServer(a)

	if !cfg.HTTP.Enabled {
		opts.localSession(cfg, server.LocalSession())
		logging.Info("mcp_stdio_started", "agent", a.Name(), "scope", cfg.Scope().String())
		return server.Run(ctx)
	}

	if opts.accessToken != "" {
		logging.Warn("access_token_ignored", "agent", a.Name(), "reason", "HTTP clients delegate per request")
	}

	httpCfg := &mcp.HTTPConfig{
		Addr:             cfg.HTTP.Address,
		TLSEnable:        cfg.HTTP.TLS.Enabled,
		CertFile:         cfg.HTTP.TLS.CertFile,
		KeyFile:          cfg.HTTP.TLS.KeyFile,
		ChainFile:        cfg.HTTP.TLS.ChainFile,
		AuthEnabled:      cfg.HTTP.Auth.Enabled,
		AuthID:           cfg.Agent.AuthID,
		DelegationHeader: cfg.Agent.DelegationHeader,
		SessionIdle:      mcp.DefaultSessionIdle,
	}

	if cfg.HTTP.Auth.Enabled {
		store, err := openServingTokenStore(cfg.HTTP.Auth.TokenFile)
		if err != nil {
			return err
		}
		defer store.StopWatching()
		go cleanupTokens(ctx, store)
		httpCfg.TokenStore = store
	} else {
		logging.Warn("http_auth_disabled", "agent", a.Name())
	}

	return server.RunHTTP(ctx, httpCfg)
}

// openServingTokenStore loads the token file and starts watching it. The file
// must already exist.
func openServingTokenStore(path string) (*auth.TokenStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("token file not found: %s (create tokens with 'bq-data-agent token add' or use --no-auth)", path)
	}

	store, err := auth.LoadTokenStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load token file: %w", err)
	}

	if removed := store.CleanupExpiredTokens(); removed > 0 {
		logging.Info("expired_tokens_removed", "count", removed)
	}
	if err := store.StartWatching(); err != nil {
		logging.Warn("token_watch_failed", "path", path, "error", err.Error())
	}

	logging.Info("token_store_loaded", "path", path, "tokens", len(store.ListTokens()))
	return store, nil
}

func cleanupTokens(ctx context.Context, store *auth.TokenStore) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.CleanupExpiredTokens(); removed > 0 {
				logging.Info("expired_tokens_removed", "count", removed)
			}
		}
	}
}
