/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package agent binds the configuration, the context assembler and the
// query executor into the object the hosting surfaces talk to.
package agent

import (
	"context"
	"fmt"
	"sync"

	"bq-data-agent/internal/bigquery"
	"bq-data-agent/internal/config"
	"bq-data-agent/internal/dataplex"
	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/executor"
	"bq-data-agent/internal/instructions"
	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/watch"
)

// Agent holds the current instruction and executes queries for one scope
type Agent struct {
	cfg       *config.Config
	scope     dataset.Scope
	assembler *instructions.Assembler
	executor  *executor.Executor

	mu          sync.RWMutex
	instruction string
	built       bool

	watcher *watch.FileWatcher
}

// New creates an agent backed by BigQuery and, depending on the configured
// metadata source, Dataplex
func New(cfg *config.Config) *Agent {
	scope := cfg.Scope()
	bq := bigquery.NewFetcher(scope, cfg.Agent.DisplayName, cfg.Context.MaxPercentNull)

	sources := instructions.Sources{
		Description: bq,
		Metadata:    bq,
		Profiles:    bq,
		Samples:     bq,
		Examples:    bq,
	}
	if cfg.Context.MetadataSource == config.MetadataSourceDataplex {
		sources.Metadata = dataplex.NewFetcher(scope, cfg.Agent.DisplayName)
	}

	return NewWithSources(cfg, sources, bigquery.NewQueryEngine())
}

// NewWithSources creates an agent with explicit data sources and query engine
func NewWithSources(cfg *config.Config, sources instructions.Sources, engine executor.Engine) *Agent {
	scope := cfg.Scope()
	return &Agent{
		cfg:   cfg,
		scope: scope,
		assembler: instructions.NewAssembler(scope, sources, instructions.Options{
			TemplatePath: cfg.Context.TemplatePath,
			SampleRows:   cfg.Context.SampleRows,
			DisplayName:  cfg.Agent.DisplayName,
		}),
		executor: executor.New(engine, scope.ProjectID, cfg.Agent.AuthID, cfg.Agent.DisplayName),
	}
}

// Build assembles the instruction. Any failure here is fatal for startup.
func (a *Agent) Build(ctx context.Context) error {
	text, err := a.assembler.Assemble(ctx)
	if err != nil {
		return fmt.Errorf("failed to assemble instruction: %w", err)
	}

	a.mu.Lock()
	a.instruction = text
	a.built = true
	a.mu.Unlock()
	return nil
}

// Rebuild re-assembles the instruction. On failure the previous
// instruction stays in place and the error is returned.
func (a *Agent) Rebuild(ctx context.Context) error {
	text, err := a.assembler.Assemble(ctx)
	if err != nil {
		logging.Error("instruction_rebuild_failed",
			"agent", a.cfg.Agent.DisplayName,
			"error", err,
		)
		return err
	}

	a.mu.Lock()
	a.instruction = text
	a.built = true
	a.mu.Unlock()

	logging.Info("instruction_rebuilt", "agent", a.cfg.Agent.DisplayName, "length", len(text))
	return nil
}

// Instruction returns the current assembled instruction
func (a *Agent) Instruction() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.instruction
}

// Ready reports whether an instruction has been built
func (a *Agent) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.built
}

// Execute runs sql with the credentials resolved from token
func (a *Agent) Execute(ctx context.Context, sql string, token *executor.DelegatedToken) string {
	return a.executor.Execute(ctx, sql, token)
}

// AuthID returns the configured authorization id, or ""
func (a *Agent) AuthID() string {
	return a.executor.AuthID()
}

// Scope returns the dataset scope the agent serves
func (a *Agent) Scope() dataset.Scope {
	return a.scope
}

// Name returns the display name
func (a *Agent) Name() string {
	return a.cfg.Agent.DisplayName
}

// Description returns the agent description
func (a *Agent) Description() string {
	return a.cfg.Agent.Description
}

// Model returns the configured model identifier
func (a *Agent) Model() string {
	return a.cfg.Agent.Model
}

// WatchTemplate rebuilds the instruction whenever the configured template
// file changes. It does nothing when the embedded template is in use.
func (a *Agent) WatchTemplate(ctx context.Context) error {
	path := a.cfg.Context.TemplatePath
	if path == "" {
		return nil
	}

	w, err := watch.NewFileWatcher("template", path, func() error {
		return a.Rebuild(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to watch template: %w", err)
	}
	w.Start()

	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()

	logging.Info("template_watch_started", "agent", a.cfg.Agent.DisplayName, "path", path)
	return nil
}

// Close stops the template watcher, if any
func (a *Agent) Close() {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}
