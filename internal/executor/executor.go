/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package executor runs model-issued SQL against BigQuery. Execute never
// fails: every outcome, including engine panics, is rendered as a string
// the model can read.
package executor

import (
	"context"
	"fmt"
	"time"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/logging"
)

// ErrorPrefix starts every failure result
const ErrorPrefix = "An error occurred while executing the BigQuery query: "

// Credentials selects the identity a query runs as. The zero value means
// the ambient default identity of the process.
type Credentials struct {
	AccessToken string
}

// Delegated reports whether the credentials carry a user token
func (c Credentials) Delegated() bool {
	return c.AccessToken != ""
}

func (c Credentials) String() string {
	if c.Delegated() {
		return "delegated"
	}
	return "default"
}

// DelegatedToken is a bearer token obtained by an external OAuth flow for
// the named authorization.
type DelegatedToken struct {
	AuthID      string
	AccessToken string
}

// Engine runs one query and returns every row. Implementations create and
// release their own client for each call.
type Engine interface {
	Query(ctx context.Context, projectID string, creds Credentials, sql string) ([]dataset.Row, error)
}

// Executor resolves credentials and runs queries through an Engine
type Executor struct {
	engine    Engine
	projectID string
	authID    string
	agent     string
}

// New creates an executor. authID may be empty, in which case delegated
// tokens are never used.
func New(engine Engine, projectID, authID, displayName string) *Executor {
	return &Executor{
		engine:    engine,
		projectID: projectID,
		authID:    authID,
		agent:     displayName,
	}
}

// AuthID returns the configured authorization identifier
func (e *Executor) AuthID() string {
	return e.authID
}

// ResolveCredentials picks delegated credentials when an authorization is
// configured and a non-empty token for it was supplied, and the default
// identity otherwise.
func (e *Executor) ResolveCredentials(token *DelegatedToken) Credentials {
	if e.authID == "" || token == nil {
		return Credentials{}
	}
	if token.AuthID != e.authID || token.AccessToken == "" {
		return Credentials{}
	}
	return Credentials{AccessToken: token.AccessToken}
}

// Execute runs sql and returns the rows as a pretty-printed JSON array, or
// a string starting with ErrorPrefix on failure.
func (e *Executor) Execute(ctx context.Context, sql string, token *DelegatedToken) (result string) {
	logging.Info("bigquery_query_started", "agent", e.agent)
	start := time.Now()

	creds := e.ResolveCredentials(token)
	if creds.Delegated() {
		logging.Info("bigquery_query_credentials",
			"agent", e.agent,
			"credentials", creds.String(),
			"auth_id", e.authID,
		)
	} else {
		logging.Info("bigquery_query_credentials",
			"agent", e.agent,
			"credentials", creds.String(),
		)
	}

	defer func() {
		if r := recover(); r != nil {
			result = e.fail(start, fmt.Errorf("panic: %v", r))
		}
	}()

	rows, err := e.engine.Query(ctx, e.projectID, creds, sql)
	if err != nil {
		return e.fail(start, err)
	}
	if rows == nil {
		rows = []dataset.Row{}
	}

	out, err := dataset.MarshalPretty(rows)
	if err != nil {
		return e.fail(start, fmt.Errorf("failed to serialize results: %w", err))
	}

	logging.Info("bigquery_query_completed",
		"agent", e.agent,
		"rows", len(rows),
		"duration_seconds", seconds(start),
	)
	return out
}

func (e *Executor) fail(start time.Time, err error) string {
	logging.Error("bigquery_query_failed",
		"agent", e.agent,
		"duration_seconds", seconds(start),
		"error", err,
	)
	return ErrorPrefix + err.Error()
}

func seconds(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds()) / 1000
}
