/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package bigquery

import (
	"context"
	"fmt"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/executor"
)

// QueryEngine runs queries for the executor with a fresh client per call
type QueryEngine struct {
	connect Connector
}

// NewQueryEngine creates an engine that connects with NewClient
func NewQueryEngine() *QueryEngine {
	return &QueryEngine{connect: NewClient}
}

// Query implements executor.Engine. It blocks until the job finishes and
// returns every result row.
func (e *QueryEngine) Query(ctx context.Context, projectID string, creds executor.Credentials, sql string) ([]dataset.Row, error) {
	client, err := e.connect(ctx, projectID, creds)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	rows, err := iteratorRows(it, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return rows, nil
}

var _ executor.Engine = (*QueryEngine)(nil)
