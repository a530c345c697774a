/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package bigquery reads dataset context from BigQuery and runs queries on
// behalf of the executor. Every operation creates its own client and
// closes it before returning; nothing is pooled.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"bq-data-agent/internal/executor"
)

// Connector opens a client for the given identity
type Connector func(ctx context.Context, projectID string, creds executor.Credentials) (*bigquery.Client, error)

// ClientOptions returns the client options for creds. Default credentials
// need none: the client library finds the ambient identity itself.
func ClientOptions(creds executor.Credentials) []option.ClientOption {
	if !creds.Delegated() {
		return nil
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	})
	return []option.ClientOption{option.WithTokenSource(src)}
}

// NewClient is the default Connector
func NewClient(ctx context.Context, projectID string, creds executor.Credentials) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, projectID, ClientOptions(creds)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return client, nil
}
