/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"

	"bq-data-agent/internal/executor"
	"bq-data-agent/internal/mcp"
	"bq-data-agent/internal/session"
)

// BigQueryToolName is the tool the instruction tells the model to call
const BigQueryToolName = "execute_bigquery_query"

// QueryRunner executes SQL and always returns a result string
type QueryRunner interface {
	Execute(ctx context.Context, sql string, token *executor.DelegatedToken) string
	AuthID() string
}

// DelegatedToken reads the delegated token for authID from the session
// attached to ctx. It returns nil when there is none.
func DelegatedToken(ctx context.Context, authID string) *executor.DelegatedToken {
	if authID == "" {
		return nil
	}
	state, ok := session.FromContext(ctx)
	if !ok {
		return nil
	}
	token, ok := state.Get(session.TokenKey(authID))
	if !ok {
		return nil
	}
	return &executor.DelegatedToken{AuthID: authID, AccessToken: token}
}

// BigQueryQueryTool creates the execute_bigquery_query tool. Query
// failures come back as ordinary text starting with executor.ErrorPrefix so
// the model can read the cause and retry.
func BigQueryQueryTool(runner QueryRunner) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name: BigQueryToolName,
			Description: "Executes a BigQuery SQL query and returns the result as a JSON string. " +
				"Use fully qualified table names (`project.dataset.table`). " +
				"If the query fails, the result starts with \"" + executor.ErrorPrefix + "\" followed by the cause.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql_query": map[string]interface{}{
						"type":        "string",
						"description": "The GoogleSQL statement to execute.",
					},
				},
				Required: []string{"sql_query"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			sql, errResp := ValidateStringParam(args, "sql_query")
			if errResp != nil {
				return *errResp, nil
			}

			out := runner.Execute(ctx, sql, DelegatedToken(ctx, runner.AuthID()))
			return mcp.NewToolSuccess(out)
		},
	}
}
