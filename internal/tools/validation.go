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
	"fmt"
	"strings"

	"bq-data-agent/internal/mcp"
)

// ValidateStringParam extracts a required, non-blank string argument.
// The returned response is non-nil when validation fails.
func ValidateStringParam(args map[string]interface{}, name string) (string, *mcp.ToolResponse) {
	value, ok := args[name].(string)
	if !ok || strings.TrimSpace(value) == "" {
		resp, _ := mcp.NewToolError(fmt.Sprintf("Missing or invalid '%s' argument", name))
		return "", &resp
	}
	return value, nil
}
