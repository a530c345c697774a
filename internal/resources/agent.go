/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/mcp"
)

// Resource URIs
const (
	URIInstructions = "bigquery://instructions"
	URIScope        = "bigquery://scope"
)

// InstructionSource supplies the current assembled instruction
type InstructionSource interface {
	Instruction() string
}

// InstructionsResource serves the assembled instruction as markdown
func InstructionsResource(source InstructionSource) Resource {
	return Resource{
		Definition: mcp.Resource{
			URI:         URIInstructions,
			Name:        "Agent Instructions",
			Description: "The assembled system instruction: workflow, dataset metadata, data profiles or samples, and worked examples",
			MimeType:    "text/markdown",
		},
		Handler: func(context.Context) (mcp.ResourceReadResult, error) {
			return mcp.NewResourceSuccess(URIInstructions, "text/markdown", source.Instruction())
		},
	}
}

// scopeView is the JSON shape of bigquery://scope
type scopeView struct {
	ProjectID     string   `json:"project_id"`
	Dataset       string   `json:"dataset"`
	Location      string   `json:"location"`
	Tables        []string `json:"tables"`
	AllTables     bool     `json:"all_tables"`
	ProfilesTable string   `json:"data_profiles_table,omitempty"`
	FewShotTable  string   `json:"few_shot_examples_table,omitempty"`
}

// ScopeResource serves the dataset scope as JSON
func ScopeResource(scope dataset.Scope) Resource {
	return Resource{
		Definition: mcp.Resource{
			URI:         URIScope,
			Name:        "Dataset Scope",
			Description: "Project, dataset and tables the agent answers questions about",
			MimeType:    "application/json",
		},
		Handler: func(context.Context) (mcp.ResourceReadResult, error) {
			tables := scope.TableNames
			if tables == nil {
				tables = []string{}
			}
			data, err := json.MarshalIndent(scopeView{
				ProjectID:     scope.ProjectID,
				Dataset:       scope.DatasetID,
				Location:      scope.Location,
				Tables:        tables,
				AllTables:     scope.AllTables(),
				ProfilesTable: scope.ProfilesTable,
				FewShotTable:  scope.FewShotTable,
			}, "", "  ")
			if err != nil {
				return mcp.ResourceReadResult{}, fmt.Errorf("failed to encode scope: %w", err)
			}
			return mcp.NewResourceSuccess(URIScope, "application/json", string(data))
		},
	}
}
