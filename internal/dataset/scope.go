/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package dataset holds the Dataset Scope and the record types exchanged
// between the catalog fetchers and the context assembler.
package dataset

import (
	"fmt"
	"strings"
)

// Scope bounds every metadata and data fetch. It is resolved once from
// configuration and passed by value; nothing mutates it afterwards.
type Scope struct {
	ProjectID     string   `json:"project_id"`
	DatasetID     string   `json:"dataset_id"`
	Location      string   `json:"location"`
	TableNames    []string `json:"table_names"`
	ProfilesTable string   `json:"data_profiles_table,omitempty"`
	FewShotTable  string   `json:"few_shot_examples_table,omitempty"`
}

// Configured reports whether both the project and dataset are set
func (s Scope) Configured() bool {
	return s.ProjectID != "" && s.DatasetID != ""
}

// AllTables reports whether the scope covers every table in the dataset
func (s Scope) AllTables() bool {
	return len(s.TableNames) == 0
}

// DatasetPath returns "project.dataset"
func (s Scope) DatasetPath() string {
	return fmt.Sprintf("%s.%s", s.ProjectID, s.DatasetID)
}

// TablePath returns the fully qualified "project.dataset.table" name
func (s Scope) TablePath(table string) string {
	return fmt.Sprintf("%s.%s.%s", s.ProjectID, s.DatasetID, table)
}

// TableFilter describes the table list for log lines and diagnostics:
// "All" when no explicit list is configured.
func (s Scope) TableFilter() string {
	if s.AllTables() {
		return "All"
	}
	return strings.Join(s.TableNames, ", ")
}

// String renders the unresolved scope, e.g. "p.d (Tables: All)"
func (s Scope) String() string {
	return fmt.Sprintf("%s (Tables: %s)", s.DatasetPath(), s.TableFilter())
}

// ParseTableNames splits a comma separated table list, trimming blanks and
// dropping empty entries. An empty input yields nil, meaning all tables.
func ParseTableNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
