/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package dataset

// Column describes one column of a table schema
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Mode        string `json:"mode,omitempty"`
	Description string `json:"description,omitempty"`
}

// TableMetadata is one Table Metadata Record. Catalog sources fill the
// parts they know about: Dataplex supplies aspects, BigQuery supplies the
// schema and description.
type TableMetadata struct {
	TableName   string                 `json:"table_name"`
	Description string                 `json:"description,omitempty"`
	Schema      []Column               `json:"schema,omitempty"`
	Aspects     map[string]interface{} `json:"aspects,omitempty"`
}

// DataProfile is one Data Profile Record for a (table, column) pair.
// Record holds the profile statistics row exactly as fetched and is what
// gets serialized into the instruction.
type DataProfile struct {
	SourceTableID string
	ColumnName    string
	Record        Row
}

// PercentNull returns the null ratio statistic when present and numeric
func (p DataProfile) PercentNull() (float64, bool) {
	v, ok := p.Record.Get("percent_null")
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// SampleRowSet holds the first rows of one table
type SampleRowSet struct {
	TableName string
	Rows      []Row
}
