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
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/executor"
	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/richtext"
)

// Fetcher reads the dataset description, table metadata, column profiles,
// sample rows and few-shot examples for one scope. A failed fetch is
// logged and yields an empty result.
type Fetcher struct {
	scope          dataset.Scope
	agent          string
	maxPercentNull float64
	connect        Connector
}

// NewFetcher creates a fetcher for scope using the default identity
func NewFetcher(scope dataset.Scope, displayName string, maxPercentNull float64) *Fetcher {
	return &Fetcher{
		scope:          scope,
		agent:          displayName,
		maxPercentNull: maxPercentNull,
		connect:        NewClient,
	}
}

func (f *Fetcher) client(ctx context.Context) (*bigquery.Client, error) {
	return f.connect(ctx, f.scope.ProjectID, executor.Credentials{})
}

// DatasetDescription returns the dataset description as markdown
func (f *Fetcher) DatasetDescription(ctx context.Context) string {
	if !f.scope.Configured() {
		logging.Warn("dataset_description_skipped",
			"agent", f.agent,
			"reason", "project or dataset not configured",
		)
		return ""
	}

	start := time.Now()
	client, err := f.client(ctx)
	if err != nil {
		f.failed("dataset_description_failed", start, err)
		return ""
	}
	defer client.Close()

	md, err := client.DatasetInProject(f.scope.ProjectID, f.scope.DatasetID).Metadata(ctx)
	if err != nil {
		f.failed("dataset_description_failed", start, err)
		return ""
	}

	logging.Info("dataset_description_fetched",
		"agent", f.agent,
		"dataset", f.scope.DatasetPath(),
		"duration_seconds", seconds(start),
	)
	return richtext.Normalize(md.Description)
}

// TableMetadata returns the name, description and schema of every table in
// scope. Tables whose metadata cannot be read are skipped.
func (f *Fetcher) TableMetadata(ctx context.Context) []dataset.TableMetadata {
	if !f.scope.Configured() {
		logging.Warn("table_metadata_skipped",
			"agent", f.agent,
			"reason", "project or dataset not configured",
		)
		return nil
	}

	start := time.Now()
	client, err := f.client(ctx)
	if err != nil {
		f.failed("table_metadata_failed", start, err)
		return nil
	}
	defer client.Close()

	ds := client.DatasetInProject(f.scope.ProjectID, f.scope.DatasetID)
	names, err := f.tableNames(ctx, ds, false)
	if err != nil {
		f.failed("table_metadata_failed", start, err)
		return nil
	}

	var records []dataset.TableMetadata
	for _, name := range names {
		md, err := ds.Table(name).Metadata(ctx)
		if err != nil {
			logging.Warn("table_metadata_entry_skipped",
				"agent", f.agent,
				"table", f.scope.TablePath(name),
				"error", err,
			)
			continue
		}
		records = append(records, dataset.TableMetadata{
			TableName:   f.scope.TablePath(name),
			Description: richtext.Normalize(md.Description),
			Schema:      columns(md.Schema, ""),
		})
	}

	logging.Info("table_metadata_fetched",
		"agent", f.agent,
		"tables", len(records),
		"duration_seconds", seconds(start),
	)
	return records
}

// DataProfiles returns the column profiles exported by a profile scan.
// Columns that are mostly null are dropped.
func (f *Fetcher) DataProfiles(ctx context.Context) []dataset.DataProfile {
	if f.scope.ProfilesTable == "" {
		logging.Info("data_profiles_skipped",
			"agent", f.agent,
			"reason", "profiles table not configured",
		)
		return nil
	}

	logging.Info("data_profiles_started",
		"agent", f.agent,
		"dataset", f.scope.DatasetID,
		"tables", f.scope.TableFilter(),
		"source", f.scope.ProfilesTable,
	)
	start := time.Now()

	client, err := f.client(ctx)
	if err != nil {
		f.failed("data_profiles_failed", start, err)
		return nil
	}
	defer client.Close()

	sql := profilesQuery(f.scope)
	logging.Debug("data_profiles_query", "agent", f.agent, "sql", sql)

	q := client.Query(sql)
	q.Parameters = profilesParameters(f.scope)
	it, err := q.Read(ctx)
	if err != nil {
		f.failed("data_profiles_failed", start, err)
		return nil
	}
	rows, err := iteratorRows(it, 0)
	if err != nil {
		f.failed("data_profiles_failed", start, err)
		return nil
	}

	profiles := filterProfiles(rows, f.maxPercentNull)
	logging.Info("data_profiles_fetched",
		"agent", f.agent,
		"profiles", len(profiles),
		"dropped", len(rows)-len(profiles),
		"duration_seconds", seconds(start),
	)
	return profiles
}

// SampleRows returns up to limit rows from every base table in scope.
// Empty tables and tables that fail to read are left out.
func (f *Fetcher) SampleRows(ctx context.Context, limit int) []dataset.SampleRowSet {
	if !f.scope.Configured() {
		logging.Error("sample_rows_skipped",
			"agent", f.agent,
			"reason", "project and dataset must be configured",
		)
		return nil
	}

	start := time.Now()
	client, err := f.client(ctx)
	if err != nil {
		f.failed("sample_rows_failed", start, err)
		return nil
	}
	defer client.Close()

	ds := client.DatasetInProject(f.scope.ProjectID, f.scope.DatasetID)
	names, err := f.tableNames(ctx, ds, true)
	if err != nil {
		f.failed("sample_rows_failed", start, err)
		return nil
	}
	if len(names) == 0 {
		logging.Info("sample_rows_no_tables", "agent", f.agent, "dataset", f.scope.DatasetPath())
		return nil
	}

	var sets []dataset.SampleRowSet
	for _, name := range names {
		table := f.scope.TablePath(name)
		it := ds.Table(name).Read(ctx)
		it.PageInfo().MaxSize = limit
		rows, err := iteratorRows(it, limit)
		if err != nil {
			logging.Error("sample_rows_table_failed",
				"agent", f.agent,
				"table", table,
				"error", err,
			)
			continue
		}
		if len(rows) == 0 {
			logging.Info("sample_rows_table_empty", "agent", f.agent, "table", table)
			continue
		}
		sets = append(sets, dataset.SampleRowSet{TableName: table, Rows: rows})
	}

	logging.Info("sample_rows_fetched",
		"agent", f.agent,
		"tables", len(sets),
		"duration_seconds", seconds(start),
	)
	return sets
}

// FewShotExamples returns the worked examples stored for this dataset,
// each rendered as "column: value" lines.
func (f *Fetcher) FewShotExamples(ctx context.Context) []string {
	if f.scope.FewShotTable == "" {
		logging.Info("few_shot_examples_skipped",
			"agent", f.agent,
			"reason", "few-shot examples table not configured",
		)
		return nil
	}

	logging.Info("few_shot_examples_started",
		"agent", f.agent,
		"dataset", f.scope.DatasetID,
		"source", f.scope.FewShotTable,
	)
	start := time.Now()

	client, err := f.client(ctx)
	if err != nil {
		f.failed("few_shot_examples_failed", start, err)
		return nil
	}
	defer client.Close()

	q := client.Query(fewShotQuery(f.scope.FewShotTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "dataset_name", Value: f.scope.DatasetID},
	}
	it, err := q.Read(ctx)
	if err != nil {
		// Most often the table has no "dataset" column
		f.failed("few_shot_examples_failed", start, err)
		return nil
	}
	rows, err := iteratorRows(it, 0)
	if err != nil {
		f.failed("few_shot_examples_failed", start, err)
		return nil
	}

	examples := make([]string, 0, len(rows))
	for _, row := range rows {
		examples = append(examples, formatExample(row))
	}

	logging.Info("few_shot_examples_fetched",
		"agent", f.agent,
		"examples", len(examples),
		"duration_seconds", seconds(start),
	)
	return examples
}

// tableNames returns the configured table list, or lists the dataset.
// With baseOnly set, views and other non-base tables are skipped.
func (f *Fetcher) tableNames(ctx context.Context, ds *bigquery.Dataset, baseOnly bool) ([]string, error) {
	if !f.scope.AllTables() {
		return f.scope.TableNames, nil
	}

	var names []string
	it := ds.Tables(ctx)
	for {
		table, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tables in %s: %w", f.scope.DatasetPath(), err)
		}
		if baseOnly {
			md, err := table.Metadata(ctx)
			if err != nil {
				logging.Warn("table_type_unknown",
					"agent", f.agent,
					"table", f.scope.TablePath(table.TableID),
					"error", err,
				)
				continue
			}
			if md.Type != bigquery.RegularTable {
				logging.Info("table_skipped",
					"agent", f.agent,
					"table", f.scope.TablePath(table.TableID),
					"type", string(md.Type),
				)
				continue
			}
		}
		names = append(names, table.TableID)
	}
	return names, nil
}

func (f *Fetcher) failed(event string, start time.Time, err error) {
	logging.Error(event,
		"agent", f.agent,
		"scope", f.scope.String(),
		"duration_seconds", seconds(start),
		"error", err,
	)
}

// profilesQuery selects the profile scan export columns for the dataset,
// narrowed to the table list when one is configured
func profilesQuery(scope dataset.Scope) string {
	where := []string{"data_source.dataset_id = @dataset_name_param"}
	if !scope.AllTables() {
		where = append(where, "data_source.table_id IN UNNEST(@table_names_param)")
	}
	return strings.Join([]string{
		`SELECT
    CONCAT(data_source.table_project_id, '.', data_source.dataset_id, '.', data_source.table_id) AS source_table_id,
    column_name,
    percent_null,
    percent_unique,
    min_string_length,
    max_string_length,
    min_value,
    max_value,
    top_n`,
		"FROM " + quoteTable(scope.ProfilesTable),
		"WHERE " + strings.Join(where, " AND "),
		"ORDER BY source_table_id, column_name",
	}, "\n")
}

func profilesParameters(scope dataset.Scope) []bigquery.QueryParameter {
	params := []bigquery.QueryParameter{
		{Name: "dataset_name_param", Value: scope.DatasetID},
	}
	if !scope.AllTables() {
		params = append(params, bigquery.QueryParameter{
			Name:  "table_names_param",
			Value: append([]string(nil), scope.TableNames...),
		})
	}
	return params
}

// filterProfiles keeps profiles whose percent_null does not exceed max.
// Profiles without a numeric percent_null are kept.
func filterProfiles(rows []dataset.Row, max float64) []dataset.DataProfile {
	var profiles []dataset.DataProfile
	for _, row := range rows {
		p := dataset.DataProfile{
			SourceTableID: row.GetString("source_table_id"),
			ColumnName:    row.GetString("column_name"),
			Record:        row,
		}
		if pct, ok := p.PercentNull(); ok && pct > max {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func fewShotQuery(table string) string {
	return fmt.Sprintf("SELECT *\nFROM %s\nWHERE dataset = @dataset_name", quoteTable(table))
}

// formatExample renders one example row as "column: value" lines, leaving
// out the dataset filter column
func formatExample(row dataset.Row) string {
	lines := make([]string, 0, len(row))
	for _, field := range row {
		if field.Name == "dataset" {
			continue
		}
		lines = append(lines, field.Name+": "+dataset.FormatValue(field.Value))
	}
	return strings.Join(lines, "\n")
}

// quoteTable wraps a table reference in backticks unless it already is
func quoteTable(table string) string {
	table = strings.Trim(strings.TrimSpace(table), "`")
	return "`" + table + "`"
}

func seconds(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds()) / 1000
}
