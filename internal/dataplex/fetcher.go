/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package dataplex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/dataplex/apiv1/dataplexpb"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/logging"
)

// Fetcher returns table entry metadata for a scope
type Fetcher struct {
	scope   dataset.Scope
	agent   string
	connect func(ctx context.Context) (Catalog, error)
}

// NewFetcher creates a fetcher that connects with NewCatalog
func NewFetcher(scope dataset.Scope, displayName string) *Fetcher {
	return &Fetcher{scope: scope, agent: displayName, connect: NewCatalog}
}

// TableMetadata returns one record per catalog entry that carries at least
// one non-empty aspect. Entries that fail to load are skipped; a failure
// of the whole catalog yields an empty result.
func (f *Fetcher) TableMetadata(ctx context.Context) []dataset.TableMetadata {
	logging.Info("dataplex_metadata_started",
		"agent", f.agent,
		"project", f.scope.ProjectID,
		"location", f.scope.Location,
		"dataset", f.scope.DatasetID,
		"tables", f.scope.TableFilter(),
	)
	start := time.Now()

	catalog, err := f.connect(ctx)
	if err != nil {
		f.unavailable(err)
		return nil
	}
	defer catalog.Close()

	names, err := f.entryNames(ctx, catalog)
	if err != nil {
		f.unavailable(err)
		return nil
	}
	if len(names) == 0 {
		logging.Info("dataplex_metadata_no_entries", "agent", f.agent, "scope", f.scope.String())
		return nil
	}

	var records []dataset.TableMetadata
	for _, name := range names {
		entry, err := catalog.GetEntry(ctx, name)
		if err != nil {
			logging.Warn("dataplex_entry_skipped",
				"agent", f.agent,
				"entry", name,
				"error", err,
			)
			continue
		}
		aspects := entryAspects(entry)
		if len(aspects) == 0 {
			continue
		}
		records = append(records, dataset.TableMetadata{
			TableName: lastSegment(name),
			Aspects:   aspects,
		})
	}

	logging.Info("dataplex_metadata_fetched",
		"agent", f.agent,
		"entries", len(records),
		"duration_seconds", float64(time.Since(start).Milliseconds())/1000,
	)
	return records
}

// entryNames builds entry names for an explicit table list, or searches
// the catalog for every table of the dataset
func (f *Fetcher) entryNames(ctx context.Context, catalog Catalog) ([]string, error) {
	if !f.scope.AllTables() {
		names := make([]string, 0, len(f.scope.TableNames))
		for _, table := range f.scope.TableNames {
			names = append(names, EntryName(f.scope, table))
		}
		return names, nil
	}
	return catalog.SearchEntryNames(ctx, SearchRequest(f.scope))
}

// EntryName returns the @bigquery entry group entry of a table
func EntryName(scope dataset.Scope, table string) string {
	return fmt.Sprintf(
		"projects/%s/locations/%s/entryGroups/@bigquery/entries/bigquery.googleapis.com/projects/%s/datasets/%s/tables/%s",
		scope.ProjectID, scope.Location, scope.ProjectID, scope.DatasetID, table,
	)
}

// SearchRequest finds every table entry of the dataset
func SearchRequest(scope dataset.Scope) *dataplexpb.SearchEntriesRequest {
	return &dataplexpb.SearchEntriesRequest{
		Name:     fmt.Sprintf("projects/%s/locations/global", scope.ProjectID),
		Scope:    fmt.Sprintf("projects/%s", scope.ProjectID),
		Query:    fmt.Sprintf("name:projects/%s/datasets/%s/tables/", scope.ProjectID, scope.DatasetID),
		PageSize: searchPageSize,
	}
}

// entryAspects maps aspect keys to their data, leaving out aspects that
// have no data
func entryAspects(entry *dataplexpb.Entry) map[string]interface{} {
	aspects := make(map[string]interface{})
	for key, aspect := range entry.GetAspects() {
		data := aspect.GetData()
		if data == nil || len(data.GetFields()) == 0 {
			continue
		}
		aspects[key] = data.AsMap()
	}
	return aspects
}

func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

func (f *Fetcher) unavailable(err error) {
	logging.Warn("dataplex_metadata_unavailable",
		"agent", f.agent,
		"scope", f.scope.String(),
		"error", err,
	)
}
