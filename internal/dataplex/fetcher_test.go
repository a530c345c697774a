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
	"bytes"
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/dataplex/apiv1/dataplexpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"bq-data-agent/internal/dataset"
	"bq-data-agent/internal/logging"
)

type mockCatalog struct {
	entries   map[string]*dataplexpb.Entry
	searched  []string
	searchErr error
	requested []string
	search    *dataplexpb.SearchEntriesRequest
	closed    bool
}

func (m *mockCatalog) GetEntry(_ context.Context, name string) (*dataplexpb.Entry, error) {
	m.requested = append(m.requested, name)
	entry, ok := m.entries[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return entry, nil
}

func (m *mockCatalog) SearchEntryNames(_ context.Context, req *dataplexpb.SearchEntriesRequest) ([]string, error) {
	m.search = req
	return m.searched, m.searchErr
}

func (m *mockCatalog) Close() error {
	m.closed = true
	return nil
}

func newTestFetcher(t *testing.T, scope dataset.Scope, catalog Catalog) *Fetcher {
	t.Helper()
	var buf bytes.Buffer
	prev := logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(prev) })

	f := NewFetcher(scope, "AGENT")
	f.connect = func(context.Context) (Catalog, error) { return catalog, nil }
	return f
}

func entryWithAspect(t *testing.T, name string, data map[string]interface{}) *dataplexpb.Entry {
	t.Helper()
	s, err := structpb.NewStruct(data)
	require.NoError(t, err)
	return &dataplexpb.Entry{
		Name: name,
		Aspects: map[string]*dataplexpb.Aspect{
			"dataplex-types.global.schema": {Data: s},
			"dataplex-types.global.empty":  {},
		},
	}
}

var scope = dataset.Scope{ProjectID: "p", DatasetID: "sales", Location: "us-central1"}

func TestEntryName(t *testing.T) {
	assert.Equal(t,
		"projects/p/locations/us-central1/entryGroups/@bigquery/entries/bigquery.googleapis.com/projects/p/datasets/sales/tables/orders",
		EntryName(scope, "orders"))
}

func TestSearchRequest(t *testing.T) {
	req := SearchRequest(scope)
	assert.Equal(t, "projects/p/locations/global", req.Name)
	assert.Equal(t, "projects/p", req.Scope)
	assert.Equal(t, "name:projects/p/datasets/sales/tables/", req.Query)
	assert.Equal(t, int32(100), req.PageSize)
}

func TestTableMetadataExplicitTables(t *testing.T) {
	s := scope
	s.TableNames = []string{"orders", "missing"}
	orders := EntryName(s, "orders")

	catalog := &mockCatalog{entries: map[string]*dataplexpb.Entry{
		orders: entryWithAspect(t, orders, map[string]interface{}{"fields": []interface{}{"id"}}),
	}}
	f := newTestFetcher(t, s, catalog)

	records := f.TableMetadata(context.Background())

	require.Len(t, records, 1, "entries that fail to load are skipped")
	assert.Equal(t, "orders", records[0].TableName)
	assert.Equal(t, map[string]interface{}{
		"dataplex-types.global.schema": map[string]interface{}{"fields": []interface{}{"id"}},
	}, records[0].Aspects)
	assert.Nil(t, catalog.search)
	assert.Len(t, catalog.requested, 2)
	assert.True(t, catalog.closed)
}

func TestTableMetadataSearchesWhenNoTableList(t *testing.T) {
	name := EntryName(scope, "customers")
	catalog := &mockCatalog{
		searched: []string{name},
		entries: map[string]*dataplexpb.Entry{
			name: entryWithAspect(t, name, map[string]interface{}{"owner": "finance"}),
		},
	}
	f := newTestFetcher(t, scope, catalog)

	records := f.TableMetadata(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, "customers", records[0].TableName)
	require.NotNil(t, catalog.search)
	assert.Equal(t, "name:projects/p/datasets/sales/tables/", catalog.search.Query)
}

func TestTableMetadataDropsEntriesWithoutAspects(t *testing.T) {
	name := EntryName(scope, "bare")
	catalog := &mockCatalog{
		searched: []string{name},
		entries:  map[string]*dataplexpb.Entry{name: {Name: name}},
	}
	f := newTestFetcher(t, scope, catalog)

	assert.Empty(t, f.TableMetadata(context.Background()))
}

func TestTableMetadataCatalogFailure(t *testing.T) {
	f := newTestFetcher(t, scope, &mockCatalog{searchErr: errors.New("permission denied")})
	assert.Empty(t, f.TableMetadata(context.Background()))

	f.connect = func(context.Context) (Catalog, error) { return nil, errors.New("no credentials") }
	assert.Empty(t, f.TableMetadata(context.Background()))
}
