/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package dataplex reads BigQuery table entries from the Dataplex
// universal catalog. Only the aspects of each entry are kept: they carry
// the schema, descriptions and business metadata attached in the catalog.
package dataplex

import (
	"context"
	"errors"
	"fmt"

	dataplex "cloud.google.com/go/dataplex/apiv1"
	"cloud.google.com/go/dataplex/apiv1/dataplexpb"
	"google.golang.org/api/iterator"
)

const searchPageSize = 100

// Catalog is the subset of the catalog service the fetcher needs
type Catalog interface {
	GetEntry(ctx context.Context, name string) (*dataplexpb.Entry, error)
	SearchEntryNames(ctx context.Context, req *dataplexpb.SearchEntriesRequest) ([]string, error)
	Close() error
}

// catalogClient adapts the generated client to Catalog
type catalogClient struct {
	client *dataplex.CatalogClient
}

// NewCatalog opens a catalog client with the default identity
func NewCatalog(ctx context.Context) (Catalog, error) {
	client, err := dataplex.NewCatalogClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Dataplex catalog client: %w", err)
	}
	return &catalogClient{client: client}, nil
}

func (c *catalogClient) GetEntry(ctx context.Context, name string) (*dataplexpb.Entry, error) {
	return c.client.GetEntry(ctx, &dataplexpb.GetEntryRequest{
		Name: name,
		View: dataplexpb.EntryView_ALL,
	})
}

func (c *catalogClient) SearchEntryNames(ctx context.Context, req *dataplexpb.SearchEntriesRequest) ([]string, error) {
	var names []string
	it := c.client.SearchEntries(ctx, req)
	for {
		result, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to search entries: %w", err)
		}
		if entry := result.GetDataplexEntry(); entry != nil && entry.GetName() != "" {
			names = append(names, entry.GetName())
		}
	}
	return names, nil
}

func (c *catalogClient) Close() error {
	return c.client.Close()
}
