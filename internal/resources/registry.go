/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package resources exposes the agent's context as MCP resources
package resources

import (
	"context"
	"fmt"
	"sort"

	"bq-data-agent/internal/mcp"
)

// Handler is a function that reads a resource
type Handler func(ctx context.Context) (mcp.ResourceReadResult, error)

// Resource represents a registered MCP resource
type Resource struct {
	Definition mcp.Resource
	Handler    Handler
}

// Registry manages available MCP resources
type Registry struct {
	resources map[string]Resource
}

// NewRegistry creates a new resource registry
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]Resource),
	}
}

// Register adds a resource under its URI
func (r *Registry) Register(resource Resource) {
	r.resources[resource.Definition.URI] = resource
}

// Get retrieves a resource by URI
func (r *Registry) Get(uri string) (Resource, bool) {
	resource, exists := r.resources[uri]
	return resource, exists
}

// List returns all registered resource definitions sorted by URI
func (r *Registry) List() []mcp.Resource {
	resources := make([]mcp.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		resources = append(resources, resource.Definition)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return resources
}

// Read retrieves a resource by URI and executes its handler
func (r *Registry) Read(ctx context.Context, uri string) (mcp.ResourceReadResult, error) {
	resource, exists := r.Get(uri)
	if !exists {
		return mcp.ResourceReadResult{}, fmt.Errorf("resource not found: %s", uri)
	}
	return resource.Handler(ctx)
}
