/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package tools holds the tools the model may call
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/mcp"
)

// Handler is a function that executes a tool
type Handler func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error)

// Tool represents a registered MCP tool
type Tool struct {
	Definition mcp.Tool
	Handler    Handler
}

// Registry manages available MCP tools
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry under its definition name
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Definition.Name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tool definitions sorted by name
func (r *Registry) List() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool.Definition)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Names returns the registered tool names in order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a tool by name. Unknown tools and handler errors come back
// as error results the model can read, never as protocol errors.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (mcp.ToolResponse, error) {
	tool, exists := r.Get(name)
	if !exists {
		return mcp.NewToolError(fmt.Sprintf("Tool not found: %s. Available tools: %s",
			name, strings.Join(r.Names(), ", ")))
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	resp, err := tool.Handler(ctx, args)
	if err != nil {
		logging.Error("tool_call_failed", "tool", name, "error", err.Error())
		return mcp.NewToolError(fmt.Sprintf("Tool %s failed: %v", name, err))
	}
	return resp, nil
}
