/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package prompts

import (
	"fmt"
	"sort"
	"strings"

	"bq-data-agent/internal/mcp"
)

// Prompt represents a registered MCP prompt
type Prompt struct {
	Definition mcp.Prompt
	Handler    func(args map[string]string) mcp.PromptResult
}

// Registry manages available MCP prompts
type Registry struct {
	prompts map[string]Prompt
}

// NewRegistry creates a new prompt registry
func NewRegistry() *Registry {
	return &Registry{
		prompts: make(map[string]Prompt),
	}
}

// Register adds a prompt under its definition name
func (r *Registry) Register(prompt Prompt) {
	r.prompts[prompt.Definition.Name] = prompt
}

// Get retrieves a prompt by name
func (r *Registry) Get(name string) (Prompt, bool) {
	prompt, exists := r.prompts[name]
	return prompt, exists
}

// List returns all registered prompt definitions sorted by name
func (r *Registry) List() []mcp.Prompt {
	prompts := make([]mcp.Prompt, 0, len(r.prompts))
	for _, prompt := range r.prompts {
		prompts = append(prompts, prompt.Definition)
	}
	sort.Slice(prompts, func(i, j int) bool { return prompts[i].Name < prompts[j].Name })
	return prompts
}

// Execute runs a prompt by name after checking its required arguments
func (r *Registry) Execute(name string, args map[string]string) (mcp.PromptResult, error) {
	prompt, exists := r.Get(name)
	if !exists {
		available := make([]string, 0, len(r.prompts))
		for promptName := range r.prompts {
			available = append(available, promptName)
		}
		sort.Strings(available)
		return mcp.PromptResult{}, fmt.Errorf("prompt %q not found. Available prompts: %s",
			name, strings.Join(available, ", "))
	}

	for _, arg := range prompt.Definition.Arguments {
		if arg.Required && strings.TrimSpace(args[arg.Name]) == "" {
			return mcp.PromptResult{}, fmt.Errorf("prompt %q requires argument %q", name, arg.Name)
		}
	}
	if args == nil {
		args = map[string]string{}
	}
	return prompt.Handler(args), nil
}
