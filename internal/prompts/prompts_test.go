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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bq-data-agent/internal/mcp"
)

type mutableInstruction struct{ text string }

func (m *mutableInstruction) Instruction() string { return m.text }

func TestInstructionsPromptReturnsCurrentInstruction(t *testing.T) {
	src := &mutableInstruction{text: "first"}
	r := NewRegistry()
	r.Register(InstructionsPrompt(src))

	res, err := r.Execute(InstructionsPromptName, nil)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "user", res.Messages[0].Role)
	assert.Equal(t, "first", res.Messages[0].Content.Text)

	src.text = "second"
	res, err = r.Execute(InstructionsPromptName, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Messages[0].Content.Text)
}

func TestRegistryListAndUnknown(t *testing.T) {
	r := NewRegistry()
	r.Register(InstructionsPrompt(&mutableInstruction{}))
	r.Register(Prompt{
		Definition: mcp.Prompt{Name: "aaa"},
		Handler:    func(map[string]string) mcp.PromptResult { return mcp.PromptResult{} },
	})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "aaa", list[0].Name)
	assert.Equal(t, InstructionsPromptName, list[1].Name)

	_, err := r.Execute("missing", nil)
	require.Error(t, err)
	assert.EqualError(t, err, `prompt "missing" not found. Available prompts: aaa, return_instructions_bigquery`)
}

func TestRegistryRequiresArguments(t *testing.T) {
	r := NewRegistry()
	r.Register(Prompt{
		Definition: mcp.Prompt{
			Name:      "explain_table",
			Arguments: []mcp.PromptArgument{{Name: "table", Required: true}, {Name: "focus"}},
		},
		Handler: func(args map[string]string) mcp.PromptResult {
			return mcp.NewUserPrompt("", "Explain "+args["table"]+args["focus"])
		},
	})

	_, err := r.Execute("explain_table", nil)
	assert.EqualError(t, err, `prompt "explain_table" requires argument "table"`)

	_, err = r.Execute("explain_table", map[string]string{"table": "  "})
	assert.Error(t, err)

	res, err := r.Execute("explain_table", map[string]string{"table": "orders"})
	require.NoError(t, err)
	assert.Equal(t, "Explain orders", res.Messages[0].Content.Text)
}
