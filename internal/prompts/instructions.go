/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package prompts exposes the assembled instruction as an MCP prompt
package prompts

import "bq-data-agent/internal/mcp"

// InstructionsPromptName returns the agent's system instruction
const InstructionsPromptName = "return_instructions_bigquery"

// InstructionSource supplies the current assembled instruction
type InstructionSource interface {
	Instruction() string
}

// InstructionsPrompt creates the return_instructions_bigquery prompt
func InstructionsPrompt(source InstructionSource) Prompt {
	const description = "System instruction for answering questions about the configured BigQuery dataset"
	return Prompt{
		Definition: mcp.Prompt{
			Name:        InstructionsPromptName,
			Description: description,
		},
		Handler: func(map[string]string) mcp.PromptResult {
			return mcp.NewUserPrompt(description, source.Instruction())
		},
	}
}
