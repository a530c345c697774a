/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package mcp

import "encoding/json"

// NewToolError creates a standardized error response for tools
func NewToolError(message string) (ToolResponse, error) {
	return ToolResponse{
		Content: []ContentItem{{Type: "text", Text: message}},
		IsError: true,
	}, nil
}

// NewToolSuccess creates a standardized success response for tools
func NewToolSuccess(message string) (ToolResponse, error) {
	return ToolResponse{
		Content: []ContentItem{{Type: "text", Text: message}},
	}, nil
}

// NewResourceSuccess creates a resources/read result with one text body
func NewResourceSuccess(uri, mimeType, text string) (ResourceReadResult, error) {
	return ResourceReadResult{
		Contents: []ResourceContents{{URI: uri, MimeType: mimeType, Text: text}},
	}, nil
}

// NewUserPrompt creates a prompt result holding a single user message
func NewUserPrompt(description, text string) PromptResult {
	return PromptResult{
		Description: description,
		Messages: []PromptMessage{
			{Role: "user", Content: ContentItem{Type: "text", Text: text}},
		},
	}
}

// decodeParams converts the generic params of a request into dst
func decodeParams(params interface{}, dst interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func result(id, value interface{}) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: value}
}

func errorResponse(id interface{}, code int, message string, data interface{}) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}
