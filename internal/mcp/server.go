/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package mcp serves the agent over the Model Context Protocol, on stdio
// or HTTP.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"bq-data-agent/internal/logging"
	"bq-data-agent/internal/session"
)

// ToolProvider is an interface for listing and executing tools
type ToolProvider interface {
	List() []Tool
	Execute(ctx context.Context, name string, args map[string]interface{}) (ToolResponse, error)
}

// ResourceProvider is an interface for listing and reading resources
type ResourceProvider interface {
	List() []Resource
	Read(ctx context.Context, uri string) (ResourceReadResult, error)
}

// PromptProvider is an interface for listing and executing prompts
type PromptProvider interface {
	List() []Prompt
	Execute(name string, args map[string]string) (PromptResult, error)
}

// InstructionProvider supplies the instruction returned on initialize
type InstructionProvider interface {
	Instruction() string
}

// Server handles MCP protocol communication
type Server struct {
	tools        ToolProvider
	resources    ResourceProvider
	prompts      PromptProvider
	instructions InstructionProvider

	// local is the single session of stdio mode
	local *session.State
}

// NewServer creates a new MCP server
func NewServer(tools ToolProvider) *Server {
	return &Server{
		tools: tools,
		local: session.NewState(),
	}
}

// SetResourceProvider sets the resource provider for the server
func (s *Server) SetResourceProvider(resources ResourceProvider) {
	s.resources = resources
}

// SetPromptProvider sets the prompt provider for the server
func (s *Server) SetPromptProvider(prompts PromptProvider) {
	s.prompts = prompts
}

// SetInstructionProvider sets where initialize takes its instructions from
func (s *Server) SetInstructionProvider(instructions InstructionProvider) {
	s.instructions = instructions
}

// LocalSession returns the session used by stdio requests
func (s *Server) LocalSession() *session.State {
	return s.local
}

// Run serves stdio until stdin closes or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC message per line from in and writes responses
// to out
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, ScannerInitialBufferSize), ScannerMaxBufferSize)

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	send := func(resp JSONRPCResponse) {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(resp); err != nil {
			logging.Error("mcp_response_write_failed", "error", err)
		}
	}

	ctx = session.WithState(ctx, s.local)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			send(errorResponse(nil, CodeParseError, "Parse error", err.Error()))
			continue
		}

		if resp, ok := s.Handle(ctx, req); ok {
			send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Handle dispatches one request. The boolean is false for notifications,
// which get no response.
func (s *Server) Handle(ctx context.Context, req JSONRPCRequest) (JSONRPCResponse, bool) {
	logging.Debug("mcp_request", "method", req.Method, "id", req.ID)

	if strings.HasPrefix(req.Method, "notifications/") {
		return JSONRPCResponse{}, false
	}

	var resp JSONRPCResponse
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "ping":
		resp = result(req.ID, map[string]interface{}{})
	case "tools/list":
		resp = result(req.ID, ToolsListResult{Tools: s.tools.List()})
	case "tools/call":
		resp = s.handleToolCall(ctx, req)
	case "resources/list":
		resp = s.handleResourcesList(req)
	case "resources/read":
		resp = s.handleResourceRead(ctx, req)
	case "prompts/list":
		resp = s.handlePromptsList(req)
	case "prompts/get":
		resp = s.handlePromptsGet(req)
	default:
		if req.IsNotification() {
			return JSONRPCResponse{}, false
		}
		resp = errorResponse(req.ID, CodeMethodNotFound, "Method not found", req.Method)
	}
	return resp, true
}

func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	var params InitializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	// Accept the client's protocol version for compatibility
	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = ProtocolVersion
	}

	capabilities := map[string]interface{}{
		"tools": map[string]interface{}{},
	}
	if s.resources != nil {
		capabilities["resources"] = map[string]interface{}{}
	}
	if s.prompts != nil {
		capabilities["prompts"] = map[string]interface{}{}
	}

	res := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      Implementation{Name: ServerName, Version: ServerVersion},
	}
	if s.instructions != nil {
		res.Instructions = s.instructions.Instruction()
	}

	logging.Info("mcp_session_initialized",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"protocol_version", protocolVersion,
	)
	return result(req.ID, res)
}

func (s *Server) handleToolCall(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	var params ToolCallParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	response, err := s.tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Tool execution error", err.Error())
	}
	return result(req.ID, response)
}

func (s *Server) handleResourcesList(req JSONRPCRequest) JSONRPCResponse {
	if s.resources == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Resources not supported", nil)
	}
	return result(req.ID, ResourcesListResult{Resources: s.resources.List()})
}

func (s *Server) handleResourceRead(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	if s.resources == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Resources not supported", nil)
	}

	var params ResourceReadParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	content, err := s.resources.Read(ctx, params.URI)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Resource read error", err.Error())
	}
	return result(req.ID, content)
}

func (s *Server) handlePromptsList(req JSONRPCRequest) JSONRPCResponse {
	if s.prompts == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Prompts not supported", nil)
	}
	return result(req.ID, PromptsListResult{Prompts: s.prompts.List()})
}

func (s *Server) handlePromptsGet(req JSONRPCRequest) JSONRPCResponse {
	if s.prompts == nil {
		return errorResponse(req.ID, CodeMethodNotFound, "Prompts not supported", nil)
	}

	var params PromptGetParams
	if err := decodeParams(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	res, err := s.prompts.Execute(params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, "Prompt execution error", err.Error())
	}
	return result(req.ID, res)
}
