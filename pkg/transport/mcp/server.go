// Package mcp exposes the turn pipeline as MCP tools. Agent hosts
// connect over streamable HTTP and call run_python for literal code or
// run_request for natural-language requests.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jkoenig/werkbank/pkg/engine"
	"github.com/jkoenig/werkbank/pkg/transport"
)

// Server wraps an MCP server that dispatches tool calls to the turn
// runner. Sessions map to MCP tool call arguments, so duplicate
// detection works per session the same way as over HTTP.
type Server struct {
	runner transport.TurnRunner
	srv    *mcp.Server
	logger *slog.Logger
}

// RunPythonInput is the argument schema for the run_python tool.
type RunPythonInput struct {
	Code    string `json:"code" jsonschema_description:"Python code to execute in the sandbox"`
	Session string `json:"session,omitempty" jsonschema_description:"Session identifier for context and duplicate detection"`
}

// RunRequestInput is the argument schema for the run_request tool.
type RunRequestInput struct {
	Request string `json:"request" jsonschema_description:"Natural-language description of the task"`
	Session string `json:"session,omitempty" jsonschema_description:"Session identifier for context and duplicate detection"`
}

// NewServer creates an MCP server exposing the run_python and
// run_request tools backed by the given turn runner.
func NewServer(runner transport.TurnRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		runner: runner,
		logger: logger,
		srv: mcp.NewServer(
			&mcp.Implementation{Name: "werkbank", Version: "v1.0.0"},
			nil,
		),
	}

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "run_python",
		Description: "Executes Python code in a remote sandbox and returns the output. Generated charts are returned as PNG images.",
	}, s.handleRunPython)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "run_request",
		Description: "Turns a natural-language request into Python code, executes it in a remote sandbox and returns the shaped result.",
	}, s.handleRunRequest)

	return s
}

// Handler returns an http.Handler serving the MCP protocol over
// streamable HTTP. Mount it at /mcp.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.srv
	}, nil)
}

// MCPServer returns the underlying SDK server, for serving over other
// transports such as stdio or in tests.
func (s *Server) MCPServer() *mcp.Server {
	return s.srv
}

func (s *Server) handleRunPython(ctx context.Context, _ *mcp.CallToolRequest, input RunPythonInput) (*mcp.CallToolResult, struct{}, error) {
	return s.runTurn(ctx, &engine.TurnRequest{
		SessionID: input.Session,
		Code:      input.Code,
	})
}

func (s *Server) handleRunRequest(ctx context.Context, _ *mcp.CallToolRequest, input RunRequestInput) (*mcp.CallToolResult, struct{}, error) {
	return s.runTurn(ctx, &engine.TurnRequest{
		SessionID: input.Session,
		Input:     input.Request,
	})
}

// runTurn dispatches a turn and converts the result to MCP content.
// Pipeline errors become tool errors (IsError with the message as
// text) rather than protocol errors, so the calling agent can read and
// react to them.
func (s *Server) runTurn(ctx context.Context, req *engine.TurnRequest) (*mcp.CallToolResult, struct{}, error) {
	res, err := s.runner.RunTurn(ctx, req)
	if err != nil {
		s.logger.Warn("mcp turn failed", "session", req.SessionID, "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, struct{}{}, nil
	}

	content := []mcp.Content{&mcp.TextContent{Text: res.Message}}
	if res.Result != nil {
		for _, img := range res.Result.Images {
			content = append(content, &mcp.ImageContent{
				Data:     img,
				MIMEType: "image/png",
			})
		}
	}

	return &mcp.CallToolResult{Content: content}, struct{}{}, nil
}
