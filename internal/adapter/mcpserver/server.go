package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"teller/internal/domain"
)

// Server exposes the tool catalog over the Model Context Protocol on
// stdio, so external MCP clients call the same registry (and the same
// schema validation) as the in-process agents.
type Server struct {
	mcpSrv   *server.MCPServer
	tools    domain.ToolExecutor
	identity domain.Identity
	logger   *slog.Logger
}

// New builds an MCP server over the tool registry. The identity is fixed
// for the stdio session: an MCP client is a local operator, not a
// multi-tenant caller.
func New(tools domain.ToolExecutor, identity domain.Identity, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcpSrv:   server.NewMCPServer("teller", version),
		tools:    tools,
		identity: identity,
		logger:   logger,
	}

	for _, schema := range tools.Schemas() {
		params := schema.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		s.mcpSrv.AddTool(
			mcp.NewToolWithRawSchema(schema.Name, schema.Description, params),
			s.handler(schema.Name),
		)
	}
	return s
}

// handler adapts one registry tool to the MCP call contract.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !domain.CanCall(name, s.identity.Roles) {
			return mcp.NewToolResultError(fmt.Sprintf("not permitted to call %q", name)), nil
		}

		tool, err := s.tools.Get(name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", name)), nil
		}

		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}

		ctx = domain.ContextWithIdentity(ctx, s.identity)
		res, err := tool.Execute(ctx, args)
		if err != nil {
			s.logger.Error("mcp tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.IsError {
			return mcp.NewToolResultError(res.Content), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}

// ServeStdio serves MCP over stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcpSrv)
}
