// Package mcpserver exposes the router's route operation over the Model
// Context Protocol (C15), so the host AI-agent platform can call it as a
// tool rather than requiring an in-process Go dependency.
package mcpserver

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/opsguard/errorpilot/internal/router"
)

// serverVersion is reported to MCP clients during the initialize handshake.
const serverVersion = "0.1.0"

// Server holds the MCP server state: the one router instance every tool
// call delegates to.
type Server struct {
	router *router.Router
}

// NewServer wraps r for MCP exposure.
func NewServer(r *router.Router) *Server {
	return &Server{router: r}
}

// Run starts the MCP stdio server. It blocks until the context is
// cancelled or stdin is closed.
func Run(ctx context.Context, r *router.Router) error {
	s := NewServer(r)

	mcpServer := server.NewMCPServer(
		"errorpilot",
		serverVersion,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTools(
		server.ServerTool{Tool: routeErrorTool(), Handler: s.handleRouteError},
		server.ServerTool{Tool: routingStatusTool(), Handler: s.handleRoutingStatus},
	)

	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "[mcp] ", log.LstdFlags))

	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
