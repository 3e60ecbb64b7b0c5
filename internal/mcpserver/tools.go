package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsguard/errorpilot/internal/model"
)

// --- Tool Definitions ---

func routeErrorTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"route_error",
		"Decide whether and how to escalate a runtime error to the automated repair service.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"category": {
					"type": "string",
					"description": "Broad error classification, e.g. agent_error"
				},
				"event": {
					"type": "string",
					"description": "Short event name, e.g. timeout"
				},
				"message": {
					"type": "string",
					"description": "Human-readable error message"
				},
				"stack_trace": {
					"type": "string",
					"description": "Optional stack trace"
				},
				"code_location": {
					"type": "string",
					"description": "Optional file:line where the error originated"
				},
				"context": {
					"type": "object",
					"description": "Optional structured context, e.g. request parameters"
				},
				"severity": {
					"type": "string",
					"enum": ["DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"],
					"description": "Error severity"
				},
				"source_repo": {
					"type": "string",
					"description": "owner/repo this error originated from, if not the default"
				}
			},
			"required": ["category", "event", "message"]
		}`),
	)
}

func routingStatusTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"routing_status",
		"Read-only snapshot of quota usage, cooldown count, and active-session count.",
		json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	)
}

// --- Tool Handlers ---

// routeErrorArgs mirrors the JSON schema for route_error.
type routeErrorArgs struct {
	Category     string         `json:"category"`
	Event        string         `json:"event"`
	Message      string         `json:"message"`
	StackTrace   string         `json:"stack_trace"`
	CodeLocation string         `json:"code_location"`
	Context      map[string]any `json:"context"`
	Severity     string         `json:"severity"`
	SourceRepo   string         `json:"source_repo"`
}

func (s *Server) handleRouteError(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args routeErrorArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	if args.Category == "" || args.Event == "" || args.Message == "" {
		return mcp.NewToolResultError("category, event, and message are required"), nil
	}

	severity := model.Severity(args.Severity)
	if severity == "" {
		severity = model.SeverityError
	}

	report := model.ErrorReport{
		Category:     args.Category,
		Event:        args.Event,
		Message:      args.Message,
		StackTrace:   args.StackTrace,
		CodeLocation: args.CodeLocation,
		Context:      args.Context,
		Severity:     severity,
		SourceRepo:   args.SourceRepo,
	}

	result := s.router.Route(ctx, report)
	return resultJSON(result)
}

func (s *Server) handleRoutingStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(s.router.Status())
}

// resultJSON marshals v to JSON and returns it as a tool result.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
