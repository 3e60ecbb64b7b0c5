package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opsguard/errorpilot/internal/dedup"
	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/model"
	"github.com/opsguard/errorpilot/internal/ratelimit"
	"github.com/opsguard/errorpilot/internal/repairclient"
	"github.com/opsguard/errorpilot/internal/router"
)

type stubRepair struct {
	session *repairclient.Session
}

func (s *stubRepair) Dispatch(ctx context.Context, prompt, repo string) (*repairclient.Session, error) {
	return s.session, nil
}

func newTestRouter() *router.Router {
	return &router.Router{
		MinSeverity: model.SeverityError,
		RateLimiter: ratelimit.New(10),
		DedupStore:  dedup.New(time.Hour),
		History:     history.New(5 * time.Minute),
		Repair:      &stubRepair{session: &repairclient.Session{SessionID: "sess-1", URL: "https://host/sessions/sess-1", Status: "created"}},
	}
}

func makeRouteErrorRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "route_error",
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("result content is %T, not TextContent", result.Content[0])
	}
	return tc.Text
}

func TestHandleRouteError_Success(t *testing.T) {
	s := &Server{router: newTestRouter()}

	req := makeRouteErrorRequest(map[string]any{
		"category": "agent_error",
		"event":    "timeout",
		"message":  "request took 30s",
		"severity": "ERROR",
	})

	result, err := s.handleRouteError(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(t, result))
	}

	var got model.RoutingResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if !got.Success || got.SessionID != "sess-1" {
		t.Fatalf("unexpected routing result: %+v", got)
	}
}

func TestHandleRouteError_MissingRequiredFieldsRejected(t *testing.T) {
	s := &Server{router: newTestRouter()}

	req := makeRouteErrorRequest(map[string]any{
		"category": "agent_error",
	})

	result, err := s.handleRouteError(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when event/message are missing")
	}
}

func TestHandleRoutingStatus(t *testing.T) {
	r := newTestRouter()
	r.History.RecordAttempt("fp-1", "sess", "url")
	s := &Server{router: r}

	result, err := s.handleRoutingStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(t, result))
	}

	var snap router.StatusSnapshot
	if err := json.Unmarshal([]byte(resultText(t, result)), &snap); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if snap.ActiveSessions != 1 {
		t.Fatalf("expected 1 active session, got %+v", snap)
	}
}
