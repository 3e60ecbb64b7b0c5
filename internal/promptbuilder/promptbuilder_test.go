package promptbuilder

import (
	"strings"
	"testing"
	"time"

	"github.com/opsguard/errorpilot/internal/model"
)

func TestBuild_IncludesMandatorySections(t *testing.T) {
	e := model.ErrorReport{
		Category:     "agent_error",
		Event:        "timeout",
		Message:      "request took 30s",
		CodeLocation: "main.go:42",
		StackTrace:   "panic: boom",
		Context:      map[string]any{"k": "v"},
	}
	out := Build(e, model.ErrorHistory{}, 0)

	for _, want := range []string{"agent_error", "timeout", "request took 30s", "main.go:42", "panic: boom", `"k": "v"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected prompt to contain %q, got:\n%s", want, out)
		}
	}
}

func TestBuild_NoHistoryNoPreamble(t *testing.T) {
	out := Build(model.ErrorReport{Category: "a", Event: "b", Message: "c"}, model.ErrorHistory{}, 0)
	if strings.Contains(out, "RECURRING ERROR") {
		t.Fatal("should not include recurring-error preamble when there is no history")
	}
}

func TestBuild_WithHistoryIncludesPreamble(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hist := model.ErrorHistory{
		HasHistory:       true,
		TotalOccurrences: 3,
		FirstSeen:        now,
		Attempts: []model.Attempt{
			{SessionID: "s1", SessionURL: "https://host/sessions/s1", Status: model.AttemptResolved, CreatedAt: now},
		},
	}
	out := Build(model.ErrorReport{Category: "a", Event: "b", Message: "c"}, hist, 0)

	if !strings.Contains(out, "RECURRING ERROR") {
		t.Fatal("expected recurring-error preamble")
	}
	if !strings.Contains(out, "https://host/sessions/s1") {
		t.Fatal("expected prior attempt session url in preamble")
	}
}

func TestBuild_CapsAtMaxAttemptsShown(t *testing.T) {
	var attempts []model.Attempt
	for i := 0; i < 20; i++ {
		attempts = append(attempts, model.Attempt{SessionID: "s", SessionURL: "url", Status: model.AttemptResolved})
	}
	hist := model.ErrorHistory{HasHistory: true, TotalOccurrences: 20, Attempts: attempts}
	out := Build(model.ErrorReport{Category: "a", Event: "b", Message: "c"}, hist, 0)

	if strings.Count(out, "session url") != MaxAttemptsShown {
		t.Fatalf("expected at most %d attempts listed, got %d", MaxAttemptsShown, strings.Count(out, "session url"))
	}
}

func TestBuild_HonorsConfiguredMaxAttemptsShown(t *testing.T) {
	var attempts []model.Attempt
	for i := 0; i < 20; i++ {
		attempts = append(attempts, model.Attempt{SessionID: "s", SessionURL: "url", Status: model.AttemptResolved})
	}
	hist := model.ErrorHistory{HasHistory: true, TotalOccurrences: 20, Attempts: attempts}
	out := Build(model.ErrorReport{Category: "a", Event: "b", Message: "c"}, hist, 2)

	if got := strings.Count(out, "session url"); got != 2 {
		t.Fatalf("expected exactly 2 attempts listed with a configured cap of 2, got %d", got)
	}
}

func TestBuild_OmitsOptionalSectionsWhenAbsent(t *testing.T) {
	out := Build(model.ErrorReport{Category: "a", Event: "b", Message: "c"}, model.ErrorHistory{}, 0)
	if strings.Contains(out, "Code Location") || strings.Contains(out, "Stack Trace") || strings.Contains(out, "Additional Context") {
		t.Fatalf("expected optional sections to be omitted, got:\n%s", out)
	}
}
