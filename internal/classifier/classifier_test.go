package classifier

import (
	"context"
	"testing"

	"github.com/opsguard/errorpilot/internal/model"
)

func TestClassify_NoAPIKeyFailsOpen(t *testing.T) {
	c := New("", "")
	got := c.Classify(context.Background(), model.ErrorReport{Category: "a", Event: "b", Message: "c"}, nil)
	if got.IsDuplicateOfActiveWork {
		t.Fatal("expected fail-open verdict with isDuplicateOfActiveWork=false")
	}
	if got.Confidence != 0 {
		t.Fatalf("expected zero confidence on fail-open, got %v", got.Confidence)
	}
}

func TestParseAnalysis_PlainJSON(t *testing.T) {
	raw := `{"rootCause":"timeout","category":"FUNCTIONAL","severity":"ERROR","affectedComponents":["scheduler"],"suggestedAction":"retry","isDuplicateOfActiveWork":true,"matchingActiveWorkId":"pr-7","confidence":0.9,"reasoning":"matches open PR"}`
	work := []model.ActiveWork{{ID: "pr-7", Title: "Fix scheduler timeout"}}

	got, ok := parseAnalysis(raw, work)
	if !ok {
		t.Fatal("expected successful parse")
	}
	if got.Category != model.CategoryFunctional || got.Severity != model.SeverityError {
		t.Fatalf("unexpected category/severity: %+v", got)
	}
	if !got.IsDuplicateOfActiveWork || got.MatchingActiveWork == nil || got.MatchingActiveWork.ID != "pr-7" {
		t.Fatalf("expected matching active work resolved, got %+v", got)
	}
	if got.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", got.Confidence)
	}
}

func TestParseAnalysis_MarkdownFencedJSON(t *testing.T) {
	raw := "```json\n{\"category\":\"OTHER\",\"severity\":\"INFO\",\"isDuplicateOfActiveWork\":false,\"confidence\":0.2,\"reasoning\":\"unrelated\"}\n```"
	got, ok := parseAnalysis(raw, nil)
	if !ok {
		t.Fatal("expected fenced JSON to parse")
	}
	if got.IsDuplicateOfActiveWork {
		t.Fatal("expected not-duplicate verdict")
	}
}

func TestParseAnalysis_InvalidCategoryFallsBackToOther(t *testing.T) {
	raw := `{"category":"NOT_A_REAL_CATEGORY","severity":"BOGUS","confidence":5,"isDuplicateOfActiveWork":false}`
	got, ok := parseAnalysis(raw, nil)
	if !ok {
		t.Fatal("expected parse to succeed despite invalid enum values")
	}
	if got.Category != model.CategoryOther {
		t.Fatalf("expected category fallback to OTHER, got %v", got.Category)
	}
	if got.Severity != model.SeverityError {
		t.Fatalf("expected severity fallback to ERROR, got %v", got.Severity)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("expected confidence fallback to 0.5 for out-of-range value, got %v", got.Confidence)
	}
}

func TestParseAnalysis_InvalidJSONFails(t *testing.T) {
	_, ok := parseAnalysis("not json at all", nil)
	if ok {
		t.Fatal("expected parse failure for non-JSON text")
	}
}

func TestParseAnalysis_NoMatchingIdLeavesNilReference(t *testing.T) {
	raw := `{"isDuplicateOfActiveWork":true,"matchingActiveWorkId":"does-not-exist","confidence":0.8}`
	got, ok := parseAnalysis(raw, []model.ActiveWork{{ID: "other"}})
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.MatchingActiveWork != nil {
		t.Fatalf("expected no matching active work resolved, got %+v", got.MatchingActiveWork)
	}
}
