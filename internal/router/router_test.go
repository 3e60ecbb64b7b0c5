package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opsguard/errorpilot/internal/dedup"
	"github.com/opsguard/errorpilot/internal/fingerprint"
	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/model"
	"github.com/opsguard/errorpilot/internal/ratelimit"
	"github.com/opsguard/errorpilot/internal/repairclient"
)

func fingerprintForTest(e model.ErrorReport) string {
	return fingerprint.Of(e)
}

type fakeInspector struct {
	work []model.ActiveWork
}

func (f *fakeInspector) Inspect(ctx context.Context, store history.CooldownHistoryStore, repo string, logger *zap.Logger) []model.ActiveWork {
	return f.work
}

type fakeClassifier struct {
	verdict *model.RootCauseAnalysis
}

func (f *fakeClassifier) Classify(ctx context.Context, e model.ErrorReport, activeWork []model.ActiveWork) *model.RootCauseAnalysis {
	if f.verdict != nil {
		return f.verdict
	}
	return &model.RootCauseAnalysis{IsDuplicateOfActiveWork: false, Confidence: 0}
}

type fakeRepair struct {
	session *repairclient.Session
	err     error
	calls   int
}

func (f *fakeRepair) Dispatch(ctx context.Context, prompt, repo string) (*repairclient.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func newTestRouter(repair *fakeRepair) (*Router, *history.Store) {
	store := history.New(5 * time.Minute)
	return &Router{
		MinSeverity: model.SeverityError,
		RateLimiter: ratelimit.New(10),
		DedupStore:  dedup.New(time.Hour),
		History:     store,
		Repair:      repair,
	}, store
}

func happyPathReport() model.ErrorReport {
	return model.ErrorReport{
		Category: "agent_error",
		Event:    "timeout",
		Message:  "request took 30s",
		Severity: model.SeverityError,
	}
}

func TestRoute_HappyPathDispatches(t *testing.T) {
	repair := &fakeRepair{session: &repairclient.Session{SessionID: "sess-1", URL: "https://host/sessions/sess-1", Status: "created"}}
	r, store := newTestRouter(repair)

	got := r.Route(context.Background(), happyPathReport())
	if !got.Success || got.SessionID != "sess-1" {
		t.Fatalf("expected a successful dispatch, got %+v", got)
	}

	hist := store.HistoryFor(fingerprintForTest(happyPathReport()))
	if len(hist.Attempts) != 1 || hist.Attempts[0].Status != model.AttemptInProgress {
		t.Fatalf("expected exactly one in-progress attempt recorded, got %+v", hist)
	}
}

func TestRoute_SeverityBelowThresholdSkips(t *testing.T) {
	r, _ := newTestRouter(&fakeRepair{})
	e := happyPathReport()
	e.Severity = model.SeverityInfo

	got := r.Route(context.Background(), e)
	if got.SkippedReason != ReasonSeverityBelowThreshold {
		t.Fatalf("expected severity skip, got %+v", got)
	}
}

func TestRoute_FeatureDisabledSkips(t *testing.T) {
	r, _ := newTestRouter(&fakeRepair{})
	r.DisableRouting = true

	got := r.Route(context.Background(), happyPathReport())
	if got.SkippedReason != ReasonFeatureDisabled {
		t.Fatalf("expected feature-disabled skip, got %+v", got)
	}
}

func TestRoute_CooldownSuppressesReport(t *testing.T) {
	r, store := newTestRouter(&fakeRepair{})
	e := happyPathReport()

	fp := fingerprintForTest(e)
	store.RecordAttempt(fp, "sess-old", "https://host/sessions/sess-old")
	store.MarkMerged(fp, "https://host/pr/7", "sess-old", "")

	got := r.Route(context.Background(), e)
	if !got.InCooldown || got.SkippedReason != ReasonInCooldown {
		t.Fatalf("expected in-cooldown result, got %+v", got)
	}
	if got.CooldownEndsAt == nil {
		t.Fatal("expected cooldownEndsAt to be populated")
	}
}

func TestRoute_ActiveSessionLinksInstead(t *testing.T) {
	r, store := newTestRouter(&fakeRepair{})
	e := happyPathReport()
	fp := fingerprintForTest(e)
	store.RecordAttempt(fp, "sess-active", "https://host/sessions/sess-active")

	got := r.Route(context.Background(), e)
	if !got.LinkedToExisting || got.SessionID != "sess-active" {
		t.Fatalf("expected link to existing active session, got %+v", got)
	}
}

func TestRoute_DuplicateStormCollapses(t *testing.T) {
	repair := &fakeRepair{session: &repairclient.Session{SessionID: "sess-1", URL: "u", Status: "created"}}
	r, _ := newTestRouter(repair)
	e := happyPathReport()

	first := r.Route(context.Background(), e)
	if !first.Success {
		t.Fatalf("expected first call to dispatch, got %+v", first)
	}

	// A second identical error now finds an active session (linked), which
	// takes precedence over dedup per the gate ordering; dedup is only hit
	// once the active session has been cleared.
	r.History.(*history.Store).ClearActive(fingerprintForTest(e))

	second := r.Route(context.Background(), e)
	if second.SkippedReason != ReasonDuplicateWindow {
		t.Fatalf("expected duplicate-window skip once active pointer is cleared, got %+v", second)
	}
	if repair.calls != 1 {
		t.Fatalf("expected exactly one dispatch call, got %d", repair.calls)
	}
}

func TestRoute_RateLimitDeniesAfterMax(t *testing.T) {
	repair := &fakeRepair{session: &repairclient.Session{SessionID: "sess", URL: "u", Status: "created"}}
	r, _ := newTestRouter(repair)
	r.RateLimiter = ratelimit.New(1)

	e1 := happyPathReport()
	e1.Message = "first distinct error"
	if got := r.Route(context.Background(), e1); !got.Success {
		t.Fatalf("expected first distinct error to dispatch, got %+v", got)
	}

	e2 := happyPathReport()
	e2.Message = "second distinct error"
	got := r.Route(context.Background(), e2)
	if got.SkippedReason != ReasonRateLimit {
		t.Fatalf("expected rate-limit skip, got %+v", got)
	}
}

func TestRoute_AIDuplicateSkipsDispatch(t *testing.T) {
	repair := &fakeRepair{}
	r, _ := newTestRouter(repair)
	work := model.ActiveWork{ID: "pr-7", Title: "Fix timeout in agent scheduler"}
	r.CodeHost = &fakeInspector{work: []model.ActiveWork{work}}
	r.Classifier = &fakeClassifier{verdict: &model.RootCauseAnalysis{
		IsDuplicateOfActiveWork: true,
		MatchingActiveWork:      &work,
		Confidence:              0.9,
	}}

	got := r.Route(context.Background(), happyPathReport())
	if got.Success || !got.LinkedToExisting {
		t.Fatalf("expected AI-duplicate skip, got %+v", got)
	}
	if repair.calls != 0 {
		t.Fatal("expected no dispatch when AI reports a duplicate")
	}
}

func TestRoute_AIFailOpenStillDispatches(t *testing.T) {
	repair := &fakeRepair{session: &repairclient.Session{SessionID: "sess-1", URL: "u", Status: "created"}}
	r, _ := newTestRouter(repair)
	r.CodeHost = &fakeInspector{}
	r.Classifier = &fakeClassifier{verdict: &model.RootCauseAnalysis{IsDuplicateOfActiveWork: false, Confidence: 0}}

	got := r.Route(context.Background(), happyPathReport())
	if !got.Success || got.AIAnalysis == nil || got.AIAnalysis.Confidence != 0 {
		t.Fatalf("expected dispatch to proceed with a fail-open analysis, got %+v", got)
	}
}

func TestRoute_RepairFailureReturnsError(t *testing.T) {
	repair := &fakeRepair{err: errors.New("upstream unavailable")}
	r, _ := newTestRouter(repair)

	got := r.Route(context.Background(), happyPathReport())
	if got.Success || got.Error == "" {
		t.Fatalf("expected an error result, got %+v", got)
	}
}

func TestStatus_ReportsQuotaAndCounts(t *testing.T) {
	r, store := newTestRouter(&fakeRepair{})
	store.RecordAttempt("fp-1", "sess", "url")

	snap := r.Status()
	if snap.ActiveSessions != 1 {
		t.Fatalf("expected 1 active session, got %+v", snap)
	}
	if snap.QuotaRemaining != 10 {
		t.Fatalf("expected full quota remaining, got %+v", snap)
	}
}
