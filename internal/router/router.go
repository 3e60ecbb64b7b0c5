// Package router composes the sanitizer, fingerprinter, rate limiter,
// dedup store, cooldown/history store, prompt builder, repair client,
// active-work inspector, and AI classifier into the single top-level
// Route operation (C10).
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/opsguard/errorpilot/internal/dedup"
	"github.com/opsguard/errorpilot/internal/fingerprint"
	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/logfields"
	"github.com/opsguard/errorpilot/internal/model"
	"github.com/opsguard/errorpilot/internal/promptbuilder"
	"github.com/opsguard/errorpilot/internal/ratelimit"
	"github.com/opsguard/errorpilot/internal/repairclient"
	"github.com/opsguard/errorpilot/internal/sanitize"
)

const component = "C10"

// Skip reasons are machine-readable and stable; callers (CLI/MCP/HTTP
// adapters) match on these rather than on free-text messages.
const (
	ReasonSeverityBelowThreshold = "severity_below_threshold"
	ReasonFeatureDisabled        = "feature_disabled"
	ReasonInCooldown             = "in_cooldown"
	ReasonDuplicateWindow        = "duplicate_window"
	ReasonRateLimit              = "rate_limit"
	ReasonAIDuplicate            = "ai_duplicate"
)

// ActiveWorkInspector is satisfied by *codehost.Client. Expressed as an
// interface so tests can substitute a fake instead of hitting a real
// code-hosting API.
type ActiveWorkInspector interface {
	Inspect(ctx context.Context, store history.CooldownHistoryStore, repo string, logger *zap.Logger) []model.ActiveWork
}

// DuplicateClassifier is satisfied by *classifier.Client.
type DuplicateClassifier interface {
	Classify(ctx context.Context, e model.ErrorReport, activeWork []model.ActiveWork) *model.RootCauseAnalysis
}

// RepairDispatcher is satisfied by *repairclient.Client.
type RepairDispatcher interface {
	Dispatch(ctx context.Context, prompt, repo string) (*repairclient.Session, error)
}

// Router is the router's dependency set. The I/O-bound collaborators are
// interfaces so tests can substitute fakes; the router never reaches for a
// package-level default.
type Router struct {
	MinSeverity    model.Severity
	DisableRouting bool
	DefaultRepo    string

	// HistoryMaxAttemptsShown bounds how many prior attempts the prompt
	// builder lists in the recurring-error preamble. <= 0 selects
	// promptbuilder.MaxAttemptsShown.
	HistoryMaxAttemptsShown int

	RateLimiter *ratelimit.Limiter
	DedupStore  *dedup.Store
	History     history.CooldownHistoryStore
	Classifier  DuplicateClassifier
	CodeHost    ActiveWorkInspector
	Repair      RepairDispatcher

	Logger *zap.Logger
}

// Route realizes the state machine: severity gate, feature-disabled gate,
// cooldown gate, active-session gate, dedup gate, rate-limit gate, AI
// duplicate-of-active-work gate (fail-open), then dispatch.
func (r *Router) Route(ctx context.Context, e model.ErrorReport) model.RoutingResult {
	if !e.Severity.MeetsMinimum(r.minSeverity()) {
		return model.RoutingResult{Success: false, SkippedReason: ReasonSeverityBelowThreshold}
	}
	if r.DisableRouting {
		return model.RoutingResult{Success: false, SkippedReason: ReasonFeatureDisabled}
	}

	fp := fingerprint.Of(e)
	logger := r.logger().With(logfields.New().Component(component).Fingerprint(fp).Build()...)

	if inCooldown, endsAt, _ := r.History.CheckCooldown(fp); inCooldown {
		end := endsAt
		return model.RoutingResult{
			Success:        true,
			SkippedReason:  ReasonInCooldown,
			InCooldown:     true,
			CooldownEndsAt: &end,
		}
	}

	if sessionID, ok := r.History.CheckActive(fp); ok {
		hist := r.History.HistoryFor(fp)
		return model.RoutingResult{
			Success:              true,
			SessionID:            sessionID,
			LinkedToExisting:     true,
			HasHistoricalContext: hist.HasHistory,
		}
	}

	if r.DedupStore.Check(fp) {
		return model.RoutingResult{Success: false, SkippedReason: ReasonDuplicateWindow}
	}

	if !r.RateLimiter.Admit() {
		return model.RoutingResult{Success: false, SkippedReason: ReasonRateLimit}
	}

	var analysis *model.RootCauseAnalysis
	if r.Classifier != nil && r.CodeHost != nil {
		activeWork := r.CodeHost.Inspect(ctx, r.History, r.repo(e), logger)
		analysis = r.Classifier.Classify(ctx, e, activeWork)
		if analysis.IsDuplicateOfActiveWork {
			reason := ReasonAIDuplicate
			if analysis.MatchingActiveWork != nil {
				reason = fmt.Sprintf("%s: matches %q", ReasonAIDuplicate, analysis.MatchingActiveWork.Title)
			}
			return model.RoutingResult{
				Success:          false,
				LinkedToExisting: true,
				SkippedReason:    reason,
				AIAnalysis:       analysis,
			}
		}
	}

	return r.dispatch(ctx, e, fp, analysis, logger)
}

func (r *Router) dispatch(ctx context.Context, e model.ErrorReport, fp string, analysis *model.RootCauseAnalysis, logger *zap.Logger) model.RoutingResult {
	sanitized := model.ErrorReport{
		Category:     e.Category,
		Event:        e.Event,
		Message:      sanitize.String(e.Message),
		StackTrace:   sanitize.StackTrace(e.StackTrace),
		CodeLocation: e.CodeLocation,
		Context:      sanitize.Context(e.Context),
		Severity:     e.Severity,
		SourceRepo:   e.SourceRepo,
	}

	hist := r.History.HistoryFor(fp)
	prompt := promptbuilder.Build(sanitized, hist, r.HistoryMaxAttemptsShown)

	session, err := r.Repair.Dispatch(ctx, prompt, r.repo(e))
	if err != nil {
		logger.Warn("repair dispatch failed", logfields.New().Operation("dispatch").Err(err).Build()...)
		return model.RoutingResult{Success: false, Error: err.Error(), AIAnalysis: analysis}
	}

	r.History.RecordAttempt(fp, session.SessionID, session.URL)

	return model.RoutingResult{
		Success:              true,
		SessionID:            session.SessionID,
		SessionURL:           session.URL,
		HasHistoricalContext: hist.HasHistory,
		AIAnalysis:           analysis,
	}
}

func (r *Router) minSeverity() model.Severity {
	if r.MinSeverity == "" {
		return model.SeverityError
	}
	return r.MinSeverity
}

func (r *Router) repo(e model.ErrorReport) string {
	if e.SourceRepo != "" {
		return e.SourceRepo
	}
	return r.DefaultRepo
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// StatusSnapshot is the read-only view backing the status CLI command and
// the routing_status MCP tool.
type StatusSnapshot struct {
	QuotaRemaining int
	InCooldown     int
	ActiveSessions int
}

// Status reports current quota usage and cooldown/active-session counts
// without mutating any gate's state.
func (r *Router) Status() StatusSnapshot {
	inCooldown, active := r.History.Counts()
	return StatusSnapshot{
		QuotaRemaining: r.RateLimiter.Remaining(),
		InCooldown:     inCooldown,
		ActiveSessions: active,
	}
}
