// Package history implements the cooldown-and-history store (three logical
// tables keyed by fingerprint, all held under one lock): recently-merged
// fixes, at-most-one active session per fingerprint, and an append-only
// list of prior attempts.
package history

import (
	"sync"
	"time"

	"github.com/opsguard/errorpilot/internal/model"
)

// DefaultCooldown is the window after a merge during which new reports of
// the same fingerprint are suppressed.
const DefaultCooldown = 5 * time.Minute

// DefaultMaxAttemptsShown has the same value as
// promptbuilder.MaxAttemptsShown; the prompt builder and the router read
// that constant, not this one.
const DefaultMaxAttemptsShown = 5

// Store is an in-memory implementation of the cooldown-and-history tables.
// A SQLite-backed adapter satisfying the same interface (see
// internal/store/sqlite) is available as an optional upgrade path; nothing
// in this package depends on a particular backend.
type Store struct {
	mu       sync.Mutex
	cooldown time.Duration
	resolved map[string]model.CooldownRecord
	active   map[string]string
	attempts map[string][]model.Attempt
	now      func() time.Time
}

// New builds an in-memory Store. cooldown <= 0 selects DefaultCooldown.
func New(cooldown time.Duration) *Store {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Store{
		cooldown: cooldown,
		resolved: make(map[string]model.CooldownRecord),
		active:   make(map[string]string),
		attempts: make(map[string][]model.Attempt),
		now:      time.Now,
	}
}

// CheckCooldown reports whether fp is currently in its post-merge cooldown
// window, and if so, when it ends and which PR it was resolved by.
func (s *Store) CheckCooldown(fp string) (inCooldown bool, endsAt time.Time, prURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.resolved[fp]
	if !ok {
		return false, time.Time{}, ""
	}
	endsAt = rec.ResolvedAt.Add(s.cooldown)
	return s.now().Before(endsAt), endsAt, rec.PRUrl
}

// CheckActive returns the session id of an in-flight attempt for fp, if
// any.
func (s *Store) CheckActive(fp string) (sessionID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.active[fp]
	return sid, ok
}

// HistoryFor returns the read-side view of fp's attempt history.
func (s *Store) HistoryFor(fp string) model.ErrorHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.attempts[fp]
	if len(attempts) == 0 {
		return model.ErrorHistory{}
	}
	out := make([]model.Attempt, len(attempts))
	copy(out, attempts)
	return model.ErrorHistory{
		HasHistory:       true,
		Attempts:         out,
		TotalOccurrences: len(out),
		FirstSeen:        out[0].CreatedAt,
	}
}

// RecordAttempt appends a new in-progress Attempt for fp and sets it as
// the active session.
func (s *Store) RecordAttempt(fp, sessionID, sessionURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[fp] = append(s.attempts[fp], model.Attempt{
		SessionID:  sessionID,
		SessionURL: sessionURL,
		Status:     model.AttemptInProgress,
		CreatedAt:  s.now(),
	})
	s.active[fp] = sessionID
}

// MarkMerged records a merged fix: writes the cooldown record, transitions
// the matching in-history attempt to resolved, and clears the active
// session. Idempotent — calling it twice for the same fp/session leaves
// the same terminal state.
func (s *Store) MarkMerged(fp, prURL, sessionID, notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.resolved[fp] = model.CooldownRecord{
		ResolvedAt: now,
		PRUrl:      prURL,
		SessionID:  sessionID,
		Notes:      notes,
	}

	for i := range s.attempts[fp] {
		a := &s.attempts[fp][i]
		if a.SessionID == sessionID && a.Status == model.AttemptInProgress {
			a.Status = model.AttemptResolved
			resolvedAt := now
			a.ResolvedAt = &resolvedAt
			a.PRUrl = prURL
			a.Notes = notes
			break
		}
	}

	delete(s.active, fp)
}

// ClearActive removes the active-session pointer for fp without changing
// any attempt's status.
func (s *Store) ClearActive(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, fp)
}

// ActiveSessions returns a snapshot of every fingerprint currently carrying
// an active session, for C8's active-work enumeration.
func (s *Store) ActiveSessions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out
}

// Counts reports the number of fingerprints currently in cooldown and the
// number of active sessions, for status reporting.
func (s *Store) Counts() (inCooldown, activeSessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, rec := range s.resolved {
		if now.Before(rec.ResolvedAt.Add(s.cooldown)) {
			inCooldown++
		}
	}
	return inCooldown, len(s.active)
}
