// Package sqlite is a durable, SQLite-backed implementation of
// history.CooldownHistoryStore (C13), for operators who want the
// cooldown/active-session/attempt state to survive a process restart.
// The in-memory history.Store remains the default; this package is an
// optional upgrade, selected by configuring a database path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/model"
)

// Store wraps a *sql.DB connection holding the cooldowns, active_sessions,
// and attempts tables.
type Store struct {
	conn     *sql.DB
	cooldown time.Duration
	now      func() time.Time
}

var _ history.CooldownHistoryStore = (*Store)(nil)

// Open creates (or reuses) the SQLite database at path and applies all
// pending migrations. cooldown <= 0 selects history.DefaultCooldown.
func Open(path string, cooldown time.Duration) (*Store, error) {
	if cooldown <= 0 {
		cooldown = history.DefaultCooldown
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{conn: conn, cooldown: cooldown, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// CheckCooldown reports whether fp is within its post-merge cooldown
// window.
func (s *Store) CheckCooldown(fp string) (inCooldown bool, endsAt time.Time, prURL string) {
	var resolvedAt string
	err := s.conn.QueryRow(
		`SELECT resolved_at, pr_url FROM cooldowns WHERE fingerprint = ?`, fp,
	).Scan(&resolvedAt, &prURL)
	if err == sql.ErrNoRows {
		return false, time.Time{}, ""
	}
	if err != nil {
		return false, time.Time{}, ""
	}

	resolved, err := time.Parse(time.RFC3339Nano, resolvedAt)
	if err != nil {
		return false, time.Time{}, ""
	}
	endsAt = resolved.Add(s.cooldown)
	return s.now().Before(endsAt), endsAt, prURL
}

// CheckActive returns the session id of an in-flight attempt for fp, if
// any.
func (s *Store) CheckActive(fp string) (sessionID string, ok bool) {
	err := s.conn.QueryRow(
		`SELECT session_id FROM active_sessions WHERE fingerprint = ?`, fp,
	).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		return "", false
	}
	return sessionID, true
}

// HistoryFor returns the read-side view of fp's attempt history.
func (s *Store) HistoryFor(fp string) model.ErrorHistory {
	rows, err := s.conn.Query(
		`SELECT session_id, session_url, pr_url, status, created_at, resolved_at, notes
		 FROM attempts WHERE fingerprint = ? ORDER BY created_at ASC`, fp,
	)
	if err != nil {
		return model.ErrorHistory{}
	}
	defer rows.Close() //nolint:errcheck

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(&a.SessionID, &a.SessionURL, &a.PRUrl, &a.Status, &createdAt, &resolvedAt, &a.Notes); err != nil {
			return model.ErrorHistory{}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			a.CreatedAt = t
		}
		if resolvedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, resolvedAt.String); err == nil {
				a.ResolvedAt = &t
			}
		}
		attempts = append(attempts, a)
	}

	if len(attempts) == 0 {
		return model.ErrorHistory{}
	}
	return model.ErrorHistory{
		HasHistory:       true,
		Attempts:         attempts,
		TotalOccurrences: len(attempts),
		FirstSeen:        attempts[0].CreatedAt,
	}
}

// RecordAttempt appends a new in-progress Attempt for fp and sets it as
// the active session.
func (s *Store) RecordAttempt(fp, sessionID, sessionURL string) {
	now := s.now().Format(time.RFC3339Nano)
	_, err := s.conn.Exec(
		`INSERT INTO attempts (fingerprint, session_id, session_url, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fp, sessionID, sessionURL, model.AttemptInProgress, now,
	)
	if err != nil {
		return
	}
	_, _ = s.conn.Exec(
		`INSERT INTO active_sessions (fingerprint, session_id) VALUES (?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET session_id = excluded.session_id`,
		fp, sessionID,
	)
}

// MarkMerged records a merged fix: writes the cooldown record, transitions
// the matching in-history attempt to resolved, and clears the active
// session.
func (s *Store) MarkMerged(fp, prURL, sessionID, notes string) {
	now := s.now().Format(time.RFC3339Nano)

	_, err := s.conn.Exec(
		`INSERT INTO cooldowns (fingerprint, resolved_at, pr_url, session_id, notes) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET resolved_at = excluded.resolved_at, pr_url = excluded.pr_url, session_id = excluded.session_id, notes = excluded.notes`,
		fp, now, prURL, sessionID, notes,
	)
	if err != nil {
		return
	}

	_, _ = s.conn.Exec(
		`UPDATE attempts SET status = ?, resolved_at = ?, pr_url = ?, notes = ?
		 WHERE id = (
		     SELECT id FROM attempts
		     WHERE fingerprint = ? AND session_id = ? AND status = ?
		     ORDER BY created_at DESC LIMIT 1
		 )`,
		model.AttemptResolved, now, prURL, notes, fp, sessionID, model.AttemptInProgress,
	)

	s.ClearActive(fp)
}

// ClearActive removes the active-session pointer for fp.
func (s *Store) ClearActive(fp string) {
	_, _ = s.conn.Exec(`DELETE FROM active_sessions WHERE fingerprint = ?`, fp)
}

// ActiveSessions returns a snapshot of every fingerprint currently carrying
// an active session.
func (s *Store) ActiveSessions() map[string]string {
	out := make(map[string]string)
	rows, err := s.conn.Query(`SELECT fingerprint, session_id FROM active_sessions`)
	if err != nil {
		return out
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var fp, sid string
		if err := rows.Scan(&fp, &sid); err != nil {
			continue
		}
		out[fp] = sid
	}
	return out
}

// Counts reports the number of fingerprints currently in cooldown and the
// number of active sessions.
func (s *Store) Counts() (inCooldown, activeSessions int) {
	rows, err := s.conn.Query(`SELECT resolved_at FROM cooldowns`)
	if err == nil {
		defer rows.Close() //nolint:errcheck
		now := s.now()
		for rows.Next() {
			var resolvedAt string
			if err := rows.Scan(&resolvedAt); err != nil {
				continue
			}
			if t, err := time.Parse(time.RFC3339Nano, resolvedAt); err == nil && now.Before(t.Add(s.cooldown)) {
				inCooldown++
			}
		}
	}

	_ = s.conn.QueryRow(`SELECT COUNT(*) FROM active_sessions`).Scan(&activeSessions)
	return inCooldown, activeSessions
}
