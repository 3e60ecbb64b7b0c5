package history

import (
	"time"

	"github.com/opsguard/errorpilot/internal/model"
)

// CooldownHistoryStore is the interface the router depends on for C5. The
// in-memory Store in store.go is the default implementation; internal/store/sqlite
// provides an optional durable one. Neither the router nor any other
// component ever depends on a concrete backend.
type CooldownHistoryStore interface {
	CheckCooldown(fp string) (inCooldown bool, endsAt time.Time, prURL string)
	CheckActive(fp string) (sessionID string, ok bool)
	HistoryFor(fp string) model.ErrorHistory
	RecordAttempt(fp, sessionID, sessionURL string)
	MarkMerged(fp, prURL, sessionID, notes string)
	ClearActive(fp string)
	ActiveSessions() map[string]string
	Counts() (inCooldown, activeSessions int)
}

var _ CooldownHistoryStore = (*Store)(nil)
