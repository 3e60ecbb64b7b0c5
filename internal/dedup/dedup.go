// Package dedup suppresses identical fingerprints seen within a sliding
// window, so an error storm from one bug consumes at most one downstream
// admission.
package dedup

import (
	"sync"
	"time"
)

// DefaultWindow is the sliding dedup window applied when Store is
// constructed with window <= 0.
const DefaultWindow = time.Hour

// Store is a sliding-window map of fingerprint to last-seen timestamp.
// Entries older than the window are pruned lazily on each Check.
type Store struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

// New builds a Store with the given sliding window. window <= 0 selects
// DefaultWindow.
func New(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Check reports whether fp was already seen within the window. If it was
// not, it is recorded as seen now and false is returned. If it was, its
// timestamp is left unrefreshed and true is returned — a duplicate does
// not extend its own window.
func (s *Store) Check(fp string) (duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)
	for k, t := range s.seen {
		if t.Before(cutoff) {
			delete(s.seen, k)
		}
	}

	if _, ok := s.seen[fp]; ok {
		return true
	}
	s.seen[fp] = now
	return false
}
