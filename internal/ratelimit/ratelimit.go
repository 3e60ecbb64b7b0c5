// Package ratelimit enforces a rolling hourly cap on outbound repair
// requests: a single counter keyed by the current integer hour-since-epoch.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMaxPerHour is the cap applied when a Limiter is constructed with
// maxPerHour <= 0.
const DefaultMaxPerHour = 10

// Limiter is a rolling hourly admission counter. The zero value is not
// ready to use; construct with New.
type Limiter struct {
	mu          sync.Mutex
	maxPerHour  int
	counts      map[int64]int
	lastReset   time.Time
	now         func() time.Time
}

// New builds a Limiter admitting at most maxPerHour requests in any given
// clock hour. maxPerHour <= 0 selects DefaultMaxPerHour.
func New(maxPerHour int) *Limiter {
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	return &Limiter{
		maxPerHour: maxPerHour,
		counts:     make(map[int64]int),
		lastReset:  time.Now(),
		now:        time.Now,
	}
}

// Admit reports whether one more request may be admitted this hour,
// incrementing the counter if so. Denial is not retried by the caller; the
// router surfaces the "rate_limit" skip reason.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastReset) > time.Hour {
		l.counts = make(map[int64]int)
		l.lastReset = now
	}

	hour := now.Unix() / int64(time.Hour/time.Second)
	if l.counts[hour] >= l.maxPerHour {
		return false
	}
	l.counts[hour]++
	return true
}

// Remaining reports how many admissions are left in the current hour, for
// status reporting.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hour := now.Unix() / int64(time.Hour/time.Second)
	remaining := l.maxPerHour - l.counts[hour]
	if remaining < 0 {
		return 0
	}
	return remaining
}
