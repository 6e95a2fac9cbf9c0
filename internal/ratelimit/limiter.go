// Package ratelimit enforces per-sender message caps over sliding time
// windows. A send is allowed only while both the hourly and daily counts
// are strictly below their limits.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultPerHour = 20
	DefaultPerDay  = 100

	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// Quota reports a sender's current usage against both windows.
type Quota struct {
	HourlyUsed  int
	HourlyLimit int
	DailyUsed   int
	DailyLimit  int
}

// HourlyRemaining returns the sends left in the trailing hour, never negative.
func (q Quota) HourlyRemaining() int {
	if r := q.HourlyLimit - q.HourlyUsed; r > 0 {
		return r
	}
	return 0
}

// DailyRemaining returns the sends left in the trailing day, never negative.
func (q Quota) DailyRemaining() int {
	if r := q.DailyLimit - q.DailyUsed; r > 0 {
		return r
	}
	return 0
}

// Limiter tracks send timestamps per sender. Timestamps older than the
// daily window are pruned on every access so memory stays bounded. A
// sender with no recorded state is treated as zero usage.
type Limiter struct {
	perHour int
	perDay  int
	now     func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

// New creates a Limiter with the given per-sender caps. Non-positive caps
// fall back to the defaults.
func New(perHour, perDay int) *Limiter {
	if perHour <= 0 {
		perHour = DefaultPerHour
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	return &Limiter{
		perHour: perHour,
		perDay:  perDay,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// prune drops entries older than the daily window and returns the kept
// slice. Caller must hold mu.
func (l *Limiter) prune(sender string, now time.Time) []time.Time {
	cutoff := now.Add(-dayWindow)
	kept := l.windows[sender][:0]
	for _, ts := range l.windows[sender] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, sender)
		return nil
	}
	l.windows[sender] = kept
	return kept
}

// IsAllowed reports whether the sender may send another message now.
func (l *Limiter) IsAllowed(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entries := l.prune(sender, now)

	hourCutoff := now.Add(-hourWindow)
	hourly := 0
	for _, ts := range entries {
		if ts.After(hourCutoff) {
			hourly++
		}
	}

	return hourly < l.perHour && len(entries) < l.perDay
}

// Record appends a send timestamp for the sender.
func (l *Limiter) Record(sender string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(sender, now)
	l.windows[sender] = append(l.windows[sender], now)
}

// Usage returns the sender's current quota usage.
func (l *Limiter) Usage(sender string) Quota {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entries := l.prune(sender, now)

	hourCutoff := now.Add(-hourWindow)
	hourly := 0
	for _, ts := range entries {
		if ts.After(hourCutoff) {
			hourly++
		}
	}

	return Quota{
		HourlyUsed:  hourly,
		HourlyLimit: l.perHour,
		DailyUsed:   len(entries),
		DailyLimit:  l.perDay,
	}
}
