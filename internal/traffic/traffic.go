// Package traffic keeps a short sliding window of request outcomes. The
// health endpoint reads it to decide whether the service is overloaded or
// degraded.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished request.
type Outcome int

const (
	// Served is any request answered without a server-side failure,
	// including client errors.
	Served Outcome = iota
	// Failed is a request answered with a 5xx status.
	Failed
	// Denied is a request rejected by the rate limiter.
	Denied

	numOutcomes
)

// maxWindowSeconds bounds the longest window a Tracker can answer for.
const maxWindowSeconds = 300

var defaultTracker = NewTracker()

// Record adds one outcome to the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.RecordN(o, 1)
}

// RecordN adds n outcomes to the process-wide tracker.
func RecordN(o Outcome, n int) {
	defaultTracker.RecordN(o, n)
}

// Count returns the number of o outcomes within the window.
func Count(o Outcome, window time.Duration) int {
	return defaultTracker.Count(o, window)
}

// RequestCount returns all outcomes (served + failed + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// ErrorRate returns (failed, total) within the window. Denials are not part of total.
func ErrorRate(window time.Duration) (failed, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears the process-wide tracker. For tests and testing mode only.
func Reset() {
	defaultTracker.Reset()
}

type bucket struct {
	second int64
	counts [numOutcomes]int
}

// Tracker counts outcomes in one-second buckets over a ring of
// maxWindowSeconds seconds. Windows longer than that are clamped.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets [maxWindowSeconds]bucket
}

// NewTracker returns an empty Tracker on the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// RecordN adds n outcomes at the current second. n <= 0 is a no-op.
func (t *Tracker) RecordN(o Outcome, n int) {
	if n <= 0 || o < 0 || o >= numOutcomes {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sec := t.now().Unix()
	b := &t.buckets[sec%maxWindowSeconds]
	if b.second != sec {
		*b = bucket{second: sec}
	}
	b.counts[o] += n
}

// Count returns the number of o outcomes within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sumLocked(window, o)
}

// RequestCount returns all outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sumLocked(window, Served, Failed, Denied)
}

// ErrorRate returns (failed, served + failed) within the window.
func (t *Tracker) ErrorRate(window time.Duration) (failed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	failed = t.sumLocked(window, Failed)
	return failed, failed + t.sumLocked(window, Served)
}

// Reset drops every recorded outcome.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets = [maxWindowSeconds]bucket{}
}

// sumLocked must be called with t.mu held.
func (t *Tracker) sumLocked(window time.Duration, outcomes ...Outcome) int {
	span := int64(window / time.Second)
	if span < 1 {
		span = 1
	}
	if span > maxWindowSeconds {
		span = maxWindowSeconds
	}
	now := t.now().Unix()
	n := 0
	for i := range t.buckets {
		b := &t.buckets[i]
		if b.second <= now-span || b.second > now {
			continue
		}
		for _, o := range outcomes {
			n += b.counts[o]
		}
	}
	return n
}
