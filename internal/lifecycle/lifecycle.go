package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	drainStarted atomic.Int64
)

// SetShuttingDown sets the drain flag and records when draining began.
// Health reports 503 shutting-down while the flag is set.
func SetShuttingDown(v bool) {
	if v {
		drainStarted.CompareAndSwap(0, time.Now().UnixNano())
	} else {
		drainStarted.Store(0)
	}
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// DrainingSince returns when the first SetShuttingDown(true) happened, or
// the zero time when the process is not draining.
func DrainingSince() time.Time {
	ns := drainStarted.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
