package limiter

import (
	"runtime"
	"time"
)

// workSlice is how long the sweep may run between pauses
const workSlice = 10 * time.Millisecond

// CPULimiter keeps a long sweep from monopolizing a core by pausing between
// directories. It is a duty-cycle approximation, not a measured limit; use
// cgroups or systemd CPUQuota for hard guarantees.
type CPULimiter struct {
	maxPercent float64
	lastPause  time.Time
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter returns nil when maxPercent imposes no limit, so callers can
// skip wiring it entirely
func NewCPULimiter(maxPercent float64) *CPULimiter {
	if maxPercent <= 0 || maxPercent >= 100 {
		return nil
	}
	return &CPULimiter{
		maxPercent: maxPercent,
		lastPause:  time.Now(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// PauseFor returns the pause owed after one work slice
func (l *CPULimiter) PauseFor() time.Duration {
	idle := 100.0 - l.maxPercent
	return time.Duration(float64(workSlice) * (idle / l.maxPercent))
}

// Throttle pauses once at least a work slice has passed since the last pause
func (l *CPULimiter) Throttle() {
	if l == nil {
		return
	}
	if l.now().Sub(l.lastPause) > workSlice {
		l.sleep(l.PauseFor())
		l.lastPause = l.now()
	}
	runtime.Gosched()
}
