package analyzer

import (
	"sync"
	"time"

	"firestige.xyz/frer/internal/frer"
)

// logLimiter caps how many anomaly warnings each stream may log per window.
// Counts reset when the window expires.
type logLimiter struct {
	mu           sync.Mutex
	current      map[frer.StreamID]int
	windowStart  time.Time // zero until the first Allow
	windowSize   time.Duration
	maxPerWindow int

	suppressed uint64
}

// newLogLimiter returns nil when maxPerWindow <= 0; a nil limiter allows everything.
func newLogLimiter(maxPerWindow int, window time.Duration) *logLimiter {
	if maxPerWindow <= 0 {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &logLimiter{
		current:      make(map[frer.StreamID]int),
		windowSize:   window,
		maxPerWindow: maxPerWindow,
	}
}

// Allow reports whether stream may log another warning at now.
func (l *logLimiter) Allow(stream frer.StreamID, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[frer.StreamID]int)
		l.windowStart = now
	}

	l.current[stream]++
	if l.current[stream] > l.maxPerWindow {
		l.suppressed++
		return false
	}
	return true
}

// Suppressed returns the number of warnings dropped so far.
func (l *logLimiter) Suppressed() uint64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressed
}
