package source

import (
	"sync"
	"time"
)

// senderLimiter caps how many datagrams each sender may deliver per window,
// so a misconfigured forwarder cannot starve the receiver. Counts are kept
// per fixed window and dropped wholesale when the window rolls over.
type senderLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time
	window      time.Duration
	max         int

	rejected uint64
}

// newSenderLimiter returns nil when limit <= 0; a nil limiter allows everything.
func newSenderLimiter(limit int, window time.Duration) *senderLimiter {
	if limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Second
	}
	return &senderLimiter{
		counts: make(map[string]int),
		window: window,
		max:    limit,
	}
}

// allow records one datagram from sender and reports whether it is within budget.
func (l *senderLimiter) allow(sender string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.windowStart) >= l.window {
		clear(l.counts)
		l.windowStart = now
	}
	l.counts[sender]++
	if l.counts[sender] > l.max {
		l.rejected++
		return false
	}
	return true
}

// Rejected returns how many datagrams were refused so far.
func (l *senderLimiter) Rejected() uint64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejected
}
