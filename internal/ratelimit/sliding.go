package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of requests admitted per window.
	DefaultLimit = 10
	// DefaultWindow is the trailing window duration.
	DefaultWindow = time.Minute
)

// SlidingWindow keeps per-sender request timestamps in memory.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	clock   func() time.Time

	sweepEvery time.Duration
	lastSweep  time.Time
}

type Option func(*SlidingWindow)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *SlidingWindow) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSweepEvery sets how often Admit drops senders with no recent traffic.
// Zero disables the opportunistic sweep.
func WithSweepEvery(d time.Duration) Option {
	return func(s *SlidingWindow) { s.sweepEvery = d }
}

// NewSlidingWindow admits at most limit requests per sender within window.
func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	s := &SlidingWindow{
		windows:    make(map[string][]time.Time),
		limit:      limit,
		window:     window,
		clock:      time.Now,
		sweepEvery: window,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.clock()
	return s
}

// Admit records a request from sender and reports whether it is allowed.
// The error is always nil; it exists so SlidingWindow and the Redis-backed
// limiter are interchangeable.
func (s *SlidingWindow) Admit(_ context.Context, sender string) (bool, error) {
	now := s.clock()
	windowStart := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sweepEvery > 0 && now.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweepLocked(windowStart)
		s.lastSweep = now
	}

	kept := prune(s.windows[sender], windowStart)
	kept = append(kept, now)
	s.windows[sender] = kept

	return len(kept) <= s.limit, nil
}

// Sweep drops every sender whose window holds no timestamps inside the
// trailing duration and returns how many were dropped.
func (s *SlidingWindow) Sweep() int {
	windowStart := s.clock().Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(windowStart)
}

// Senders returns the number of senders currently tracked.
func (s *SlidingWindow) Senders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *SlidingWindow) sweepLocked(windowStart time.Time) int {
	removed := 0
	for sender, stamps := range s.windows {
		if len(prune(stamps, windowStart)) == 0 {
			delete(s.windows, sender)
			removed++
		}
	}
	return removed
}

// prune returns the suffix of stamps at or after windowStart. Timestamps are
// appended in order, so the first kept stamp marks the cut.
func prune(stamps []time.Time, windowStart time.Time) []time.Time {
	for i, ts := range stamps {
		if !ts.Before(windowStart) {
			return stamps[i:]
		}
	}
	return stamps[:0]
}
