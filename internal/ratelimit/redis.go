package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, appends and counts in one round trip so the
// decision is atomic across every instance sharing the Redis keyspace.
//
// KEYS[1] sender key; ARGV[1] window start (ms, inclusive); ARGV[2] now (ms);
// ARGV[3] unique member; ARGV[4] key expiry (ms).
const slidingWindowScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
local count = redis.call('ZCARD', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return count
`

// evaler is the subset of *redis.Client used by RedisSlidingWindow.
type evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisSlidingWindow keeps each sender's window in a Redis sorted set scored
// by request time. Keys expire one window after the last request, which
// bounds memory for idle senders.
type RedisSlidingWindow struct {
	rdb    evaler
	prefix string
	limit  int
	window time.Duration
	clock  func() time.Time
	newID  func() string
}

type RedisOption func(*RedisSlidingWindow)

// WithKeyPrefix sets the namespace for sender keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisSlidingWindow) {
		r.prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	}
}

// WithRedisClock overrides the time source.
func WithRedisClock(clock func() time.Time) RedisOption {
	return func(r *RedisSlidingWindow) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRedisSlidingWindow admits at most limit requests per sender within window.
func NewRedisSlidingWindow(rdb evaler, limit int, window time.Duration, opts ...RedisOption) (*RedisSlidingWindow, error) {
	if rdb == nil {
		return nil, errors.New("ratelimit: redis client must not be nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	r := &RedisSlidingWindow{
		rdb:    rdb,
		prefix: "translator:ratelimit",
		limit:  limit,
		window: window,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Admit records a request from sender and reports whether it is allowed.
func (r *RedisSlidingWindow) Admit(ctx context.Context, sender string) (bool, error) {
	now := r.clock()
	windowStart := now.Add(-r.window)

	count, err := r.rdb.Eval(ctx, slidingWindowScript,
		[]string{r.key(sender)},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		r.newID(),
		r.window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis sliding window for %q: %w", sender, err)
	}
	return count <= int64(r.limit), nil
}

func (r *RedisSlidingWindow) key(sender string) string {
	return r.prefix + ":" + sender
}
