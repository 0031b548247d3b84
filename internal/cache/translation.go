// Package cache holds completed translations so repeated phrases skip the
// provider round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"translator-bot/internal/domain"
)

const (
	DefaultCapacity   = 1000
	DefaultTTL        = time.Hour
	DefaultSweepEvery = 5 * time.Minute
)

// Stats reports lookup counters since the cache was created.
type Stats struct {
	Hits   uint64
	Misses uint64
}

type entry struct {
	translated string
	expiresAt  time.Time
}

// TranslationCache maps (source language, exact text) to a translation.
// Keys are exact: no normalisation beyond what the caller already applied.
type TranslationCache struct {
	items      *ttlcache.Cache[string, entry]
	ttl        time.Duration
	clock      func() time.Time
	sweepEvery time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	sweepMu   sync.Mutex
	lastSweep time.Time
}

type Option func(*TranslationCache)

// WithClock overrides the time source used for expiry decisions.
func WithClock(clock func() time.Time) Option {
	return func(c *TranslationCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSweepEvery sets the minimum interval between opportunistic sweeps.
// Zero disables them; Sweep can still be called directly.
func WithSweepEvery(d time.Duration) Option {
	return func(c *TranslationCache) { c.sweepEvery = d }
}

// New creates a cache holding at most capacity entries, each living ttl
// unless Store is given its own.
func New(capacity int, ttl time.Duration, opts ...Option) *TranslationCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TranslationCache{
		items: ttlcache.New[string, entry](
			ttlcache.WithCapacity[string, entry](uint64(capacity)),
			ttlcache.WithTTL[string, entry](ttl),
			ttlcache.WithDisableTouchOnHit[string, entry](),
		),
		ttl:        ttl,
		clock:      time.Now,
		sweepEvery: DefaultSweepEvery,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastSweep = c.clock()
	return c
}

// Key derives the cache key for text in sourceLang.
func Key(text string, sourceLang domain.Language) string {
	sum := sha256.Sum256([]byte(string(sourceLang) + "_" + text))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached translation if one exists and has not expired.
func (c *TranslationCache) Lookup(text string, sourceLang domain.Language) (string, bool) {
	c.maybeSweep()

	key := Key(text, sourceLang)
	item := c.items.Get(key)
	if item == nil {
		c.misses.Add(1)
		return "", false
	}

	e := item.Value()
	if !c.clock().Before(e.expiresAt) {
		c.items.Delete(key)
		c.misses.Add(1)
		return "", false
	}

	c.hits.Add(1)
	return e.translated, true
}

// Store inserts or replaces the translation for text in sourceLang.
// A non-positive ttl falls back to the cache default.
func (c *TranslationCache) Store(text string, sourceLang domain.Language, translated string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.items.Set(Key(text, sourceLang), entry{
		translated: translated,
		expiresAt:  c.clock().Add(ttl),
	}, ttl)
}

// Stats returns the hit and miss counters.
func (c *TranslationCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len returns the number of entries held, expired or not.
func (c *TranslationCache) Len() int {
	return c.items.Len()
}

// Sweep removes every expired entry and returns how many were removed.
func (c *TranslationCache) Sweep() int {
	before := c.items.Len()
	c.items.DeleteExpired()

	now := c.clock()
	for key, item := range c.items.Items() {
		if !now.Before(item.Value().expiresAt) {
			c.items.Delete(key)
		}
	}

	c.sweepMu.Lock()
	c.lastSweep = now
	c.sweepMu.Unlock()

	removed := before - c.items.Len()
	if removed < 0 {
		return 0
	}
	return removed
}

func (c *TranslationCache) maybeSweep() {
	if c.sweepEvery <= 0 {
		return
	}
	c.sweepMu.Lock()
	due := c.clock().Sub(c.lastSweep) >= c.sweepEvery
	c.sweepMu.Unlock()
	if due {
		c.Sweep()
	}
}
