package ratelimit

import (
	"sync"
	"time"
)

// Cooldowns allows each key at most once per interval, e.g. one reply per
// chat command every ten seconds.
type Cooldowns struct {
	interval time.Duration

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewCooldowns creates per-key cooldowns.
func NewCooldowns(interval time.Duration) *Cooldowns {
	return &Cooldowns{
		interval: interval,
		buckets:  make(map[string]*TokenBucket),
	}
}

// Allow reports whether key may be used now, consuming its use if so.
func (c *Cooldowns) Allow(key string) bool {
	return c.AllowAt(key, time.Now())
}

// AllowAt is Allow with an explicit clock, for tests.
func (c *Cooldowns) AllowAt(key string, now time.Time) bool {
	if c.interval <= 0 {
		return true
	}

	c.mu.Lock()
	b, ok := c.buckets[key]
	if !ok {
		b = NewTokenBucket(1, 1/c.interval.Seconds())
		b.lastRefill = now
		c.buckets[key] = b
	}
	c.mu.Unlock()

	return b.AllowAt(1, now)
}
