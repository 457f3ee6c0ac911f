package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
)

const (
	cleanupInterval = 5 * time.Minute
	staleTimeout    = 30 * time.Minute
)

// Limiter rate limits operator tool calls globally, per tool and per client.
type Limiter struct {
	logger       logging.ContextLogger
	config       *config.RateLimitConfig
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	clients      map[string]*clientLimit
	mu           sync.Mutex
	stop         chan struct{}
	stopOnce     sync.Once
}

type clientLimit struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewLimiter creates a limiter, or returns nil when rate limiting is off.
// A nil *Limiter allows everything.
func NewLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	l := &Limiter{
		logger:       logger,
		config:       cfg,
		globalBucket: NewTokenBucket(cfg.BurstSize, perSecond(cfg.RequestsPerMin)),
		toolBuckets:  make(map[string]*TokenBucket),
		clients:      make(map[string]*clientLimit),
		stop:         make(chan struct{}),
	}

	for tool, limit := range cfg.PerToolLimits {
		l.toolBuckets[tool] = NewTokenBucket(toolBurst(cfg, limit), perSecond(limit))
	}

	go l.cleanupStaleClients()
	return l
}

func perSecond(perMinute int) float64 {
	return float64(perMinute) / 60.0
}

// toolBurst scales the global burst by the tool's share of the global rate.
func toolBurst(cfg *config.RateLimitConfig, limit int) int {
	if cfg.RequestsPerMin <= 0 {
		return 1
	}
	burst := (cfg.BurstSize * limit) / cfg.RequestsPerMin
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Allow checks a call against every applicable limit. Tokens taken from
// earlier limits are refunded when a later one rejects.
func (l *Limiter) Allow(clientID, tool string) (bool, error) {
	if l == nil {
		return true, nil
	}

	if !l.globalBucket.Allow(1) {
		l.logger.Warn("Global rate limit exceeded", "client", clientID, "tool", tool)
		return false, fmt.Errorf("global rate limit exceeded")
	}

	toolBucket, hasToolLimit := l.toolBuckets[tool]
	if hasToolLimit && !toolBucket.Allow(1) {
		l.globalBucket.Refund(1)
		l.logger.Warn("Tool rate limit exceeded", "client", clientID, "tool", tool)
		return false, fmt.Errorf("rate limit exceeded for tool %s", tool)
	}

	if clientID != "" && !l.allowClient(clientID) {
		l.globalBucket.Refund(1)
		if hasToolLimit {
			toolBucket.Refund(1)
		}
		l.logger.Warn("Client rate limit exceeded", "client", clientID, "tool", tool)
		return false, fmt.Errorf("client rate limit exceeded")
	}

	return true, nil
}

func (l *Limiter) allowClient(clientID string) bool {
	l.mu.Lock()
	c, ok := l.clients[clientID]
	if !ok {
		c = &clientLimit{bucket: NewTokenBucket(l.config.BurstSize, perSecond(l.config.RequestsPerMin))}
		l.clients[clientID] = c
	}
	c.lastSeen = time.Now()
	l.mu.Unlock()

	return c.bucket.Allow(1)
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupStaleClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.pruneClients(now)
		}
	}
}

func (l *Limiter) pruneClients(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > staleTimeout {
			delete(l.clients, id)
			l.logger.Debug("Removed stale client rate limit", "client", id)
		}
	}
}

// GetStatus returns limiter state for the status tool.
func (l *Limiter) GetStatus() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"enabled": false}
	}

	l.mu.Lock()
	clients := len(l.clients)
	l.mu.Unlock()

	tools := make(map[string]interface{}, len(l.toolBuckets))
	for tool, bucket := range l.toolBuckets {
		tools[tool] = map[string]interface{}{
			"limit":  l.config.PerToolLimits[tool],
			"tokens": bucket.Tokens(),
		}
	}

	return map[string]interface{}{
		"enabled":        true,
		"requestsPerMin": l.config.RequestsPerMin,
		"burstSize":      l.config.BurstSize,
		"globalTokens":   l.globalBucket.Tokens(),
		"activeClients":  clients,
		"toolLimits":     tools,
	}
}
