package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultCleanupTTL      = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter limits requests per client IP. It guards the endpoints that
// build and submit transactions, each of which costs several ledger calls.
type IPRateLimiter struct {
	limiters   map[string]*limiterEntry
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter allows requestsPerMinute per IP, clamped to at least 1.
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}

	rl := &IPRateLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:      requestsPerMinute,
		cleanupTTL: defaultCleanupTTL,
		stopCh:     make(chan struct{}),
	}
	go rl.cleanupLoop(defaultCleanupInterval)
	return rl
}

func (rl *IPRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IPRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.cleanupTTL {
			delete(rl.limiters, key)
		}
	}
}

// Stop stops the background cleanup goroutine
func (rl *IPRateLimiter) Stop(context.Context) error {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	return nil
}

func (rl *IPRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if entry, ok := rl.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Size returns the number of tracked clients
func (rl *IPRateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Limit returns middleware that rate limits by client IP. c.ClientIP()
// honours X-Forwarded-For only from the engine's trusted proxies.
func (rl *IPRateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"error":      "Too many requests. Please try again later.",
				"code":       "RATE_LIMIT_EXCEEDED",
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}
