package webserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"go.uber.org/zap"
)

// RateLimiter is a per-key sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	rate     int
	window   time.Duration
	clock    clock.Clock
}

func NewRateLimiter(rate int, window time.Duration, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		clock:    clk,
	}
}

// cleanupThreshold is the key count above which stale keys are swept.
const cleanupThreshold = 10000

// Allow records a request for key unless the window is full.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.rate {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	if len(rl.requests) > cleanupThreshold {
		rl.sweep(now)
	}
	return true
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= rl.window {
			delete(rl.requests, key)
		}
	}
}

// Middleware limits by client IP.
func (rl *RateLimiter) Middleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 || rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		log.Debug("rate limited", zap.String("ip", c.ClientIP()), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
			Error:   "rate_limited",
			Message: fmt.Sprintf("rate limit exceeded: %d requests per %v", rl.rate, rl.window),
		})
	}
}

