package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RateLimiter is a fixed-window, in-memory limiter keyed by client IP.
type RateLimiter struct {
	visitors  map[string]*window
	mu        sync.Mutex
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, w time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*window),
		limit:    limit,
		window:   w,
		now:      time.Now,
	}
}

// Allow counts one request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.window {
		for k, v := range rl.visitors {
			if now.Sub(v.start) >= rl.window {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok || now.Sub(v.start) >= rl.window {
		v = &window{start: now}
		rl.visitors[key] = v
	}
	v.count++
	return v.count <= rl.limit
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			log.Warn().Str("ip", ip).Str("path", c.Request.URL.Path).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
