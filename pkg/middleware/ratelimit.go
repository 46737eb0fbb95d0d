package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipRateLimiter tracks a token bucket per client IP.
type ipRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Bound map growth under churny clients.
	if len(l.ips) > 10000 {
		l.ips = make(map[string]*rate.Limiter)
	}

	limiter, ok := l.ips[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.ips[ip] = limiter
	}
	return limiter
}

// RateLimit rejects requests exceeding the per-IP rate with 429.
func RateLimit(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := newIPRateLimiter(limit, burst)

	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
