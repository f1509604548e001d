package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"astro-report-backend/config"
)

// IPRateLimiter stores a rate limiter for each client IP address.
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first
// sight.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.ips[ip]
	i.mu.RUnlock()
	if exists {
		return limiter
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if limiter, exists := i.ips[ip]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(i.r, i.b)
	i.ips[ip] = limiter
	return limiter
}

// ClientIP resolves the caller's address, honoring the configured trusted
// header when the service sits behind a proxy.
func ClientIP(c *gin.Context, trustedHeader string) string {
	if trustedHeader != "" {
		if ip := c.GetHeader(trustedHeader); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

// RateLimiter is a middleware for per-IP rate limiting.
func RateLimiter(cfg *config.ServerConfig) gin.HandlerFunc {
	limiter := NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(ClientIP(c, cfg.RequestIPHeader)).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
