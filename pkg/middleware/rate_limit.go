package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/botdash/botdash/pkg/metrics"
)

// MemoryLimiter holds one token bucket per key.
type MemoryLimiter struct {
	rps      float64
	burst    int
	limiters sync.Map // map[string]*rate.Limiter
}

// NewMemoryLimiter returns a limiter allowing rps events per second with the given burst.
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{rps: rps, burst: burst}
}

// Allow consumes one token from key's bucket.
func (l *MemoryLimiter) Allow(key string) bool {
	v, ok := l.limiters.Load(key)
	if !ok {
		v, _ = l.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(l.rps), l.burst))
	}
	return v.(*rate.Limiter).Allow()
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Mounted after AuthMiddleware on a route it keys by caller; elsewhere it keys by client IP.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return NewMemoryLimiter(rps, burst).Middleware()
}

// Middleware adapts the limiter to gin.
func (l *MemoryLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(limiterKey(c)) {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
