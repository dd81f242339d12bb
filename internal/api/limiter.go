package api

import (
	"net/http"
	"sync"
	"time"

	"travelbook/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client key.
type rateLimiter struct {
	limiters sync.Map // map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &rateLimiter{
		rps:     rate.Limit(cfg.RPS),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *rateLimiter) allow(key string) bool {
	cl := l.getLimiter(key)
	cl.mu.Lock()
	cl.lastSeen = l.now()
	cl.mu.Unlock()
	return cl.lim.Allow()
}

func (l *rateLimiter) getLimiter(key string) *clientLimiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*clientLimiter)
	}
	fresh := &clientLimiter{lim: rate.NewLimiter(l.rps, l.burst), lastSeen: l.now()}
	actual, _ := l.limiters.LoadOrStore(key, fresh)
	return actual.(*clientLimiter)
}

// sweep forgets clients that have been idle longer than idleTTL.
func (l *rateLimiter) sweep() {
	cutoff := l.now().Add(-l.idleTTL)
	l.limiters.Range(func(k, v any) bool {
		cl := v.(*clientLimiter)
		cl.mu.Lock()
		idle := cl.lastSeen.Before(cutoff)
		cl.mu.Unlock()
		if idle {
			l.limiters.Delete(k)
		}
		return true
	})
}

// middleware rejects requests over the per-client rate. A non-positive RPS
// disables limiting.
func (l *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rps <= 0 {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			abortWithError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		c.Next()
	}
}
