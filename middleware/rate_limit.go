package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/agroadvisor/community/utils"
)

const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// ipLimiters keeps one token bucket per client IP and forgets idle ones.
type ipLimiters struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func (l *ipLimiters) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Idle buckets are dropped at most once per TTL.
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		for k, c := range l.clients {
			if now.After(c.expires) {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.expires = now.Add(limiterIdleTTL)
	return c.limiter.AllowN(now, 1)
}

// RateLimit applies a per-IP token bucket of perMinute requests. A value of
// zero or less disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(ctx *gin.Context) { ctx.Next() }
	}

	limiters := &ipLimiters{
		every:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     max(perMinute/2, 1),
		clients:   map[string]*clientLimiter{},
		lastSweep: time.Now(),
	}

	return func(ctx *gin.Context) {
		if !limiters.allow(ctx.ClientIP(), time.Now()) {
			utils.AbortWithError(ctx, http.StatusTooManyRequests, 42901, "Too many requests, please try again later.")
			return
		}
		ctx.Next()
	}
}
