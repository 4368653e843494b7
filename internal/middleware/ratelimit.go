package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saiten-app/core/internal/pkg/response"
)

// Limiter is an approximate per-key sliding-window rate limiter. It is purely
// in-process: under horizontal scaling each instance enforces its own window,
// which is an accepted tradeoff for a limiter that only smooths bursts ahead
// of the real quota check.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	hits    map[string][]time.Time
	lastGC  time.Time
	nowFunc func() time.Time
}

// NewLimiter creates a limiter allowing max hits per window for each key.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		hits:    make(map[string][]time.Time),
		nowFunc: time.Now,
	}
}

// Allow records a hit for key and reports whether it is within the window
// budget. When rejected it returns the number of seconds until the oldest hit
// leaves the window.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	cutoff := now.Add(-l.window)

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.hits[key] = kept
		retryAfter := int(kept[0].Sub(cutoff).Seconds()) + 1
		return false, retryAfter
	}

	l.hits[key] = append(kept, now)
	l.gcLocked(now, cutoff)
	return true, 0
}

// gcLocked drops fully-expired keys so idle users do not accumulate forever.
func (l *Limiter) gcLocked(now time.Time, cutoff time.Time) {
	if now.Sub(l.lastGC) < l.window {
		return
	}
	l.lastGC = now
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// RateLimit returns a middleware that enforces the sliding-window limit per
// authenticated user, falling back to the client IP for anonymous requests.
func RateLimit(limiter *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentUserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if key == "" {
			c.Next()
			return
		}

		ok, retryAfter := limiter.Allow(key)
		if !ok {
			response.TooManyRequests(c, retryAfter)
			return
		}
		c.Next()
	}
}
