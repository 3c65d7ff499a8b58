// ABOUTME: RateLimiter interface consumed by the pipeline plus a token-bucket implementation.
// ABOUTME: Buckets are keyed per (route, clientKey) with background eviction of idle entries.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Verdict is a rate-limit decision for one request.
type Verdict struct {
	Allowed           bool
	RetryAfterSeconds int // >0 when denied and the limiter has guidance
}

// RateLimiter decides, once per request, whether (route, clientKey) may
// proceed. Fail-open versus fail-closed on backend trouble is the
// implementation's own concern; the pipeline returns a denial unchanged.
type RateLimiter interface {
	Allow(route, clientKey string) Verdict
}

// RateLimiterFunc adapts a function to the RateLimiter interface.
type RateLimiterFunc func(route, clientKey string) Verdict

// Allow calls f.
func (f RateLimiterFunc) Allow(route, clientKey string) Verdict {
	return f(route, clientKey)
}

// TokenBucketLimiter is an in-memory RateLimiter backed by x/time/rate.
// One bucket per (route, clientKey); idle buckets are evicted in the
// background so long-running processes don't accumulate one limiter per
// address ever seen.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	r        rate.Limit
	burst    int
	evictTTL time.Duration
	retry    int
}

// NewTokenBucketLimiter creates a limiter allowing r requests per second
// with the given burst, and starts the eviction goroutine.
func NewTokenBucketLimiter(r rate.Limit, burst int, evictTTL time.Duration) *TokenBucketLimiter {
	if evictTTL <= 0 {
		evictTTL = 15 * time.Minute
	}
	retry := 60
	if r > 0 {
		if s := int(1 / float64(r)); s >= 1 {
			retry = s
		} else {
			retry = 1
		}
	}
	l := &TokenBucketLimiter{
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		r:        r,
		burst:    burst,
		evictTTL: evictTTL,
		retry:    retry,
	}
	go l.cleanupLoop()
	return l
}

// Allow implements RateLimiter.
func (l *TokenBucketLimiter) Allow(route, clientKey string) Verdict {
	key := route + "|" + clientKey
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.r, l.burst)
		l.buckets[key] = b
	}
	l.lastSeen[key] = time.Now()
	l.mu.Unlock()

	if b.Allow() {
		return Verdict{Allowed: true}
	}
	return Verdict{Allowed: false, RetryAfterSeconds: l.retry}
}

func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.evictTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.evictTTL)
		for key, last := range l.lastSeen {
			if last.Before(cutoff) {
				delete(l.buckets, key)
				delete(l.lastSeen, key)
			}
		}
		l.mu.Unlock()
	}
}
