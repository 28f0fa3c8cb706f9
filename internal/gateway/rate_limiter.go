package gateway

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter implements per-key rate limiting using a token bucket
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
	now        func() time.Time
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a limiter allowing limit requests per period per key
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow consumes a token for key and reports whether the request may proceed
func (rl *RateLimiter) Allow(key string) bool {
	bucket := rl.getBucket(key)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := rl.now()
	elapsed := now.Sub(bucket.lastRefill)

	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else {
		tokensToAdd := int(elapsed.Nanoseconds() * int64(rl.limit) / rl.period.Nanoseconds())
		if tokensToAdd > 0 {
			bucket.tokens = min(bucket.tokens+tokensToAdd, rl.limit)
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Reset refills the bucket for key
func (rl *RateLimiter) Reset(key string) {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketsMux.RUnlock()

	if exists {
		bucket.mutex.Lock()
		bucket.tokens = rl.limit
		bucket.lastRefill = rl.now()
		bucket.mutex.Unlock()
	}
}

func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	bucket = &tokenBucket{
		tokens:     rl.limit,
		lastRefill: rl.now(),
	}
	rl.buckets[key] = bucket

	return bucket
}

// cleanup drops buckets idle for longer than maxIdle
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := rl.now().Add(-maxIdle)

	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup periodically removes idle buckets until done is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// a bucket idle for a full period is full again anyway
				rl.cleanup(max(interval, rl.period))
			case <-done:
				return
			}
		}
	}()
}

// clientIP returns the first X-Forwarded-For hop or the remote address host
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
