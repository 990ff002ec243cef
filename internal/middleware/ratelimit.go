package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
)

// idle buckets are full again by the time they are evicted
const (
	bucketIdleTTL  = 10 * time.Minute
	sweepEvery     = 5 * time.Minute
	minRetryAfterS = 1
)

// bucket is a token bucket for one caller. tokens is fractional so slow
// refill rates still accumulate between requests.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter keeps one bucket per caller key (user or client ip)
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	perSec   float64
	now      func() time.Time
	lastGC   time.Time
}

func NewRateLimiter(capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		perSec:   float64(refillRate),
		now:      time.Now,
	}
}

// Allow takes one token for key. When the bucket is empty it returns the
// wait until the next token.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[key] = b
	}
	b.tokens = math.Min(rl.capacity, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.perSec)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.perSec <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
}

// sweep drops idle buckets inline instead of running a goroutine per limiter
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastGC) < sweepEvery {
		return
	}
	rl.lastGC = now
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(rl.buckets, k)
		}
	}
}

// RateLimitMiddleware limits each caller to capacity requests in a burst,
// refilled at refillRate tokens per second.
func RateLimitMiddleware(capacity, refillRate int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(capacity, refillRate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(rateKey(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < minRetryAfterS {
					secs = minRetryAfterS
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateKey prefers the authenticated user, falling back to the client IP
func rateKey(r *http.Request) string {
	if p, ok := identity.FromContext(r.Context()); ok {
		return "user:" + p.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
