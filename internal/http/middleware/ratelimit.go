// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token-bucket limiter mounted on the
// /auth group and on the protected API group. Callers are keyed by uid once
// authenticated and by client IP otherwise. Buckets live in process memory;
// idle ones are swept on a timer piggybacked on lookups.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	defaultBucketIdleTTL = 10 * time.Minute
	defaultSweepEvery    = time.Minute
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route.",
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys authenticated callers as "user:<uid>" and everyone else
// as "ip:<addr>". Authenticate must run before the limiter for the uid to be
// visible.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserIDFrom(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per caller. Safe for concurrent use; a
// single instance may be mounted on several groups and callers then share
// one budget across them.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   keyFunc
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	idleTTL   time.Duration
	sweepEach time.Duration
	lastSweep time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst. A burst <= 0 is treated as 1.
func NewRateLimiter(rps float64, burst int, key keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		key:       key,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		idleTTL:   defaultBucketIdleTTL,
		sweepEach: defaultSweepEvery,
	}
}

// limiterFor returns the bucket for key, creating it when missing. Idle
// buckets are swept first so a stale entry is replaced rather than revived.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.sweepEach {
		rl.sweepLocked(now)
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.idleTTL {
			delete(rl.buckets, k)
		}
	}
	rl.lastSweep = now
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay of a completed create.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the caller's budget. Replays skip the check. Rejections
// get 429 with Retry-After set to the whole seconds until a token frees up.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		res := rl.limiterFor(rl.key(c)).ReserveN(rl.now(), 1)
		wait := rate.InfDuration
		if res.OK() {
			wait = res.DelayFrom(rl.now())
			if wait == 0 {
				c.Next()
				return
			}
			res.CancelAt(rl.now())
		}
		// A zero rate never refills, so there is no meaningful wait to report.
		if wait == rate.InfDuration {
			c.Header("Retry-After", "1")
		} else {
			c.Header("Retry-After", retryAfter(wait))
		}

		rateLimited.WithLabelValues(routeLabel(c)).Inc()
		abortJSON(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
	}
}

// retryAfter renders d as delta-seconds, rounded up and at least 1.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
