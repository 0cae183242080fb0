package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	defaultScansPerMin = 30
	scanRateKeyPrefix  = "rl:scan:"
	localLimiterTTL    = 10 * time.Minute
)

// ScanRateLimit caps scans per client IP per minute. With Redis the count is
// shared across instances in a fixed one-minute window; without it each
// instance keeps its own token buckets.
func ScanRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = defaultScansPerMin
	}
	if cache == nil {
		return localScanRateLimit(newIPLimiter(rate.Limit(float64(maxPerMin)/60), maxPerMin, localLimiterTTL))
	}
	return func(c *fiber.Ctx) error {
		key := scanRateKeyPrefix + c.IP()
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many scans, try again later")
		}
		return c.Next()
	}
}

func localScanRateLimit(limiter *ipLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.allow(c.IP()) {
			return fiber.NewError(http.StatusTooManyRequests, "too many scans, try again later")
		}
		return c.Next()
	}
}

type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	entries map[string]*ipBucket
}

type ipBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(limit rate.Limit, burst int, ttl time.Duration) *ipLimiter {
	return &ipLimiter{limit: limit, burst: burst, ttl: ttl, entries: make(map[string]*ipBucket)}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.entries[ip]
	if b == nil {
		b = &ipBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = b
	}
	b.lastSeen = now

	for k, v := range l.entries {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.entries, k)
		}
	}
	return b.lim.AllowN(now, 1)
}
