// Package middleware holds gin middleware shared by the HTTP surface.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const limitExceeded = "too many requests, try again later"

// RateLimiter limits each client IP to r events per second with burst b,
// in process. Idle visitors are forgotten after idleTTL.
func RateLimiter(r rate.Limit, b int, idleTTL time.Duration) gin.HandlerFunc {
	type visitor struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		visitors  = make(map[string]*visitor)
		mu        sync.Mutex
		lastSweep time.Time
	)

	getVisitor := func(ip string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if idleTTL > 0 && now.Sub(lastSweep) > idleTTL {
			for key, v := range visitors {
				if now.Sub(v.lastSeen) > idleTTL {
					delete(visitors, key)
				}
			}
			lastSweep = now
		}
		v, exists := visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(r, b)}
			visitors[ip] = v
		}
		v.lastSeen = now
		return v.limiter
	}

	return func(c *gin.Context) {
		if !getVisitor(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": limitExceeded})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter enforces sliding-window limits shared by every
// instance through a Redis sorted set per key.
type DistributedRateLimiter struct {
	redis  redis.Cmdable
	logger *slog.Logger
	now    func() time.Time
}

// RateLimit allows Rate events per Window for each key KeyFunc derives.
type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

func NewDistributedRateLimiter(client redis.Cmdable, logger *slog.Logger) *DistributedRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DistributedRateLimiter{redis: client, logger: logger, now: time.Now}
}

// Middleware returns the handler enforcing limit under name. When Redis is
// unreachable the request is let through and the failure logged.
func (rl *DistributedRateLimiter) Middleware(name string, limit RateLimit) gin.HandlerFunc {
	keyFunc := limit.KeyFunc
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, keyFunc(c))

		allowed, err := rl.Allow(c.Request.Context(), key, limit)
		if err != nil {
			rl.logger.Warn("rate limiter unavailable", "limit", name, "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": limitExceeded})
			return
		}
		c.Next()
	}
}

// Allow records one event under key and reports whether it fits the window.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string, limit RateLimit) (bool, error) {
	now := rl.now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: uuid.NewString()})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}
	return countCmd.Val() < int64(limit.Rate), nil
}

// IPKeyFunc keys limits by client address.
func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
