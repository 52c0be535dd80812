package middleware

import (
	"context"
	"strconv"
	"time"

	redisStore "engagement-rewards/internal/adapter/storage/redis"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Throttle is the fixed-window counter behind RateLimiter.
type Throttle interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule caps one caller at Limit requests per Window.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the HTTP throttles keyed by route group.
// They are independent of the per-user daily submission limit.
func DefaultRateLimitRules() map[string]RateLimitRule {
	perMinute := func(n int64) RateLimitRule { return RateLimitRule{Limit: n, Window: time.Minute} }
	return map[string]RateLimitRule{
		"submissions": perMinute(30),
		"videos":      perMinute(30),
		"withdrawals": perMinute(10),
		"read":        perMinute(120),
		"admin":       perMinute(300),
		"ws":          perMinute(20),
	}
}

// RateLimiter throttles one route group. When the counter store is
// unreachable the request is let through and a warning is logged.
func RateLimiter(store Throttle, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := throttleKey(c) + ":" + group
		res, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit store unavailable, request not throttled")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt, 10))
		if res.Allowed {
			c.Next()
			return
		}

		wait := res.ResetAt - time.Now().Unix()
		if wait < 1 {
			wait = 1
		}
		h.Set("Retry-After", strconv.FormatInt(wait, 10))
		response.Error(c, apperror.ErrRateLimitExceeded())
		c.Abort()
	}
}

// throttleKey counts authenticated callers per user and everyone else per IP.
func throttleKey(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
