package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/cache"
	"github.com/localmind/backend/internal/errors"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/util"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every instance.
// With a nil client it falls back to the in-memory token bucket.
func RedisRateLimitMiddleware(rc *cache.RedisClient, config RateLimitConfig) gin.HandlerFunc {
	config = config.withDefaults()
	if rc == nil {
		logger.Log.Info("Redis unavailable, using in-memory rate limiter", zap.String("limiter", config.Name))
		return NewRateLimiter(config)
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("localmind:ratelimit:%s:%s", config.Name, config.KeyFunc(c))
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rc.IncrWindow(ctx, key, config.Window)
		if err != nil {
			// fail closed: a broken limiter must not open the upstream model to floods
			logger.Log.Error("Rate limit check failed, rejecting request",
				logger.WithIP(c.ClientIP()),
				zap.String("limiter", config.Name),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.ServiceUnavailable("rate limiter"))
			return
		}

		if count > int64(config.Limit) {
			retryAfter := int(config.Window.Seconds())
			if ttl, err := rc.TTL(ctx, key); err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds()) + 1
			}
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(c.ClientIP()),
				zap.String("limiter", config.Name),
				zap.Int("max_requests", config.Limit),
				zap.Int64("current_requests", count),
			)
			rejectRateLimited(c, config, retryAfter, "redis")
			return
		}

		c.Next()
	}
}
