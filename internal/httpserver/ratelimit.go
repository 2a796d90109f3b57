package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware caps requests per client IP using a fixed window
// counter in Redis. A nil client disables limiting, so Redis stays an
// optional dependency. Redis outages fail open.
func RateLimitMiddleware(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if client == nil {
			ctx.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s", ctx.ClientIP())
		count, err := client.Incr(ctx.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			ctx.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx.Request.Context(), key, window)
		}
		if count > int64(limit) {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("rate_limited", "too many requests"))
			return
		}
		ctx.Next()
	}
}
