package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

// RateLimitMiddleware allows limit requests per window for each caller (user id,
// or client IP when anonymous). It is a fixed-window counter in redis and
// lets everything through when redis is not configured.
func RateLimitMiddleware(limit int, window time.Duration) gin.HandlerFunc {
	if window < time.Second {
		window = time.Minute
	}
	return func(c *gin.Context) {
		if limit <= 0 || config.GetRedisDB() == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		caller := c.ClientIP()
		if id, ok := utils.GetUserIdFromContext(ctx); ok && id > 0 {
			caller = fmt.Sprintf("user:%d", id)
		}
		slot := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", caller, slot)

		n, err := config.GetRedisCounter(ctx, key)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimitMiddleware", key, nil, err)
			c.Next()
			return
		}
		if n == 1 {
			config.GetRedisDB().Expire(ctx, key, window)
		}
		if n > int64(limit) {
			c.Header("Retry-After", fmt.Sprint(int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
