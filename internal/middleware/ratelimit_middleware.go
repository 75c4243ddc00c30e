package middleware

import (
	"context"
	"net/http"
	"strconv"

	"inputfeed/internal/redis"
	"inputfeed/internal/transport/httpdto"
	"inputfeed/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ConnectLimiter decides whether a client address may open another stream.
type ConnectLimiter interface {
	Allow(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// StreamRateLimitMiddleware limits stream connection attempts per client IP.
// A limiter failure is logged and lets the request through.
func StreamRateLimitMiddleware(limiter ConnectLimiter, l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.Nop()
	}
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.Warnf("rate limit check for %s skipped: %v", c.ClientIP(), err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
