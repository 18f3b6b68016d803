package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/logger"
)

// Limiter is satisfied by *ratelimit.FixedWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// RateLimit rejects requests over quota per client IP with 429. When the
// limiter errors the request goes through.
func RateLimit(l Limiter, scope string, log *logger.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ok, err := l.Allow(c.Request.Context(), scope+":"+c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}
		if !ok {
			c.Header("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many uploads, try again later",
			})
			return
		}
		c.Next()
	}
}
