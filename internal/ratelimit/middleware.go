package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware rejects callers over the limit with 429 and Retry-After.
//
// Key: sha256 of the client IP.
// The limiter failing is logged and the request is let through.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		d, err := l.Allow(c.Request.Context(), HashKey(c.ClientIP()))
		if err != nil {
			log.Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !d.Allowed {
			secs := int(d.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "too many requests",
				"retry_after": secs,
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}
