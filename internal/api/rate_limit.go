package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/config"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware 限流中间件,所有客户端共享一个令牌桶
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
