package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pixelprecision/reticstudio/internal/service"
)

// 请求头
const (
	HeaderRequestID = "X-Request-ID"
	HeaderActor     = "X-Actor" // 网关认证后写入的操作人
)

// RequestIDMiddleware 为每个请求分配请求 ID,客户端传入时沿用
// 请求 ID、客户端 IP、User-Agent 和操作人写入请求 context,供审计日志使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		ctx := service.WithRequestInfo(
			c.Request.Context(),
			requestID,
			c.ClientIP(),
			c.Request.UserAgent(),
			c.GetHeader(HeaderActor),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
