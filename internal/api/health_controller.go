package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/database"
	"gorm.io/gorm"
)

// HealthController 健康检查控制器
type HealthController struct {
	db            *gorm.DB
	resolvedCache *cache.ResolvedCache
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, resolvedCache *cache.ResolvedCache) *HealthController {
	return &HealthController{
		db:            db,
		resolvedCache: resolvedCache,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if c.db != nil {
		if err := database.Ping(c.db); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 缓存不可用时解析仍可回源,只标记为降级
	if c.resolvedCache != nil {
		if err := c.checkCache(ctx.Request.Context()); err != nil {
			if status == "healthy" {
				status = "degraded"
			}
			checks["cache"] = "unhealthy: " + err.Error()
		} else {
			checks["cache"] = "healthy"
		}
	} else {
		checks["cache"] = "not configured"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// checkCache 检查缓存连接
func (c *HealthController) checkCache(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.resolvedCache.Ping(ctx)
}
