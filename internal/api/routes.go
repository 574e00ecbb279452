package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/cache"
	"github.com/pixelprecision/reticstudio/internal/config"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/internal/websocket"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config        *config.Config
	DB            *gorm.DB
	Hub           *websocket.Hub // 为空时不注册 WebSocket 路由
	ResolvedCache *cache.ResolvedCache

	DefinitionService service.DefinitionService
	LayoutService     service.LayoutService
	ResolveService    service.ResolveService
	StatisticsService service.StatisticsService
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}

	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.ResolvedCache)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	// WebSocket 路由,编辑器订阅容器变更
	if deps.Hub != nil && deps.LayoutService != nil {
		router.GET("/ws/containers/:id", websocket.WebSocketHandler(deps.Hub, func(c *gin.Context, containerID string) bool {
			_, err := deps.LayoutService.GetContainer(c.Request.Context(), containerID)
			return err == nil
		}))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit))
	{
		// 组件定义路由
		if deps.DefinitionService != nil {
			definitionController := NewDefinitionController(deps.DefinitionService)
			definitions := v1.Group("/definitions")
			{
				definitions.POST("", definitionController.Create)
				definitions.GET("", definitionController.List)
				definitions.GET("/:slug", definitionController.Get)
				definitions.PUT("/:slug", definitionController.Update)
				definitions.DELETE("/:slug", definitionController.Delete)
				definitions.POST("/:slug/deactivate", definitionController.Deactivate)
				definitions.POST("/:slug/activate", definitionController.Activate)
			}
		}

		// 容器与布局编辑路由
		if deps.LayoutService != nil && deps.ResolveService != nil {
			containerController := NewContainerController(deps.LayoutService, deps.ResolveService)
			containers := v1.Group("/containers")
			{
				containers.POST("", containerController.Create)
				containers.GET("", containerController.List)
				containers.GET("/:id", containerController.Get)
				containers.PUT("/:id", containerController.Update)
				containers.DELETE("/:id", containerController.Delete)

				containers.POST("/:id/instances", containerController.AddInstance)
				containers.DELETE("/:id/instances/:instanceId", containerController.RemoveInstance)
				containers.POST("/:id/instances/:instanceId/move", containerController.MoveInstance)
				containers.PUT("/:id/instances/:instanceId/settings", containerController.UpdateSettings)
				containers.PUT("/:id/instances/:instanceId/flags", containerController.UpdateFlags)
				containers.GET("/:id/instances/:instanceId/resolved", containerController.Preview)
				containers.POST("/:id/reorder", containerController.Reorder)

				containers.GET("/:id/resolved", containerController.Resolved)
				containers.GET("/:id/removed", containerController.Removed)
				containers.GET("/:id/history", containerController.History)
			}
		}

		// 统计路由
		if deps.StatisticsService != nil {
			statisticsController := NewStatisticsController(deps.StatisticsService)
			statistics := v1.Group("/statistics")
			{
				statistics.GET("/kinds", statisticsController.ByKind)
				statistics.GET("/type-tags", statisticsController.ByTypeTag)
				statistics.GET("/definitions", statisticsController.DefinitionUsage)
			}
		}
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router
}
