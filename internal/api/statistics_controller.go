package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/service"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statisticsService service.StatisticsService
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statisticsService service.StatisticsService) *StatisticsController {
	return &StatisticsController{statisticsService: statisticsService}
}

// ByKind 按容器类型统计
// @Summary      按容器类型统计
// @Tags         统计
// @Produce      json
// @Success      200  {object}  Response
// @Router       /statistics/kinds [get]
func (c *StatisticsController) ByKind(ctx *gin.Context) {
	stats, err := c.statisticsService.GetInstanceStatisticsByKind()
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// ByTypeTag 按类型标签统计存活实例
func (c *StatisticsController) ByTypeTag(ctx *gin.Context) {
	stats, err := c.statisticsService.GetInstanceStatisticsByTypeTag()
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, stats)
}

// DefinitionUsage 组件定义使用排行
func (c *StatisticsController) DefinitionUsage(ctx *gin.Context) {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		Error(ctx, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
		return
	}

	usage, err := c.statisticsService.GetDefinitionUsage(limit)
	if err != nil {
		HandleError(ctx, err)
		return
	}
	Success(ctx, usage)
}
