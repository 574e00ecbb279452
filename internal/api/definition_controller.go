package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/internal/utils"
)

// DefinitionController 组件定义控制器
type DefinitionController struct {
	definitionService service.DefinitionService
}

// NewDefinitionController 创建组件定义控制器
func NewDefinitionController(definitionService service.DefinitionService) *DefinitionController {
	return &DefinitionController{
		definitionService: definitionService,
	}
}

// Create 创建组件定义
// @Summary      创建组件定义
// @Description  注册新的组件定义,slug 全局唯一
// @Tags         组件定义
// @Accept       json
// @Produce      json
// @Param        request body service.CreateDefinitionRequest true "组件定义"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /definitions [post]
func (c *DefinitionController) Create(ctx *gin.Context) {
	var req service.CreateDefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}
	req.Description = utils.SanitizeString(req.Description)

	def, err := c.definitionService.Create(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, def)
}

// List 查询组件定义
// @Summary      查询组件定义
// @Description  按注册顺序返回组件定义,默认只返回启用的定义
// @Tags         组件定义
// @Produce      json
// @Param        category query string false "分类"
// @Param        include_inactive query bool false "是否包含停用的定义"
// @Success      200  {object}  Response
// @Router       /definitions [get]
func (c *DefinitionController) List(ctx *gin.Context) {
	includeInactive := false
	if v := ctx.Query("include_inactive"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid include_inactive", err.Error())
			return
		}
		includeInactive = parsed
	}

	defs, err := c.definitionService.List(ctx.Query("category"), includeInactive)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, defs)
}

// Get 获取组件定义及其使用数
// @Summary      获取组件定义
// @Tags         组件定义
// @Produce      json
// @Param        slug path string true "组件定义 slug"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /definitions/{slug} [get]
func (c *DefinitionController) Get(ctx *gin.Context) {
	view, err := c.definitionService.Get(ctx.Param("slug"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, view)
}

// Update 更新组件定义
// @Summary      更新组件定义
// @Description  系统组件不可修改
// @Tags         组件定义
// @Accept       json
// @Produce      json
// @Param        slug path string true "组件定义 slug"
// @Param        request body service.UpdateDefinitionRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /definitions/{slug} [put]
func (c *DefinitionController) Update(ctx *gin.Context) {
	var req service.UpdateDefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}
	if req.Description != nil {
		sanitized := utils.SanitizeString(*req.Description)
		req.Description = &sanitized
	}

	def, err := c.definitionService.Update(ctx.Request.Context(), ctx.Param("slug"), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, def)
}

// Deactivate 停用组件定义,已放置的实例保留
func (c *DefinitionController) Deactivate(ctx *gin.Context) {
	if err := c.definitionService.Deactivate(ctx.Request.Context(), ctx.Param("slug")); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"slug": ctx.Param("slug"), "is_active": false})
}

// Activate 重新启用组件定义
func (c *DefinitionController) Activate(ctx *gin.Context) {
	if err := c.definitionService.Activate(ctx.Request.Context(), ctx.Param("slug")); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"slug": ctx.Param("slug"), "is_active": true})
}

// Delete 删除组件定义
// @Summary      删除组件定义
// @Description  引用该定义的实例在解析时产生 orphaned_definition 警告
// @Tags         组件定义
// @Produce      json
// @Param        slug path string true "组件定义 slug"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /definitions/{slug} [delete]
func (c *DefinitionController) Delete(ctx *gin.Context) {
	if err := c.definitionService.Delete(ctx.Request.Context(), ctx.Param("slug")); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}
