package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/internal/repository"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/internal/utils"
)

// ContainerController 容器与布局编辑控制器
type ContainerController struct {
	layoutService  service.LayoutService
	resolveService service.ResolveService
}

// NewContainerController 创建容器控制器
func NewContainerController(layoutService service.LayoutService, resolveService service.ResolveService) *ContainerController {
	return &ContainerController{
		layoutService:  layoutService,
		resolveService: resolveService,
	}
}

// RemovedInstanceView 已移除的实例
type RemovedInstanceView struct {
	ID           string          `json:"id"`
	DefinitionID string          `json:"definition_id,omitempty"`
	TypeTag      string          `json:"type_tag"`
	Overrides    json.RawMessage `json:"overrides,omitempty"`
	Position     string          `json:"position"`
	Column       *int            `json:"column,omitempty"`
	RemovedAt    time.Time       `json:"removed_at"`
}

// HistoryEntryView 容器操作历史
type HistoryEntryView struct {
	ID           string          `json:"id"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	RequestID    string          `json:"request_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// containerID 读取并校验路径中的容器 ID
func containerID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid container id", err.Error())
		return "", false
	}
	return id, true
}

// Create 创建容器
// @Summary      创建容器
// @Description  创建页面、页眉或页脚
// @Tags         容器
// @Accept       json
// @Produce      json
// @Param        request body service.CreateContainerRequest true "容器信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /containers [post]
func (c *ContainerController) Create(ctx *gin.Context) {
	var req service.CreateContainerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}
	if req.ID != "" {
		if err := utils.ValidateID(req.ID); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid container id", err.Error())
			return
		}
	}

	container, err := c.layoutService.CreateContainer(ctx.Request.Context(), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, container)
}

// List 查询容器列表
// @Summary      查询容器列表
// @Tags         容器
// @Produce      json
// @Param        kind query string false "容器类型"
// @Param        search query string false "名称关键字"
// @Param        page query int false "页码"
// @Param        page_size query int false "每页数量"
// @Success      200  {object}  PaginatedResponse
// @Router       /containers [get]
func (c *ContainerController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if pageSize > 100 {
		pageSize = 100
	}

	filter := &repository.ContainerFilter{
		Kind:     ctx.Query("kind"),
		Search:   ctx.Query("search"),
		Page:     page,
		PageSize: pageSize,
		SortBy:   ctx.Query("sort_by"),
		Order:    ctx.Query("order"),
	}

	result, err := c.layoutService.ListContainers(filter)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Paginated(ctx, result.Data, PaginationInfo{
		Page:      result.Pagination.Page,
		PageSize:  result.Pagination.PageSize,
		Total:     result.Pagination.Total,
		TotalPage: result.Pagination.TotalPage,
	})
}

// Get 获取容器及其全部实例
func (c *ContainerController) Get(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	container, err := c.layoutService.GetContainer(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, container)
}

// Update 更新容器名称、列数或设置
// @Summary      更新容器
// @Description  减少列数时,被移除的列中不能有实例
// @Tags         容器
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Param        request body service.UpdateContainerRequest true "更新内容"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /containers/{id} [put]
func (c *ContainerController) Update(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.UpdateContainerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	container, err := c.layoutService.UpdateContainer(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, container)
}

// Delete 删除容器
func (c *ContainerController) Delete(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	if err := c.layoutService.DeleteContainer(ctx.Request.Context(), id); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// AddInstance 从组件面板添加实例
// @Summary      添加组件实例
// @Description  复制定义的默认值作为实例初始属性,插入到指定分组的指定位置
// @Tags         布局编辑
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Param        request body service.AddInstanceRequest true "放置信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /containers/{id}/instances [post]
func (c *ContainerController) AddInstance(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.AddInstanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	inst, err := c.layoutService.AddInstance(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Created(ctx, inst)
}

// RemoveInstance 移除实例,同组后续实例顺序前移
func (c *ContainerController) RemoveInstance(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	if err := c.layoutService.RemoveInstance(ctx.Request.Context(), id, ctx.Param("instanceId")); err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, nil)
}

// MoveInstance 移动实例
// @Summary      移动组件实例
// @Description  在同一容器内移动到目标分组的指定位置,源分组和目标分组都重新编号
// @Tags         布局编辑
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Param        instanceId path string true "实例 ID"
// @Param        request body service.MoveInstanceRequest true "目标位置"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Router       /containers/{id}/instances/{instanceId}/move [post]
func (c *ContainerController) MoveInstance(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.MoveInstanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	inst, err := c.layoutService.MoveInstance(ctx.Request.Context(), id, ctx.Param("instanceId"), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, inst)
}

// UpdateSettings 修改实例属性
func (c *ContainerController) UpdateSettings(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.UpdateSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	inst, err := c.layoutService.UpdateSettings(ctx.Request.Context(), id, ctx.Param("instanceId"), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, inst)
}

// UpdateFlags 修改实例启用状态和显示范围
func (c *ContainerController) UpdateFlags(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.UpdateFlagsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	inst, err := c.layoutService.UpdateFlags(ctx.Request.Context(), id, ctx.Param("instanceId"), &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, inst)
}

// Reorder 按给定顺序重排一个分组
// @Summary      重排分组
// @Description  instance_ids 必须恰好包含分组当前的全部实例
// @Tags         布局编辑
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Param        request body service.ReorderRequest true "新顺序"
// @Success      200  {object}  Response
// @Failure      422  {object}  ErrorResponse
// @Router       /containers/{id}/reorder [post]
func (c *ContainerController) Reorder(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	var req service.ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		HandleBindError(ctx, err)
		return
	}

	container, err := c.layoutService.ReorderBucket(ctx.Request.Context(), id, &req)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, container)
}

// Resolved 获取渲染用的解析结果
// @Summary      获取解析结果
// @Description  返回按分组排列、属性已合并并强制转换的容器内容,结果会被缓存
// @Tags         渲染
// @Produce      json
// @Param        id path string true "容器 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /containers/{id}/resolved [get]
func (c *ContainerController) Resolved(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	resolved, err := c.resolveService.ResolveContainer(ctx.Request.Context(), id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, resolved)
}

// Preview 预览单个实例的解析结果,不使用缓存
func (c *ContainerController) Preview(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	resolved, err := c.resolveService.PreviewInstance(ctx.Request.Context(), id, ctx.Param("instanceId"))
	if err != nil {
		HandleError(ctx, err)
		return
	}

	Success(ctx, resolved)
}

// Removed 查询容器中已移除的实例
func (c *ContainerController) Removed(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	models, err := c.layoutService.ListRemoved(id)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	views := make([]*RemovedInstanceView, 0, len(models))
	for _, m := range models {
		views = append(views, toRemovedInstanceView(m))
	}
	Success(ctx, views)
}

// History 查询容器的操作历史
func (c *ContainerController) History(ctx *gin.Context) {
	id, ok := containerID(ctx)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		Error(ctx, http.StatusBadRequest, "invalid limit", "limit must be between 1 and 500")
		return
	}

	logs, err := c.layoutService.History(id, limit)
	if err != nil {
		HandleError(ctx, err)
		return
	}

	views := make([]*HistoryEntryView, 0, len(logs))
	for _, l := range logs {
		views = append(views, &HistoryEntryView{
			ID:           l.ID,
			Actor:        l.Actor,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			RequestID:    l.RequestID,
			Details:      json.RawMessage(l.Details),
			CreatedAt:    l.CreatedAt,
		})
	}
	Success(ctx, views)
}

func toRemovedInstanceView(m *model.InstanceModel) *RemovedInstanceView {
	view := &RemovedInstanceView{
		ID:           m.ID,
		DefinitionID: m.DefinitionID,
		TypeTag:      m.TypeTag,
		Position:     m.Position,
		Column:       m.Column,
	}
	if json.Valid(m.Overrides) {
		view.Overrides = json.RawMessage(m.Overrides)
	}
	if m.DeletedAt.Valid {
		view.RemovedAt = m.DeletedAt.Time
	}
	return view
}
