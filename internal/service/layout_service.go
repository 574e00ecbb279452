package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixelprecision/reticstudio/internal/metrics"
	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/internal/repository"
	"github.com/pixelprecision/reticstudio/internal/utils"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/layout"
	"github.com/sirupsen/logrus"
)

// 错误定义
var (
	ErrDefinitionInactive = errors.New("component definition is inactive")
	ErrDefinitionRequired = errors.New("a definition reference is required for this type tag")
)

// 布局操作名,用于审计、指标和推送事件
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpInsert   = "insert"
	OpRemove   = "remove"
	OpMove     = "move"
	OpReorder  = "reorder"
	OpSettings = "settings"
	OpFlags    = "flags"
)

// defaultFooterColumns 创建页脚时未指定列数使用的默认值
const defaultFooterColumns = 3

// ChangeNotifier 容器变更通知
type ChangeNotifier interface {
	ContainerChanged(containerID, op, instanceID string)
}

// LayoutService 布局编辑服务接口
type LayoutService interface {
	CreateContainer(ctx context.Context, req *CreateContainerRequest) (*instance.Container, error)
	GetContainer(ctx context.Context, id string) (*instance.Container, error)
	ListContainers(filter *repository.ContainerFilter) (*ContainerListResponse, error)
	UpdateContainer(ctx context.Context, id string, req *UpdateContainerRequest) (*instance.Container, error)
	DeleteContainer(ctx context.Context, id string) error

	AddInstance(ctx context.Context, containerID string, req *AddInstanceRequest) (*instance.Instance, error)
	RemoveInstance(ctx context.Context, containerID string, instanceID string) error
	MoveInstance(ctx context.Context, containerID string, instanceID string, req *MoveInstanceRequest) (*instance.Instance, error)
	ReorderBucket(ctx context.Context, containerID string, req *ReorderRequest) (*instance.Container, error)
	UpdateSettings(ctx context.Context, containerID string, instanceID string, req *UpdateSettingsRequest) (*instance.Instance, error)
	UpdateFlags(ctx context.Context, containerID string, instanceID string, req *UpdateFlagsRequest) (*instance.Instance, error)

	ListRemoved(containerID string) ([]*model.InstanceModel, error)
	History(containerID string, limit int) ([]*model.AuditLogModel, error)
}

// CreateContainerRequest 创建容器请求
type CreateContainerRequest struct {
	ID       string         `json:"id" binding:"omitempty,max=64"`
	Kind     string         `json:"kind" binding:"required,oneof=page header footer"`
	Name     string         `json:"name" binding:"required,max=255"`
	Columns  *int           `json:"columns" binding:"omitempty,min=0,max=12"`
	Settings map[string]any `json:"settings"`
}

// UpdateContainerRequest 更新容器请求,为空的字段保持不变
type UpdateContainerRequest struct {
	Name     *string        `json:"name" binding:"omitempty,max=255"`
	Columns  *int           `json:"columns" binding:"omitempty,min=0,max=12"`
	Settings map[string]any `json:"settings"` // 整体替换
}

// AddInstanceRequest 从组件面板添加实例
// 定义可以通过 definition_id 或 definition_slug 指定,都为空时使用类型标签的内置定义
type AddInstanceRequest struct {
	DefinitionID   string         `json:"definition_id" binding:"omitempty,max=64"`
	DefinitionSlug string         `json:"definition_slug" binding:"omitempty,max=64"`
	TypeTag        string         `json:"type_tag" binding:"omitempty,max=32"`
	Overrides      map[string]any `json:"overrides"` // 覆盖在定义默认值之上
	Position       string         `json:"position" binding:"required,max=64"`
	Column         *int           `json:"column" binding:"omitempty,min=1"`
	Index          *int           `json:"index"`
	Visibility     string         `json:"visibility" binding:"omitempty,oneof=all desktop mobile"`
}

// MoveInstanceRequest 移动实例请求
type MoveInstanceRequest struct {
	ContainerID string `json:"container_id" binding:"omitempty,max=64"` // 只支持同容器移动
	Position    string `json:"position" binding:"required,max=64"`
	Column      *int   `json:"column"`
	Index       *int   `json:"index"`
}

// ReorderRequest 分组重排请求
type ReorderRequest struct {
	Position    string   `json:"position" binding:"required,max=64"`
	Column      *int     `json:"column"`
	InstanceIDs []string `json:"instance_ids" binding:"required"`
}

// UpdateSettingsRequest 更新实例属性,值为 null 的键被删除并恢复为默认值
type UpdateSettingsRequest struct {
	Overrides map[string]any `json:"overrides" binding:"required"`
}

// UpdateFlagsRequest 更新实例开关
type UpdateFlagsRequest struct {
	IsActive   *bool   `json:"is_active"`
	Visibility *string `json:"visibility" binding:"omitempty,oneof=all desktop mobile"`
}

// ContainerSummary 容器列表项
type ContainerSummary struct {
	ID        string                 `json:"id"`
	Kind      instance.ContainerKind `json:"kind"`
	Name      string                 `json:"name"`
	Columns   int                    `json:"columns"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ContainerListResponse 容器列表响应
type ContainerListResponse struct {
	Data       []*ContainerSummary
	Pagination PaginationInfo
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int
	PageSize  int
	Total     int64
	TotalPage int
}

// layoutService 布局编辑服务实现
type layoutService struct {
	store         instance.Store
	registry      definition.Registry
	containerRepo repository.ContainerRepository
	instanceRepo  repository.InstanceRepository
	auditLogSvc   AuditLogService
	notifier      ChangeNotifier

	// 同一容器的变更串行执行
	locks sync.Map
}

// NewLayoutService 创建布局编辑服务
func NewLayoutService(
	store instance.Store,
	registry definition.Registry,
	containerRepo repository.ContainerRepository,
	instanceRepo repository.InstanceRepository,
	auditLogSvc AuditLogService,
	notifier ChangeNotifier,
) LayoutService {
	return &layoutService{
		store:         store,
		registry:      registry,
		containerRepo: containerRepo,
		instanceRepo:  instanceRepo,
		auditLogSvc:   auditLogSvc,
		notifier:      notifier,
	}
}

func (s *layoutService) lock(containerID string) func() {
	val, _ := s.locks.LoadOrStore(containerID, &sync.Mutex{})
	mu := val.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// mutate 加载容器,执行变更,校验排序后以单个事务保存
// fn 返回受影响的实例 ID,用于审计和推送
func (s *layoutService) mutate(ctx context.Context, containerID, op string, details map[string]interface{}, fn func(c *instance.Container) (string, error)) (*instance.Container, error) {
	unlock := s.lock(containerID)
	defer unlock()

	c, err := s.store.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	// 旧数据中可能存在重复或不连续的顺序,先按 (order, created_at, id) 修正
	layout.Normalize(c)

	instanceID, err := fn(c)
	if err == nil {
		err = layout.Check(c)
	}
	metrics.RecordLayoutMutation(op, err)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveContainer(ctx, c); err != nil {
		return nil, err
	}

	resourceType, resourceID := model.ResourceContainer, containerID
	if instanceID != "" {
		resourceType, resourceID = model.ResourceInstance, instanceID
	}
	s.record(ctx, op, resourceType, resourceID, containerID, details)
	s.notify(containerID, op, instanceID)
	return c, nil
}

func (s *layoutService) record(ctx context.Context, op, resourceType, resourceID, containerID string, details map[string]interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	if err := s.auditLogSvc.RecordAction(ctx, op, resourceType, resourceID, containerID, details); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"container_id": containerID,
			"op":           op,
		}).Warn("Failed to record audit log")
	}
}

func (s *layoutService) notify(containerID, op, instanceID string) {
	if s.notifier != nil {
		s.notifier.ContainerChanged(containerID, op, instanceID)
	}
}

// CreateContainer 创建容器
func (s *layoutService) CreateContainer(ctx context.Context, req *CreateContainerRequest) (*instance.Container, error) {
	if err := utils.ValidateName(req.Name); err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	} else if err := utils.ValidateID(id); err != nil {
		return nil, err
	}

	c := &instance.Container{
		ID:        id,
		Kind:      instance.ContainerKind(req.Kind),
		Name:      req.Name,
		Settings:  req.Settings,
		Instances: []*instance.Instance{},
	}
	if req.Columns != nil {
		c.Columns = *req.Columns
	} else if c.Kind == instance.KindFooter {
		c.Columns = defaultFooterColumns
	}

	err := s.store.CreateContainer(ctx, c)
	metrics.RecordLayoutMutation(OpCreate, err)
	if err != nil {
		return nil, err
	}

	s.record(ctx, OpCreate, model.ResourceContainer, c.ID, c.ID, map[string]interface{}{"kind": c.Kind, "name": c.Name, "columns": c.Columns})
	return c, nil
}

// GetContainer 获取容器及其实例
func (s *layoutService) GetContainer(ctx context.Context, id string) (*instance.Container, error) {
	c, err := s.store.LoadContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	layout.Normalize(c)
	return c, nil
}

// ListContainers 分页查询容器
func (s *layoutService) ListContainers(filter *repository.ContainerFilter) (*ContainerListResponse, error) {
	if filter == nil {
		filter = &repository.ContainerFilter{}
	}
	containers, total, err := s.containerRepo.List(filter)
	if err != nil {
		return nil, err
	}

	data := make([]*ContainerSummary, 0, len(containers))
	for _, cm := range containers {
		data = append(data, &ContainerSummary{
			ID:        cm.ID,
			Kind:      instance.ContainerKind(cm.Kind),
			Name:      cm.Name,
			Columns:   cm.Columns,
			CreatedAt: cm.CreatedAt,
			UpdatedAt: cm.UpdatedAt,
		})
	}

	totalPage := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPage++
	}
	return &ContainerListResponse{
		Data: data,
		Pagination: PaginationInfo{
			Page:      filter.Page,
			PageSize:  filter.PageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	}, nil
}

// UpdateContainer 更新容器名称、列数和设置
func (s *layoutService) UpdateContainer(ctx context.Context, id string, req *UpdateContainerRequest) (*instance.Container, error) {
	details := map[string]interface{}{}
	return s.mutate(ctx, id, OpUpdate, details, func(c *instance.Container) (string, error) {
		if req.Name != nil {
			if err := utils.ValidateName(*req.Name); err != nil {
				return "", err
			}
			c.Name = *req.Name
			details["name"] = c.Name
		}
		if req.Columns != nil {
			if err := layout.SetColumns(c, *req.Columns); err != nil {
				return "", err
			}
			details["columns"] = c.Columns
		}
		if req.Settings != nil {
			c.Settings = req.Settings
			details["settings"] = true
		}
		return "", c.Validate()
	})
}

// DeleteContainer 删除容器
func (s *layoutService) DeleteContainer(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	err := s.store.DeleteContainer(ctx, id)
	metrics.RecordLayoutMutation(OpDelete, err)
	if err != nil {
		return err
	}
	s.record(ctx, OpDelete, model.ResourceContainer, id, id, nil)
	s.notify(id, OpDelete, "")
	return nil
}

// AddInstance 从组件面板添加实例
// 定义的默认值被复制为新实例的 overrides,请求中的 overrides 覆盖其上
func (s *layoutService) AddInstance(ctx context.Context, containerID string, req *AddInstanceRequest) (*instance.Instance, error) {
	tag := instance.TypeTag(req.TypeTag)
	if tag == "" {
		tag = instance.TagPageComponent
	}
	behavior, ok := instance.LookupBehavior(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", instance.ErrUnknownTypeTag, tag)
	}

	def, err := s.paletteDefinition(req, behavior)
	if err != nil {
		return nil, err
	}

	inst, err := instance.NewFromDefinition(def, tag)
	if err != nil {
		return nil, err
	}
	if len(req.Overrides) > 0 {
		values := def.Defaults()
		for k, v := range req.Overrides {
			values[k] = v
		}
		if inst.Overrides, err = instance.NewOverrides(values); err != nil {
			return nil, err
		}
	}
	if req.Visibility != "" {
		inst.Visibility = instance.Visibility(req.Visibility)
	}

	details := map[string]interface{}{
		"definition": def.Slug,
		"type_tag":   tag,
		"position":   req.Position,
	}
	_, err = s.mutate(ctx, containerID, OpInsert, details, func(c *instance.Container) (string, error) {
		target := layout.Target{Position: req.Position, Column: req.Column, Index: req.Index}
		if err := layout.Insert(c, inst, target); err != nil {
			return "", err
		}
		return inst.ID, nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// paletteDefinition 查找组件面板中被添加的定义,停用的定义不能被添加
func (s *layoutService) paletteDefinition(req *AddInstanceRequest, behavior instance.Behavior) (*definition.Definition, error) {
	var (
		def *definition.Definition
		err error
	)
	switch {
	case req.DefinitionID != "":
		def, err = s.registry.GetByID(req.DefinitionID)
	case req.DefinitionSlug != "":
		def, err = s.registry.Get(req.DefinitionSlug)
	case behavior.DefaultSlug != "":
		def, err = s.registry.Get(behavior.DefaultSlug)
	default:
		return nil, fmt.Errorf("%w: %s", ErrDefinitionRequired, behavior.Tag)
	}
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionInactive, def.Slug)
	}
	return def, nil
}

// RemoveInstance 移除实例
func (s *layoutService) RemoveInstance(ctx context.Context, containerID string, instanceID string) error {
	_, err := s.mutate(ctx, containerID, OpRemove, nil, func(c *instance.Container) (string, error) {
		if _, err := layout.Remove(c, instanceID); err != nil {
			return "", err
		}
		return instanceID, nil
	})
	return err
}

// MoveInstance 移动实例,同一分组内的调整也走相同路径
func (s *layoutService) MoveInstance(ctx context.Context, containerID string, instanceID string, req *MoveInstanceRequest) (*instance.Instance, error) {
	details := map[string]interface{}{"position": req.Position, "column": req.Column, "index": req.Index}
	c, err := s.mutate(ctx, containerID, OpMove, details, func(c *instance.Container) (string, error) {
		target := layout.Target{ContainerID: req.ContainerID, Position: req.Position, Column: req.Column, Index: req.Index}
		if err := layout.Move(c, instanceID, target); err != nil {
			return "", err
		}
		return instanceID, nil
	})
	if err != nil {
		return nil, err
	}
	inst, _, err := c.Find(instanceID)
	return inst, err
}

// ReorderBucket 按完整 ID 列表重排分组
func (s *layoutService) ReorderBucket(ctx context.Context, containerID string, req *ReorderRequest) (*instance.Container, error) {
	details := map[string]interface{}{"position": req.Position, "column": req.Column, "instance_ids": req.InstanceIDs}
	return s.mutate(ctx, containerID, OpReorder, details, func(c *instance.Container) (string, error) {
		return "", layout.ReorderBucket(c, req.Position, req.Column, req.InstanceIDs)
	})
}

// UpdateSettings 合并实例的 overrides
// 无法解析的旧数据按空对象处理,保存后即被修复
func (s *layoutService) UpdateSettings(ctx context.Context, containerID string, instanceID string, req *UpdateSettingsRequest) (*instance.Instance, error) {
	keys := make([]string, 0, len(req.Overrides))
	for k := range req.Overrides {
		keys = append(keys, k)
	}
	details := map[string]interface{}{"keys": keys}

	var updated *instance.Instance
	_, err := s.mutate(ctx, containerID, OpSettings, details, func(c *instance.Container) (string, error) {
		inst, _, err := c.Find(instanceID)
		if err != nil {
			return "", err
		}
		values, _ := inst.Overrides.Map()
		for k, v := range req.Overrides {
			if v == nil {
				delete(values, k)
				continue
			}
			values[k] = v
		}
		if inst.Overrides, err = instance.NewOverrides(values); err != nil {
			return "", err
		}
		inst.UpdatedAt = time.Now()
		updated = inst
		return instanceID, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateFlags 更新实例的启用状态和显示范围
func (s *layoutService) UpdateFlags(ctx context.Context, containerID string, instanceID string, req *UpdateFlagsRequest) (*instance.Instance, error) {
	details := map[string]interface{}{"is_active": req.IsActive, "visibility": req.Visibility}

	var updated *instance.Instance
	_, err := s.mutate(ctx, containerID, OpFlags, details, func(c *instance.Container) (string, error) {
		inst, _, err := c.Find(instanceID)
		if err != nil {
			return "", err
		}
		if req.IsActive != nil {
			inst.IsActive = *req.IsActive
		}
		if req.Visibility != nil {
			v := instance.Visibility(*req.Visibility)
			if !v.IsValid() {
				return "", fmt.Errorf("%w: visibility %q", instance.ErrInvalidInstance, v)
			}
			inst.Visibility = v
		}
		inst.UpdatedAt = time.Now()
		updated = inst
		return instanceID, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListRemoved 查询容器中已移除的实例
func (s *layoutService) ListRemoved(containerID string) ([]*model.InstanceModel, error) {
	return s.instanceRepo.FindRemoved(containerID)
}

// History 查询容器的操作历史
func (s *layoutService) History(containerID string, limit int) ([]*model.AuditLogModel, error) {
	if s.auditLogSvc == nil {
		return []*model.AuditLogModel{}, nil
	}
	return s.auditLogSvc.ListByContainer(containerID, limit)
}
