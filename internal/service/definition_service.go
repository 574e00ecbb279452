package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/internal/repository"
	"github.com/pixelprecision/reticstudio/internal/utils"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"github.com/sirupsen/logrus"
)

// DefinitionService 组件定义服务接口
type DefinitionService interface {
	Create(ctx context.Context, req *CreateDefinitionRequest) (*definition.Definition, error)
	Get(slug string) (*DefinitionView, error)
	List(category string, includeInactive bool) ([]*DefinitionView, error)
	Update(ctx context.Context, slug string, req *UpdateDefinitionRequest) (*definition.Definition, error)
	Deactivate(ctx context.Context, slug string) error
	Activate(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error

	// OnChange 注册定义变更回调
	OnChange(hook func(ctx context.Context, slug string))
}

// CreateDefinitionRequest 创建组件定义请求
type CreateDefinitionRequest struct {
	Slug        string          `json:"slug" binding:"required,max=64"`
	Name        string          `json:"name" binding:"required,max=255"`
	Description string          `json:"description" binding:"max=1000"`
	Category    string          `json:"category" binding:"max=64"`
	Schema      schema.Schema   `json:"schema"`
	Template    json.RawMessage `json:"template"`
	IsActive    *bool           `json:"is_active"` // 默认启用
}

// UpdateDefinitionRequest 更新组件定义请求,为空的字段保持不变
type UpdateDefinitionRequest struct {
	Name        *string         `json:"name" binding:"omitempty,max=255"`
	Description *string         `json:"description" binding:"omitempty,max=1000"`
	Category    *string         `json:"category" binding:"omitempty,max=64"`
	Schema      schema.Schema   `json:"schema"`
	Template    json.RawMessage `json:"template"`
}

// DefinitionView 组件定义及其使用情况
type DefinitionView struct {
	*definition.Definition
	UsageCount int64 `json:"usage_count"` // 引用该定义的存活实例数
}

// definitionService 组件定义服务实现
type definitionService struct {
	registry     definition.Registry
	instanceRepo repository.InstanceRepository
	auditLogSvc  AuditLogService

	mu    sync.RWMutex
	hooks []func(ctx context.Context, slug string)
}

// NewDefinitionService 创建组件定义服务
func NewDefinitionService(registry definition.Registry, instanceRepo repository.InstanceRepository, auditLogSvc AuditLogService) DefinitionService {
	return &definitionService{
		registry:     registry,
		instanceRepo: instanceRepo,
		auditLogSvc:  auditLogSvc,
	}
}

// OnChange 注册定义变更回调
func (s *definitionService) OnChange(hook func(ctx context.Context, slug string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *definitionService) changed(ctx context.Context, action string, def *definition.Definition) {
	s.mu.RLock()
	hooks := make([]func(context.Context, string), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, def.Slug)
	}

	if s.auditLogSvc != nil {
		details := map[string]interface{}{"slug": def.Slug, "version": def.Version}
		if err := s.auditLogSvc.RecordAction(ctx, action, model.ResourceDefinition, def.ID, "", details); err != nil {
			logrus.WithError(err).WithField("slug", def.Slug).Warn("Failed to record audit log")
		}
	}
}

// Create 创建组件定义
func (s *definitionService) Create(ctx context.Context, req *CreateDefinitionRequest) (*definition.Definition, error) {
	if err := utils.ValidateName(req.Name); err != nil {
		return nil, err
	}

	def := &definition.Definition{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Schema:      req.Schema,
		Template:    req.Template,
		IsActive:    true,
	}
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}
	if def.Schema == nil {
		def.Schema = schema.Schema{}
	}

	// 通过 API 创建的定义不是系统定义
	if err := s.registry.Register(def); err != nil {
		return nil, err
	}

	s.changed(ctx, "create", def)
	return def, nil
}

// Get 获取组件定义及其使用次数
func (s *definitionService) Get(slug string) (*DefinitionView, error) {
	def, err := s.registry.Get(slug)
	if err != nil {
		return nil, err
	}
	count, err := s.instanceRepo.CountByDefinition(def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count definition usage: %w", err)
	}
	return &DefinitionView{Definition: def, UsageCount: count}, nil
}

// List 列出组件定义,默认只包括启用的(组件面板)
func (s *definitionService) List(category string, includeInactive bool) ([]*DefinitionView, error) {
	var (
		defs []*definition.Definition
		err  error
	)
	if includeInactive {
		defs, err = s.registry.ListAll()
		if err == nil && category != "" {
			filtered := defs[:0]
			for _, def := range defs {
				if def.Category == category {
					filtered = append(filtered, def)
				}
			}
			defs = filtered
		}
	} else {
		defs, err = s.registry.ListActive(category)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	counts, err := s.instanceRepo.CountByDefinitions(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count definition usage: %w", err)
	}

	views := make([]*DefinitionView, 0, len(defs))
	for _, def := range defs {
		views = append(views, &DefinitionView{Definition: def, UsageCount: counts[def.ID]})
	}
	return views, nil
}

// Update 更新组件定义
func (s *definitionService) Update(ctx context.Context, slug string, req *UpdateDefinitionRequest) (*definition.Definition, error) {
	def, err := s.registry.Get(slug)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := utils.ValidateName(*req.Name); err != nil {
			return nil, err
		}
		def.Name = *req.Name
	}
	if req.Description != nil {
		def.Description = *req.Description
	}
	if req.Category != nil {
		def.Category = *req.Category
	}
	if req.Schema != nil {
		def.Schema = req.Schema
	}
	if req.Template != nil {
		def.Template = req.Template
	}

	if err := s.registry.Update(def); err != nil {
		return nil, err
	}

	s.changed(ctx, "update", def)
	return def, nil
}

// Deactivate 停用组件定义,已有实例不受影响
func (s *definitionService) Deactivate(ctx context.Context, slug string) error {
	return s.toggle(ctx, slug, "deactivate", s.registry.Deactivate)
}

// Activate 启用组件定义
func (s *definitionService) Activate(ctx context.Context, slug string) error {
	return s.toggle(ctx, slug, "activate", s.registry.Activate)
}

// Delete 删除组件定义,引用它的实例解析为孤立占位
func (s *definitionService) Delete(ctx context.Context, slug string) error {
	return s.toggle(ctx, slug, "delete", s.registry.Delete)
}

func (s *definitionService) toggle(ctx context.Context, slug, action string, fn func(string) error) error {
	def, err := s.registry.Get(slug)
	if err != nil {
		return err
	}
	if err := fn(slug); err != nil {
		return err
	}
	s.changed(ctx, action, def)
	return nil
}
