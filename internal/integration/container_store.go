package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbContainerStore 基于数据库的容器存储
type dbContainerStore struct {
	db *gorm.DB

	mu    sync.RWMutex
	hooks []instance.SaveHook
}

// NewContainerStore 创建容器存储
// 返回 pkg/instance.Store 接口实现
func NewContainerStore(db *gorm.DB) instance.Store {
	return &dbContainerStore{db: db}
}

// OnSave 注册保存回调
func (s *dbContainerStore) OnSave(hook instance.SaveHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *dbContainerStore) notify(ctx context.Context, containerID string) {
	s.mu.RLock()
	hooks := make([]instance.SaveHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, containerID)
	}
}

// CreateContainer 创建容器
func (s *dbContainerStore) CreateContainer(ctx context.Context, c *instance.Container) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	cm, err := toContainerModel(c)
	if err != nil {
		return err
	}
	instances, err := toInstanceModels(c)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&model.ContainerModel{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check container: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", instance.ErrDuplicateContainer, c.ID)
		}
		if err := tx.Omit(clause.Associations).Create(cm).Error; err != nil {
			return fmt.Errorf("failed to create container: %w", err)
		}
		if len(instances) > 0 {
			if err := tx.Create(&instances).Error; err != nil {
				return fmt.Errorf("failed to create instances: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, c.ID)
	return nil
}

// LoadContainer 加载容器及其存活实例,实例按 (order, created_at, id) 排序
func (s *dbContainerStore) LoadContainer(ctx context.Context, id string) (*instance.Container, error) {
	var cm model.ContainerModel
	err := s.db.WithContext(ctx).
		Preload("Instances", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&cm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", instance.ErrContainerNotFound, id)
		}
		return nil, fmt.Errorf("failed to load container %s: %w", id, err)
	}
	return fromContainerModel(&cm)
}

// SaveContainer 以单个事务保存容器
// 1. 更新容器字段
// 2. upsert 全部存活实例(包括恢复被软删除的行)
// 3. 软删除不在集合中的实例
func (s *dbContainerStore) SaveContainer(ctx context.Context, c *instance.Container) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()

	cm, err := toContainerModel(c)
	if err != nil {
		return err
	}
	instances, err := toInstanceModels(c)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.ContainerModel{}).
			Where("id = ?", c.ID).
			Updates(map[string]interface{}{
				"kind":       cm.Kind,
				"name":       cm.Name,
				"columns":    cm.Columns,
				"settings":   cm.Settings,
				"updated_at": cm.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update container: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", instance.ErrContainerNotFound, c.ID)
		}

		ids := make([]string, 0, len(instances))
		for i := range instances {
			ids = append(ids, instances[i].ID)
		}

		if len(instances) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&instances).Error; err != nil {
				return fmt.Errorf("failed to save instances: %w", err)
			}
		}

		// NOT IN 空集合会被渲染为 NOT IN (NULL),需单独处理
		removal := tx.Where("container_id = ?", c.ID)
		if len(ids) > 0 {
			removal = removal.Where("id NOT IN ?", ids)
		}
		if err := removal.Delete(&model.InstanceModel{}).Error; err != nil {
			return fmt.Errorf("failed to remove instances: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, c.ID)
	return nil
}

// DeleteContainer 软删除容器及其实例
func (s *dbContainerStore) DeleteContainer(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&model.ContainerModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete container: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", instance.ErrContainerNotFound, id)
		}
		return tx.Where("container_id = ?", id).Delete(&model.InstanceModel{}).Error
	})
	if err != nil {
		return err
	}

	s.notify(ctx, id)
	return nil
}

func toContainerModel(c *instance.Container) (*model.ContainerModel, error) {
	cm := &model.ContainerModel{
		ID:        c.ID,
		Kind:      string(c.Kind),
		Name:      c.Name,
		Columns:   c.Columns,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Settings != nil {
		data, err := json.Marshal(c.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		cm.Settings = datatypes.JSON(data)
	}
	return cm, nil
}

func toInstanceModels(c *instance.Container) ([]model.InstanceModel, error) {
	models := make([]model.InstanceModel, 0, len(c.Instances))
	for _, inst := range c.Instances {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		visibility := inst.Visibility
		if visibility == "" {
			visibility = instance.VisibilityAll
		}
		im := model.InstanceModel{
			ID:           inst.ID,
			ContainerID:  c.ID,
			DefinitionID: inst.DefinitionID,
			TypeTag:      string(inst.TypeTag),
			Overrides:    storedOverrides(inst.Overrides),
			Position:     inst.Position,
			Column:       inst.Column,
			Order:        inst.Order,
			IsActive:     inst.IsActive,
			Visibility:   string(visibility),
			CreatedAt:    inst.CreatedAt,
			UpdatedAt:    inst.UpdatedAt,
		}
		if err := im.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", instance.ErrInvalidInstance, err)
		}
		models = append(models, im)
	}
	return models, nil
}

// storedOverrides 返回可写入 JSON 列的 overrides
// 无法解析的旧数据包装为 JSON 字符串保存,读取时仍按格式错误处理
func storedOverrides(o instance.Overrides) datatypes.JSON {
	if len(o) == 0 {
		return datatypes.JSON("{}")
	}
	if json.Valid(o) {
		return datatypes.JSON(o)
	}
	wrapped, _ := json.Marshal(string(o))
	return datatypes.JSON(wrapped)
}

func fromContainerModel(cm *model.ContainerModel) (*instance.Container, error) {
	c := &instance.Container{
		ID:        cm.ID,
		Kind:      instance.ContainerKind(cm.Kind),
		Name:      cm.Name,
		Columns:   cm.Columns,
		Instances: make([]*instance.Instance, 0, len(cm.Instances)),
		CreatedAt: cm.CreatedAt,
		UpdatedAt: cm.UpdatedAt,
	}
	if len(cm.Settings) > 0 {
		if err := json.Unmarshal(cm.Settings, &c.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings of %s: %w", cm.ID, err)
		}
	}

	for i := range cm.Instances {
		im := &cm.Instances[i]
		c.Instances = append(c.Instances, &instance.Instance{
			ID:           im.ID,
			ContainerID:  im.ContainerID,
			DefinitionID: im.DefinitionID,
			TypeTag:      instance.TypeTag(im.TypeTag),
			Overrides:    instance.Overrides(im.Overrides),
			Position:     im.Position,
			Column:       im.Column,
			Order:        im.Order,
			IsActive:     im.IsActive,
			Visibility:   instance.Visibility(im.Visibility),
			CreatedAt:    im.CreatedAt,
			UpdatedAt:    im.UpdatedAt,
		})
	}
	return c, nil
}
