package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// dbDefinitionRegistry 基于数据库的组件定义注册表
type dbDefinitionRegistry struct {
	db *gorm.DB
}

// NewDefinitionRegistry 创建组件定义注册表
// 返回 pkg/definition.Registry 接口实现
func NewDefinitionRegistry(db *gorm.DB) definition.Registry {
	return &dbDefinitionRegistry{db: db}
}

// Register 注册组件定义
func (r *dbDefinitionRegistry) Register(def *definition.Definition) error {
	if err := definition.Prepare(def); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.DefinitionModel{}).
			Where("slug = ? OR id = ?", def.Slug, def.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check definition slug: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", definition.ErrDuplicateSlug, def.Slug)
		}

		// 注册顺序决定组件面板的展示顺序
		var maxSeq int64
		if err := tx.Model(&model.DefinitionModel{}).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read definition sequence: %w", err)
		}

		dm, err := toDefinitionModel(def)
		if err != nil {
			return err
		}
		dm.Seq = maxSeq + 1
		return tx.Create(dm).Error
	})
}

// Get 按 slug 获取组件定义
func (r *dbDefinitionRegistry) Get(slug string) (*definition.Definition, error) {
	dm, err := takeDefinition(r.db.Where("slug = ?", slug), slug)
	if err != nil {
		return nil, err
	}
	return fromDefinitionModel(dm)
}

// GetByID 按 ID 获取组件定义
func (r *dbDefinitionRegistry) GetByID(id string) (*definition.Definition, error) {
	dm, err := takeDefinition(r.db.Where("id = ?", id), "id "+id)
	if err != nil {
		return nil, err
	}
	return fromDefinitionModel(dm)
}

// ListActive 列出启用的组件定义
func (r *dbDefinitionRegistry) ListActive(category string) ([]*definition.Definition, error) {
	query := r.db.Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	return r.find(query)
}

// ListAll 列出全部组件定义
func (r *dbDefinitionRegistry) ListAll() ([]*definition.Definition, error) {
	return r.find(r.db)
}

func (r *dbDefinitionRegistry) find(query *gorm.DB) ([]*definition.Definition, error) {
	var models []model.DefinitionModel
	if err := query.Order("seq ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	defs := make([]*definition.Definition, 0, len(models))
	for i := range models {
		def, err := fromDefinitionModel(&models[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Update 更新组件定义,slug 不可变,版本号递增
func (r *dbDefinitionRegistry) Update(def *definition.Definition) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		current, err := takeDefinition(tx.Where("slug = ?", def.Slug), def.Slug)
		if err != nil {
			return err
		}

		def.ID = current.ID
		def.IsSystem = current.IsSystem
		def.CreatedAt = current.CreatedAt
		def.Version = current.Version + 1
		def.UpdatedAt = time.Now()
		if err := def.Validate(); err != nil {
			return err
		}

		dm, err := toDefinitionModel(def)
		if err != nil {
			return err
		}
		dm.Seq = current.Seq
		return tx.Save(dm).Error
	})
}

// Deactivate 停用组件定义
func (r *dbDefinitionRegistry) Deactivate(slug string) error {
	return r.setActive(slug, false)
}

// Activate 启用组件定义
func (r *dbDefinitionRegistry) Activate(slug string) error {
	return r.setActive(slug, true)
}

func (r *dbDefinitionRegistry) setActive(slug string, active bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		current, err := takeDefinition(tx.Where("slug = ?", slug), slug)
		if err != nil {
			return err
		}
		if !active && current.IsSystem {
			return fmt.Errorf("%w: %s", definition.ErrProtectedDefinition, slug)
		}
		return tx.Model(&model.DefinitionModel{}).
			Where("id = ?", current.ID).
			Updates(map[string]interface{}{"is_active": active, "updated_at": time.Now()}).Error
	})
}

// Delete 删除组件定义,已有实例保留引用,解析时按孤立处理
func (r *dbDefinitionRegistry) Delete(slug string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		current, err := takeDefinition(tx.Where("slug = ?", slug), slug)
		if err != nil {
			return err
		}
		if current.IsSystem {
			return fmt.Errorf("%w: %s", definition.ErrProtectedDefinition, slug)
		}
		return tx.Delete(&model.DefinitionModel{}, "id = ?", current.ID).Error
	})
}

// takeDefinition 查询单条定义,未命中返回 definition.ErrNotFound 且不产生 gorm 错误日志
func takeDefinition(query *gorm.DB, ref string) (*model.DefinitionModel, error) {
	var dm model.DefinitionModel
	result := query.Limit(1).Find(&dm)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load definition %s: %w", ref, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", definition.ErrNotFound, ref)
	}
	return &dm, nil
}

func toDefinitionModel(def *definition.Definition) (*model.DefinitionModel, error) {
	schemaJSON, err := json.Marshal(def.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	if def.Schema == nil {
		schemaJSON = []byte("[]")
	}

	dm := &model.DefinitionModel{
		ID:          def.ID,
		Slug:        def.Slug,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Schema:      datatypes.JSON(schemaJSON),
		IsSystem:    def.IsSystem,
		IsActive:    def.IsActive,
		Version:     def.Version,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}
	if len(def.Template) > 0 {
		dm.Template = datatypes.JSON(def.Template)
	}
	return dm, nil
}

func fromDefinitionModel(dm *model.DefinitionModel) (*definition.Definition, error) {
	var s schema.Schema
	if len(dm.Schema) > 0 {
		if err := json.Unmarshal(dm.Schema, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema of %s: %w", dm.Slug, err)
		}
	}

	def := &definition.Definition{
		ID:          dm.ID,
		Slug:        dm.Slug,
		Name:        dm.Name,
		Description: dm.Description,
		Category:    dm.Category,
		Schema:      s,
		IsSystem:    dm.IsSystem,
		IsActive:    dm.IsActive,
		Version:     dm.Version,
		CreatedAt:   dm.CreatedAt,
		UpdatedAt:   dm.UpdatedAt,
	}
	if len(dm.Template) > 0 {
		def.Template = json.RawMessage(dm.Template)
	}
	return def, nil
}
