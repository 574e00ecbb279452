package repository

import (
	"fmt"
	"strings"

	"github.com/pixelprecision/reticstudio/internal/model"
	"github.com/pixelprecision/reticstudio/internal/utils"
	"gorm.io/gorm"
)

// ContainerFilter 容器列表查询过滤器
type ContainerFilter struct {
	Kind     string
	Search   string
	Page     int
	PageSize int
	SortBy   string
	Order    string // asc/desc
}

// ContainerRepository 容器列表查询仓储
type ContainerRepository interface {
	List(filter *ContainerFilter) ([]*model.ContainerModel, int64, error)
}

// containerRepository 容器仓储实现
type containerRepository struct {
	db *gorm.DB
}

// NewContainerRepository 创建容器仓储
func NewContainerRepository(db *gorm.DB) ContainerRepository {
	return &containerRepository{db: db}
}

// List 分页查询容器(不加载实例)
func (r *containerRepository) List(filter *ContainerFilter) ([]*model.ContainerModel, int64, error) {
	if filter == nil {
		filter = &ContainerFilter{}
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.SortBy == "" {
		filter.SortBy = "created_at"
	}
	if filter.Order == "" {
		filter.Order = "desc"
	}

	// 排序字段拼接进 SQL,必须先校验
	if err := utils.ValidateSortField(filter.SortBy); err != nil {
		return nil, 0, fmt.Errorf("invalid sort field: %w", err)
	}
	if err := utils.ValidateSortOrder(filter.Order); err != nil {
		return nil, 0, fmt.Errorf("invalid sort order: %w", err)
	}

	query := r.db.Model(&model.ContainerModel{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count containers: %w", err)
	}

	var containers []*model.ContainerModel
	err := query.
		Order(fmt.Sprintf("%s %s", filter.SortBy, strings.ToUpper(filter.Order))).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&containers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find containers: %w", err)
	}
	return containers, total, nil
}
