package service

import (
	"fmt"

	"github.com/pixelprecision/reticstudio/internal/model"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetInstanceStatisticsByKind() ([]*InstanceStatisticsByKind, error)
	GetInstanceStatisticsByTypeTag() ([]*InstanceStatisticsByTypeTag, error)
	GetDefinitionUsage(limit int) ([]*DefinitionUsage, error)
}

// InstanceStatisticsByKind 按容器类型统计
type InstanceStatisticsByKind struct {
	Kind       string `json:"kind"`
	Containers int64  `json:"containers"`
	Instances  int64  `json:"instances"`
}

// InstanceStatisticsByTypeTag 按类型标签统计
type InstanceStatisticsByTypeTag struct {
	TypeTag string `json:"type_tag"`
	Count   int64  `json:"count"`
}

// DefinitionUsage 组件定义使用次数
type DefinitionUsage struct {
	DefinitionID string `json:"definition_id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Count        int64  `json:"count"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetInstanceStatisticsByKind 按容器类型统计容器数和存活实例数
func (s *statisticsService) GetInstanceStatisticsByKind() ([]*InstanceStatisticsByKind, error) {
	var results []struct {
		Kind       string
		Containers int64
		Instances  int64
	}

	err := s.db.Model(&model.ContainerModel{}).
		Select("layout_containers.kind AS kind, COUNT(DISTINCT layout_containers.id) AS containers, COUNT(component_instances.id) AS instances").
		Joins("LEFT JOIN component_instances ON component_instances.container_id = layout_containers.id AND component_instances.deleted_at IS NULL").
		Group("layout_containers.kind").
		Order("layout_containers.kind").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get instance statistics by kind: %w", err)
	}

	stats := make([]*InstanceStatisticsByKind, 0, len(results))
	for _, r := range results {
		stats = append(stats, &InstanceStatisticsByKind{
			Kind:       r.Kind,
			Containers: r.Containers,
			Instances:  r.Instances,
		})
	}
	return stats, nil
}

// GetInstanceStatisticsByTypeTag 按类型标签统计存活实例
func (s *statisticsService) GetInstanceStatisticsByTypeTag() ([]*InstanceStatisticsByTypeTag, error) {
	var results []struct {
		TypeTag string
		Count   int64
	}

	err := s.db.Model(&model.InstanceModel{}).
		Select("type_tag, COUNT(*) AS count").
		Group("type_tag").
		Order("type_tag").
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get instance statistics by type tag: %w", err)
	}

	stats := make([]*InstanceStatisticsByTypeTag, 0, len(results))
	for _, r := range results {
		stats = append(stats, &InstanceStatisticsByTypeTag{TypeTag: r.TypeTag, Count: r.Count})
	}
	return stats, nil
}

// GetDefinitionUsage 统计使用最多的组件定义
// 只统计直接引用,旧式嵌入引用在 overrides 中,无法在 SQL 中可移植地统计
func (s *statisticsService) GetDefinitionUsage(limit int) ([]*DefinitionUsage, error) {
	if limit <= 0 {
		limit = 10
	}

	var results []*DefinitionUsage
	err := s.db.Model(&model.InstanceModel{}).
		Select("component_instances.definition_id AS definition_id, component_definitions.slug AS slug, component_definitions.name AS name, COUNT(*) AS count").
		Joins("JOIN component_definitions ON component_definitions.id = component_instances.definition_id").
		Group("component_instances.definition_id, component_definitions.slug, component_definitions.name").
		Order("count DESC, slug ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get definition usage: %w", err)
	}
	return results, nil
}
