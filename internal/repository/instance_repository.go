package repository

import (
	"github.com/pixelprecision/reticstudio/internal/model"
	"gorm.io/gorm"
)

// InstanceRepository 组件实例查询仓储
// 实例的写入只经过容器存储,这里只提供跨容器的只读查询
type InstanceRepository interface {
	CountByDefinition(definitionID string) (int64, error)
	CountByDefinitions(definitionIDs []string) (map[string]int64, error)
	FindRemoved(containerID string) ([]*model.InstanceModel, error)
}

// instanceRepository 组件实例仓储实现
type instanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建组件实例仓储
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

// CountByDefinition 统计引用某个定义的未删除实例数
func (r *instanceRepository) CountByDefinition(definitionID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.InstanceModel{}).
		Where("definition_id = ?", definitionID).
		Count(&count).Error
	return count, err
}

// CountByDefinitions 批量统计定义的使用次数
func (r *instanceRepository) CountByDefinitions(definitionIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(definitionIDs))
	if len(definitionIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		DefinitionID string
		Count        int64
	}
	err := r.db.Model(&model.InstanceModel{}).
		Select("definition_id, COUNT(*) AS count").
		Where("definition_id IN ?", definitionIDs).
		Group("definition_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.DefinitionID] = row.Count
	}
	return counts, nil
}

// FindRemoved 查找容器中已软删除的实例,最近删除的在前
func (r *instanceRepository) FindRemoved(containerID string) ([]*model.InstanceModel, error) {
	var instances []*model.InstanceModel
	err := r.db.Unscoped().
		Where("container_id = ? AND deleted_at IS NOT NULL", containerID).
		Order("deleted_at DESC").
		Find(&instances).Error
	return instances, err
}
