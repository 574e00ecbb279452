package repository

import (
	"github.com/pixelprecision/reticstudio/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Save(log *model.AuditLogModel) error
	FindByActor(actor string) ([]*model.AuditLogModel, error)
	FindByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error)
	FindByContainer(containerID string, limit int) ([]*model.AuditLogModel, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 保存审计日志
func (r *auditLogRepository) Save(log *model.AuditLogModel) error {
	return r.db.Save(log).Error
}

// FindByActor 根据操作人查找审计日志
func (r *auditLogRepository) FindByActor(actor string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("actor = ?", actor).Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// FindByResource 根据资源查找审计日志
func (r *auditLogRepository) FindByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// FindByContainer 查找容器的布局操作历史,最新的在前
func (r *auditLogRepository) FindByContainer(containerID string, limit int) ([]*model.AuditLogModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []*model.AuditLogModel
	err := r.db.Where("container_id = ?", containerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
