package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InstanceModel 组件实例数据模型
// 删除为软删除,被删除的行不参与排序
type InstanceModel struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)"`
	ContainerID  string         `gorm:"type:varchar(64);not null;index:idx_instances_bucket,priority:1"`
	DefinitionID string         `gorm:"type:varchar(64);index"` // 直接引用,旧数据为空
	TypeTag      string         `gorm:"type:varchar(32);not null"`
	Overrides    datatypes.JSON // JSON 对象,旧数据中可能是编码后的字符串
	Position     string         `gorm:"type:varchar(64);not null;index:idx_instances_bucket,priority:2"`
	Column       *int           `gorm:"column:column_no;index:idx_instances_bucket,priority:3"`
	Order        int            `gorm:"column:sort_order;not null;index:idx_instances_bucket,priority:4"`
	IsActive     bool           `gorm:"not null"`
	Visibility   string         `gorm:"type:varchar(16);not null;default:'all'"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName 指定表名
func (InstanceModel) TableName() string {
	return "component_instances"
}

// Validate 验证组件实例模型
func (im *InstanceModel) Validate() error {
	if im.ID == "" {
		return errors.New("instance ID is required")
	}
	if im.ContainerID == "" {
		return errors.New("container ID is required")
	}
	if im.TypeTag == "" {
		return errors.New("type tag is required")
	}
	if im.Position == "" {
		return errors.New("position is required")
	}
	if im.Order < 1 {
		return errors.New("order must be positive")
	}
	return nil
}
