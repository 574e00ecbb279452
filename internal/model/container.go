package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContainerModel 页面/页眉/页脚数据模型
type ContainerModel struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)"`
	Kind      string         `gorm:"type:varchar(16);not null;index"` // page/header/footer
	Name      string         `gorm:"type:varchar(255);not null"`
	Columns   int            `gorm:"type:int;not null;default:0"`
	Settings  datatypes.JSON // 容器级设置
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Instances []InstanceModel `gorm:"foreignKey:ContainerID"`
}

// TableName 指定表名
func (ContainerModel) TableName() string {
	return "layout_containers"
}

// Validate 验证容器模型
func (cm *ContainerModel) Validate() error {
	if cm.ID == "" {
		return errors.New("container ID is required")
	}
	if cm.Kind == "" {
		return errors.New("container kind is required")
	}
	if cm.Name == "" {
		return errors.New("container name is required")
	}
	return nil
}
