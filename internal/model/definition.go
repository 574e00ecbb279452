package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// DefinitionModel 组件定义数据模型
type DefinitionModel struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)"`
	Slug        string         `gorm:"type:varchar(64);not null;uniqueIndex"` // 全局唯一,不可变
	Name        string         `gorm:"type:varchar(255);not null"`
	Description string         `gorm:"type:text"`
	Category    string         `gorm:"type:varchar(64);index"`
	Schema      datatypes.JSON `gorm:"not null"` // 有序的属性定义列表
	Template    datatypes.JSON // 渲染描述,不解析
	IsSystem    bool           `gorm:"not null"`
	IsActive    bool           `gorm:"not null;index"`
	Version     int            `gorm:"type:int;not null;default:1"`
	Seq         int64          `gorm:"not null;index"` // 注册顺序,组件面板按此排序
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (DefinitionModel) TableName() string {
	return "component_definitions"
}

// Validate 验证组件定义模型
func (dm *DefinitionModel) Validate() error {
	if dm.ID == "" {
		return errors.New("definition ID is required")
	}
	if dm.Slug == "" {
		return errors.New("definition slug is required")
	}
	if dm.Name == "" {
		return errors.New("definition name is required")
	}
	if len(dm.Schema) == 0 {
		return errors.New("definition schema is required")
	}
	return nil
}
