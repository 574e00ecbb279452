package instance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pixelprecision/reticstudio/pkg/definition"
)

// Visibility 显示范围
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityDesktop Visibility = "desktop"
	VisibilityMobile  Visibility = "mobile"
)

// IsValid 判断显示范围是否合法
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityAll, VisibilityDesktop, VisibilityMobile:
		return true
	}
	return false
}

// 错误定义
var (
	ErrInstanceNotFound = errors.New("component instance not found")
	ErrInvalidPlacement = errors.New("invalid component placement")
	ErrInvalidInstance  = errors.New("invalid component instance")
)

// Instance 组件实例,定义在页面/页眉/页脚中的一次放置
type Instance struct {
	ID           string     `json:"id"`
	ContainerID  string     `json:"container_id"`
	DefinitionID string     `json:"definition_id,omitempty"` // 直接引用,优先于 overrides 中的旧式引用
	TypeTag      TypeTag    `json:"type_tag"`
	Overrides    Overrides  `json:"overrides,omitempty"`
	Position     string     `json:"position"`
	Column       *int       `json:"column,omitempty"`
	Order        int        `json:"order"`
	IsActive     bool       `json:"is_active"`
	Visibility   Visibility `json:"visibility"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewFromDefinition 从组件面板新增实例,将定义的默认值复制到新的 overrides 中
func NewFromDefinition(def *definition.Definition, tag TypeTag) (*Instance, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is required", ErrInvalidInstance)
	}
	if tag == "" {
		tag = TagPageComponent
	}
	if !tag.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTypeTag, tag)
	}

	overrides, err := NewOverrides(def.Defaults())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Instance{
		ID:           uuid.New().String(),
		DefinitionID: def.ID,
		TypeTag:      tag,
		Overrides:    overrides,
		IsActive:     true,
		Visibility:   VisibilityAll,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ColumnValue 返回列号,未设置时为 0
func (i *Instance) ColumnValue() int {
	if i.Column == nil {
		return 0
	}
	return *i.Column
}

// Validate 校验实例
func (i *Instance) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInstance)
	}
	if !i.TypeTag.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownTypeTag, i.TypeTag)
	}
	if i.Visibility != "" && !i.Visibility.IsValid() {
		return fmt.Errorf("%w: visibility %q", ErrInvalidInstance, i.Visibility)
	}
	return nil
}

// Clone 返回实例的深拷贝
func (i *Instance) Clone() *Instance {
	c := *i
	if i.Column != nil {
		col := *i.Column
		c.Column = &col
	}
	if i.Overrides != nil {
		c.Overrides = append(Overrides(nil), i.Overrides...)
	}
	return &c
}

// IntPtr 返回 int 指针
func IntPtr(v int) *int {
	return &v
}
