package instance

import (
	"errors"
	"fmt"
	"time"
)

// ContainerKind 容器类型
type ContainerKind string

const (
	KindPage   ContainerKind = "page"
	KindHeader ContainerKind = "header"
	KindFooter ContainerKind = "footer"
)

// IsValid 判断容器类型是否合法
func (k ContainerKind) IsValid() bool {
	switch k {
	case KindPage, KindHeader, KindFooter:
		return true
	}
	return false
}

// MaxColumns 容器允许的最大列数
const MaxColumns = 12

// 错误定义
var (
	ErrContainerNotFound  = errors.New("container not found")
	ErrInvalidContainer   = errors.New("invalid container")
	ErrDuplicateContainer = errors.New("container already exists")
)

// Container 页面、页眉或页脚,持有有序的组件实例和容器级设置
type Container struct {
	ID        string         `json:"id"`
	Kind      ContainerKind  `json:"kind"`
	Name      string         `json:"name"`
	Columns   int            `json:"columns"`
	Settings  map[string]any `json:"settings,omitempty"`
	Instances []*Instance    `json:"instances"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate 校验容器本身的字段,不校验实例排序
func (c *Container) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidContainer)
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContainer, c.Kind)
	}
	if c.Columns < 0 || c.Columns > MaxColumns {
		return fmt.Errorf("%w: columns must be between 0 and %d", ErrInvalidContainer, MaxColumns)
	}
	if c.Kind == KindFooter && c.Columns == 0 {
		return fmt.Errorf("%w: footer requires at least one column", ErrInvalidContainer)
	}
	return nil
}

// Find 按 ID 查找实例
func (c *Container) Find(instanceID string) (*Instance, int, error) {
	for i, inst := range c.Instances {
		if inst.ID == instanceID {
			return inst, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
}

// Clone 返回容器的深拷贝,布局变更在副本上进行,失败时原容器不受影响
func (c *Container) Clone() *Container {
	out := *c
	if c.Settings != nil {
		out.Settings = make(map[string]any, len(c.Settings))
		for k, v := range c.Settings {
			out.Settings[k] = v
		}
	}
	out.Instances = make([]*Instance, 0, len(c.Instances))
	for _, inst := range c.Instances {
		out.Instances = append(out.Instances, inst.Clone())
	}
	return &out
}
