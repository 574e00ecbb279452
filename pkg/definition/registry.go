package definition

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry 组件定义注册表
type Registry interface {
	// Register 注册新定义,slug 已存在时返回 ErrDuplicateSlug
	Register(def *Definition) error

	// Get 按 slug 获取定义
	Get(slug string) (*Definition, error)

	// GetByID 按 ID 获取定义
	GetByID(id string) (*Definition, error)

	// ListActive 列出启用的定义,category 为空时不过滤,按注册顺序返回
	ListActive(category string) ([]*Definition, error)

	// ListAll 列出全部定义(包括停用的),按注册顺序返回
	ListAll() ([]*Definition, error)

	// Update 更新定义的可变字段(slug 不可变),版本号递增
	Update(def *Definition) error

	// Deactivate 停用定义,系统定义返回 ErrProtectedDefinition
	Deactivate(slug string) error

	// Activate 重新启用定义
	Activate(slug string) error

	// Delete 删除定义,系统定义返回 ErrProtectedDefinition
	Delete(slug string) error
}

// Prepare 为新定义补全 ID、版本号和时间戳,并执行校验
func Prepare(def *Definition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.Version == 0 {
		def.Version = 1
	}
	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	return def.Validate()
}

// memoryRegistry 基于内存的注册表
type memoryRegistry struct {
	mu     sync.RWMutex
	order  []string // 按注册顺序保存 slug
	bySlug map[string]*Definition
	byID   map[string]string // id -> slug
}

// NewMemoryRegistry 创建内存注册表
func NewMemoryRegistry() Registry {
	return &memoryRegistry{
		bySlug: make(map[string]*Definition),
		byID:   make(map[string]string),
	}
}

func (r *memoryRegistry) Register(def *Definition) error {
	if err := Prepare(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySlug[def.Slug]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSlug, def.Slug)
	}
	if _, exists := r.byID[def.ID]; exists {
		return fmt.Errorf("%w: id %s", ErrDuplicateSlug, def.ID)
	}

	r.bySlug[def.Slug] = def.Clone()
	r.byID[def.ID] = def.Slug
	r.order = append(r.order, def.Slug)
	return nil
}

func (r *memoryRegistry) Get(slug string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return def.Clone(), nil
}

func (r *memoryRegistry) GetByID(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slug, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return r.bySlug[slug].Clone(), nil
}

func (r *memoryRegistry) ListActive(category string) ([]*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, slug := range r.order {
		def := r.bySlug[slug]
		if !def.IsActive {
			continue
		}
		if category != "" && def.Category != category {
			continue
		}
		out = append(out, def.Clone())
	}
	return out, nil
}

func (r *memoryRegistry) ListAll() ([]*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, r.bySlug[slug].Clone())
	}
	return out, nil
}

func (r *memoryRegistry) Update(def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bySlug[def.Slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, def.Slug)
	}

	updated := def.Clone()
	updated.ID = current.ID
	updated.IsSystem = current.IsSystem
	updated.CreatedAt = current.CreatedAt
	updated.Version = current.Version + 1
	updated.UpdatedAt = time.Now()
	if err := updated.Validate(); err != nil {
		return err
	}

	r.bySlug[def.Slug] = updated
	*def = *updated.Clone()
	return nil
}

func (r *memoryRegistry) Deactivate(slug string) error {
	return r.setActive(slug, false)
}

func (r *memoryRegistry) Activate(slug string) error {
	return r.setActive(slug, true)
}

func (r *memoryRegistry) setActive(slug string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.bySlug[slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if !active && def.IsSystem {
		return fmt.Errorf("%w: %s", ErrProtectedDefinition, slug)
	}
	def.IsActive = active
	def.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRegistry) Delete(slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.bySlug[slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if def.IsSystem {
		return fmt.Errorf("%w: %s", ErrProtectedDefinition, slug)
	}

	delete(r.bySlug, slug)
	delete(r.byID, def.ID)
	for i, s := range r.order {
		if s == slug {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
