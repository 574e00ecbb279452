package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pixelprecision/reticstudio/pkg/schema"
)

// Definition 组件定义,组件面板中的一个条目
type Definition struct {
	ID          string          `json:"id" validate:"required,max=64"`
	Slug        string          `json:"slug" validate:"required,max=64,slug"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty" validate:"max=1000"`
	Category    string          `json:"category" validate:"max=64"`
	Schema      schema.Schema   `json:"schema"`
	Template    json.RawMessage `json:"template,omitempty"` // 渲染描述,引擎不解析其内容
	IsSystem    bool            `json:"is_system"`
	IsActive    bool            `json:"is_active"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// 错误定义
var (
	ErrNotFound            = errors.New("component definition not found")
	ErrDuplicateSlug       = errors.New("component definition slug already exists")
	ErrProtectedDefinition = errors.New("component definition is protected")
	ErrInvalidDefinition   = errors.New("invalid component definition")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[_-][a-z0-9]+)*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// IsValidSlug 判断 slug 格式是否合法
func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Validate 校验组件定义
func (d *Definition) Validate() error {
	if err := structValidator().Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := d.Schema.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if len(d.Template) > 0 && !json.Valid(d.Template) {
		return fmt.Errorf("%w: template must be valid JSON", ErrInvalidDefinition)
	}
	return nil
}

// Defaults 返回组件所有属性的默认值
func (d *Definition) Defaults() map[string]any {
	return d.Schema.Defaults()
}

// Clone 返回定义的深拷贝
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	c := *d
	if d.Schema != nil {
		c.Schema = make(schema.Schema, len(d.Schema))
		copy(c.Schema, d.Schema)
	}
	if d.Template != nil {
		c.Template = append(json.RawMessage(nil), d.Template...)
	}
	return &c
}
