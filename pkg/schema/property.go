package schema

import (
	"errors"
	"fmt"
)

// Kind 属性类型
type Kind string

const (
	KindText     Kind = "text"
	KindRichText Kind = "richText"
	KindSelect   Kind = "select"
	KindBoolean  Kind = "boolean"
	KindNumber   Kind = "number"
	KindMedia    Kind = "media"
	KindArray    Kind = "array"
)

// kinds 所有受支持的属性类型
var kinds = map[Kind]bool{
	KindText:     true,
	KindRichText: true,
	KindSelect:   true,
	KindBoolean:  true,
	KindNumber:   true,
	KindMedia:    true,
	KindArray:    true,
}

// IsValid 判断属性类型是否受支持
func (k Kind) IsValid() bool {
	return kinds[k]
}

// Option select 类型的可选项
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// PropertySchema 组件的单个可配置属性
type PropertySchema struct {
	Key          string         `json:"key" yaml:"key"`
	Kind         Kind           `json:"kind" yaml:"kind"`
	Label        string         `json:"label,omitempty" yaml:"label,omitempty"`
	Default      any            `json:"default,omitempty" yaml:"default,omitempty"`
	Options      []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	ItemTemplate map[string]any `json:"itemTemplate,omitempty" yaml:"itemTemplate,omitempty"`
}

// 校验错误
var (
	ErrEmptyKey        = errors.New("property key is required")
	ErrUnknownKind     = errors.New("unknown property kind")
	ErrMissingOptions  = errors.New("select property requires options")
	ErrMissingTemplate = errors.New("array property requires an item template")
	ErrDuplicateKey    = errors.New("duplicate property key")
	ErrDuplicateOption = errors.New("duplicate select option value")
	ErrInvalidDefault  = errors.New("default value does not match property kind")
)

// Validate 校验属性定义
func (p *PropertySchema) Validate() error {
	if p.Key == "" {
		return ErrEmptyKey
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: %q (property %s)", ErrUnknownKind, p.Kind, p.Key)
	}

	switch p.Kind {
	case KindSelect:
		if len(p.Options) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingOptions, p.Key)
		}
		seen := make(map[string]bool, len(p.Options))
		for _, opt := range p.Options {
			if seen[opt.Value] {
				return fmt.Errorf("%w: %s.%s", ErrDuplicateOption, p.Key, opt.Value)
			}
			seen[opt.Value] = true
		}
		if p.Default != nil {
			if s, ok := p.Default.(string); !ok || !seen[s] {
				return fmt.Errorf("%w: %s", ErrInvalidDefault, p.Key)
			}
		}
	case KindArray:
		if p.ItemTemplate == nil {
			return fmt.Errorf("%w: %s", ErrMissingTemplate, p.Key)
		}
		if p.Default != nil {
			if _, ok := asSlice(p.Default); !ok {
				return fmt.Errorf("%w: %s", ErrInvalidDefault, p.Key)
			}
		}
	case KindBoolean:
		if p.Default != nil {
			if _, ok := p.Default.(bool); !ok {
				return fmt.Errorf("%w: %s", ErrInvalidDefault, p.Key)
			}
		}
	case KindNumber:
		if p.Default != nil {
			if _, ok := toNumber(p.Default); !ok {
				return fmt.Errorf("%w: %s", ErrInvalidDefault, p.Key)
			}
		}
	}

	return nil
}

// HasOption 判断 select 属性是否包含指定值
func (p *PropertySchema) HasOption(value string) bool {
	for _, opt := range p.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}
