package instance

import (
	"errors"
	"fmt"
	"sort"
)

// TypeTag 实例类型标签,决定解析与渲染行为
type TypeTag string

const (
	TagLogo          TypeTag = "logo"
	TagMenu          TypeTag = "menu"
	TagText          TypeTag = "text"
	TagSocial        TypeTag = "social"
	TagContact       TypeTag = "contact"
	TagCopyright     TypeTag = "copyright"
	TagPageComponent TypeTag = "page_component"
	TagComponent     TypeTag = "component" // 旧数据: 目标定义保存在 overrides.component_id 中
)

// ErrUnknownTypeTag 未知的类型标签
var ErrUnknownTypeTag = errors.New("unknown instance type tag")

// Behavior 类型标签的解析行为
type Behavior struct {
	Tag TypeTag

	// LegacyRefKey 旧数据在 overrides 中保存目标定义 ID 的字段名,为空表示没有旧式引用
	LegacyRefKey string

	// DefaultSlug 没有任何引用时使用的内置定义
	DefaultSlug string

	// HeaderFooterOnly 只能放在页眉/页脚容器中
	HeaderFooterOnly bool
}

// behaviors 类型标签查找表,集合封闭
var behaviors = map[TypeTag]Behavior{
	TagLogo:          {Tag: TagLogo, DefaultSlug: "logo", HeaderFooterOnly: true},
	TagMenu:          {Tag: TagMenu, LegacyRefKey: "menu_id", DefaultSlug: "menu", HeaderFooterOnly: true},
	TagText:          {Tag: TagText, DefaultSlug: "text"},
	TagSocial:        {Tag: TagSocial, DefaultSlug: "social", HeaderFooterOnly: true},
	TagContact:       {Tag: TagContact, DefaultSlug: "contact", HeaderFooterOnly: true},
	TagCopyright:     {Tag: TagCopyright, DefaultSlug: "copyright", HeaderFooterOnly: true},
	TagPageComponent: {Tag: TagPageComponent},
	TagComponent:     {Tag: TagComponent, LegacyRefKey: "component_id"},
}

// LookupBehavior 查询类型标签的解析行为
func LookupBehavior(tag TypeTag) (Behavior, bool) {
	b, ok := behaviors[tag]
	return b, ok
}

// IsValid 判断类型标签是否受支持
func (t TypeTag) IsValid() bool {
	_, ok := behaviors[t]
	return ok
}

// IsLegacy 判断类型标签是否使用旧式内嵌引用
func (t TypeTag) IsLegacy() bool {
	return behaviors[t].LegacyRefKey != ""
}

// AllowedIn 判断类型标签能否放入指定类型的容器
func (t TypeTag) AllowedIn(kind ContainerKind) error {
	b, ok := behaviors[t]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTypeTag, t)
	}
	if b.HeaderFooterOnly && kind == KindPage {
		return fmt.Errorf("%w: %s cannot be placed on a page", ErrInvalidPlacement, t)
	}
	return nil
}

// TypeTags 返回所有类型标签(排序后)
func TypeTags() []TypeTag {
	out := make([]TypeTag, 0, len(behaviors))
	for tag := range behaviors {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
