// Package resolve 将组件实例解析为渲染器可直接使用的属性集合。
//
// 解析是纯读取投影: 不修改任何存储状态,可并发、重复调用。
// 单个实例的引用缺失或 overrides 损坏只会降级为占位或默认值,
// 不会影响同一容器内的其他实例。
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/layout"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"github.com/spf13/cast"
)

// DefinitionSource 解析所需的定义查询能力,definition.Registry 满足该接口
type DefinitionSource interface {
	GetByID(id string) (*definition.Definition, error)
	Get(slug string) (*definition.Definition, error)
}

// Resolver 引用解析器
type Resolver struct {
	defs DefinitionSource
}

// NewResolver 创建解析器
func NewResolver(defs DefinitionSource) *Resolver {
	return &Resolver{defs: defs}
}

// Resolve 解析单个实例
func (r *Resolver) Resolve(inst *instance.Instance) ResolvedInstance {
	return r.resolve(inst, newLookupCache(r.defs))
}

// ResolveContainer 解析容器内全部实例,按分组和顺序排列
// 同一次调用中对同一定义只查询一次
func (r *Resolver) ResolveContainer(c *instance.Container) *ResolvedContainer {
	cache := newLookupCache(r.defs)
	out := &ResolvedContainer{
		ID:         c.ID,
		Kind:       c.Kind,
		Name:       c.Name,
		Columns:    c.Columns,
		Settings:   c.Settings,
		Buckets:    []ResolvedBucket{},
		ResolvedAt: time.Now(),
	}

	for _, b := range layout.Buckets(c) {
		members := layout.Members(c, b)
		rb := ResolvedBucket{
			Position:  b.Position,
			Column:    b.Column,
			Instances: make([]ResolvedInstance, 0, len(members)),
		}
		for _, inst := range members {
			rb.Instances = append(rb.Instances, r.resolve(inst, cache))
		}
		out.Buckets = append(out.Buckets, rb)
	}
	return out
}

func (r *Resolver) resolve(inst *instance.Instance, cache *lookupCache) ResolvedInstance {
	out := ResolvedInstance{
		ID:         inst.ID,
		TypeTag:    inst.TypeTag,
		Reference:  RefNone,
		Props:      map[string]any{},
		Position:   inst.Position,
		Order:      inst.Order,
		IsActive:   inst.IsActive,
		Visibility: inst.Visibility,
	}
	if inst.Column != nil {
		out.Column = instance.IntPtr(*inst.Column)
	}
	if out.Visibility == "" {
		out.Visibility = instance.VisibilityAll
	}

	behavior, ok := instance.LookupBehavior(inst.TypeTag)
	if !ok {
		out.warn(WarnUnknownTypeTag, fmt.Sprintf("type tag %q is not supported", inst.TypeTag), "")
	}

	overrides, err := instance.ParseOverrides(inst.Overrides)
	if err != nil {
		out.warn(WarnMalformedOverrides, "overrides could not be parsed, defaults applied", "")
	}

	source, ref := selectReference(inst, behavior, overrides)
	out.Reference = source
	if source == RefNone {
		out.Placeholder = true
		out.warn(WarnOrphanedDefinition, "this component has no source definition", "")
		return out
	}

	def, err := cache.lookup(source, ref)
	if err != nil {
		out.Placeholder = true
		if errors.Is(err, definition.ErrNotFound) {
			out.warn(WarnOrphanedDefinition, fmt.Sprintf("this component's source was not found (%s reference %q)", source, ref), "")
		} else {
			out.warn(WarnDefinitionUnavailable, err.Error(), "")
		}
		return out
	}

	out.DefinitionID = def.ID
	out.DefinitionSlug = def.Slug
	out.DefinitionVersion = def.Version
	if !def.IsActive {
		out.warn(WarnDefinitionInactive, fmt.Sprintf("definition %s is inactive", def.Slug), "")
	}

	merge(&out, def.Schema, overrides, behavior.LegacyRefKey)
	return out
}

// selectReference 选择引用策略: 直接引用优先于旧式内嵌引用,两者都没有时使用类型默认定义
func selectReference(inst *instance.Instance, b instance.Behavior, overrides map[string]any) (RefSource, string) {
	if ref := strings.TrimSpace(inst.DefinitionID); ref != "" {
		return RefDirect, ref
	}
	if b.LegacyRefKey != "" {
		if ref := strings.TrimSpace(cast.ToString(overrides[b.LegacyRefKey])); ref != "" {
			return RefLegacy, ref
		}
	}
	if b.DefaultSlug != "" {
		return RefTypeDefault, b.DefaultSlug
	}
	return RefNone, ""
}

// merge 对 schema 中每个属性执行 coerce(schema[key], overrides[key] ?? default)
// schema 未声明的 override 原样透传并标记
func merge(out *ResolvedInstance, s schema.Schema, overrides map[string]any, refKey string) {
	for _, p := range s {
		value, extras := schema.CoerceDetailed(p, overrides[p.Key])
		out.Props[p.Key] = value
		for _, path := range extras {
			out.unknown(path)
		}
	}

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		if _, ok := s.Lookup(key); ok || key == refKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Props[key] = schema.Normalize(overrides[key])
		out.unknown(key)
	}
}

func (r *ResolvedInstance) warn(code WarningCode, msg, key string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: msg, Key: key})
}

func (r *ResolvedInstance) unknown(key string) {
	r.UnknownProperties = append(r.UnknownProperties, key)
	r.warn(WarnUnknownProperty, fmt.Sprintf("property %s is not declared by the definition", key), key)
}

// lookupCache 单次解析调用内的定义查询缓存
type lookupCache struct {
	defs    DefinitionSource
	results map[string]lookupResult
}

type lookupResult struct {
	def *definition.Definition
	err error
}

func newLookupCache(defs DefinitionSource) *lookupCache {
	return &lookupCache{defs: defs, results: map[string]lookupResult{}}
}

// lookup 直接引用与旧式引用先按 ID 查找再按 slug 查找,类型默认定义只按 slug 查找
func (c *lookupCache) lookup(source RefSource, ref string) (*definition.Definition, error) {
	key := string(source) + ":" + ref
	if res, ok := c.results[key]; ok {
		return res.def, res.err
	}

	var (
		def *definition.Definition
		err error
	)
	if source == RefTypeDefault {
		def, err = c.defs.Get(ref)
	} else {
		def, err = c.defs.GetByID(ref)
		if errors.Is(err, definition.ErrNotFound) {
			def, err = c.defs.Get(ref)
		}
	}
	c.results[key] = lookupResult{def: def, err: err}
	return def, err
}
