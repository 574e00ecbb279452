package resolve_test

import (
	"errors"
	"testing"

	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/layout"
	"github.com/pixelprecision/reticstudio/pkg/resolve"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) definition.Registry {
	t.Helper()
	reg := definition.NewMemoryRegistry()

	hero := &definition.Definition{
		ID:       "def-hero",
		Slug:     "hero",
		Name:     "Hero",
		IsActive: true,
		Schema: schema.Schema{
			{Key: "title", Kind: schema.KindText, Default: "Welcome"},
			{Key: "align", Kind: schema.KindSelect, Default: "left", Options: []schema.Option{{Value: "left"}, {Value: "right"}}},
			{Key: "show_cta", Kind: schema.KindBoolean, Default: false},
		},
	}
	cta := &definition.Definition{
		ID:       "def-cta",
		Slug:     "cta",
		Name:     "Call to action",
		IsActive: true,
		Schema: schema.Schema{
			{Key: "label", Kind: schema.KindText, Default: "Buy now"},
		},
	}
	menu := &definition.Definition{
		ID:       "def-menu",
		Slug:     "menu",
		Name:     "Menu",
		IsActive: true,
		IsSystem: true,
		Schema: schema.Schema{
			{Key: "orientation", Kind: schema.KindSelect, Default: "horizontal", Options: []schema.Option{{Value: "horizontal"}, {Value: "vertical"}}},
		},
	}
	pricing := &definition.Definition{
		ID:       "def-pricing",
		Slug:     "pricing",
		Name:     "Pricing",
		IsActive: true,
		Schema: schema.Schema{
			{Key: "plans", Kind: schema.KindArray, Default: []any{}, ItemTemplate: map[string]any{"name": "", "price": float64(0)}},
		},
	}
	for _, d := range []*definition.Definition{hero, cta, menu, pricing} {
		require.NoError(t, reg.Register(d))
	}
	return reg
}

func heroInstance(overrides string) *instance.Instance {
	return &instance.Instance{
		ID:           "inst-1",
		DefinitionID: "def-hero",
		TypeTag:      instance.TagPageComponent,
		Overrides:    instance.Overrides(overrides),
		Position:     "content",
		Order:        1,
		IsActive:     true,
	}
}

// TestResolve_MergesAndCoerces 测试默认值与 overrides 合并并完成类型转换
func TestResolve_MergesAndCoerces(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(heroInstance(`{"title":"Hi","show_cta":"1"}`))
	assert.Equal(t, resolve.RefDirect, got.Reference)
	assert.Equal(t, "hero", got.DefinitionSlug)
	assert.Equal(t, map[string]any{"title": "Hi", "align": "left", "show_cta": true}, got.Props)
	assert.Empty(t, got.Warnings)
	assert.Equal(t, instance.VisibilityAll, got.Visibility)
}

// TestResolve_MalformedOverrides 截断的 overrides 解析为全部默认值
func TestResolve_MalformedOverrides(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(heroInstance(`{"title": "Hi"`))
	assert.False(t, got.Placeholder)
	assert.Equal(t, map[string]any{"title": "Welcome", "align": "left", "show_cta": false}, got.Props)
	assert.True(t, got.HasWarning(resolve.WarnMalformedOverrides))
}

// TestResolve_InvalidSelect 非法的 select 值回退到默认值
func TestResolve_InvalidSelect(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(heroInstance(`{"align":"center"}`))
	assert.Equal(t, "left", got.Props["align"])
}

// TestResolve_StringEncodedOverrides 旧数据中字符串形式的 overrides
func TestResolve_StringEncodedOverrides(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(heroInstance(`"{\"align\":\"right\"}"`))
	assert.Equal(t, "right", got.Props["align"])
	assert.Empty(t, got.Warnings)
}

// TestResolve_DirectReferenceWins 直接引用与旧式引用同时存在时直接引用优先
func TestResolve_DirectReferenceWins(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	inst := &instance.Instance{
		ID:           "inst-2",
		DefinitionID: "def-hero",
		TypeTag:      instance.TagComponent,
		Overrides:    instance.Overrides(`{"component_id":"def-cta"}`),
	}
	got := r.Resolve(inst)
	assert.Equal(t, resolve.RefDirect, got.Reference)
	assert.Equal(t, "hero", got.DefinitionSlug)
	assert.Empty(t, got.UnknownProperties, "legacy reference key is not an unknown property")
}

// TestResolve_LegacyReference 没有直接引用时读取 overrides 中的旧式引用
func TestResolve_LegacyReference(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	byID := r.Resolve(&instance.Instance{
		ID:        "inst-3",
		TypeTag:   instance.TagComponent,
		Overrides: instance.Overrides(`{"component_id":"def-cta","label":"Go"}`),
	})
	assert.Equal(t, resolve.RefLegacy, byID.Reference)
	assert.Equal(t, "cta", byID.DefinitionSlug)
	assert.Equal(t, map[string]any{"label": "Go"}, byID.Props)

	bySlug := r.Resolve(&instance.Instance{
		ID:        "inst-4",
		TypeTag:   instance.TagMenu,
		Overrides: instance.Overrides(`{"menu_id":"menu"}`),
	})
	assert.Equal(t, resolve.RefLegacy, bySlug.Reference)
	assert.Equal(t, "menu", bySlug.DefinitionSlug)
}

// TestResolve_TypeDefault 内置类型没有引用时使用默认定义
func TestResolve_TypeDefault(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(&instance.Instance{ID: "inst-5", TypeTag: instance.TagMenu})
	assert.Equal(t, resolve.RefTypeDefault, got.Reference)
	assert.Equal(t, "menu", got.DefinitionSlug)
	assert.Equal(t, "horizontal", got.Props["orientation"])

	// text 没有注册时进入孤立状态
	orphan := r.Resolve(&instance.Instance{ID: "inst-6", TypeTag: instance.TagText})
	assert.True(t, orphan.Placeholder)
	assert.True(t, orphan.HasWarning(resolve.WarnOrphanedDefinition))
}

// TestResolve_Orphaned 直接引用的定义不存在时返回占位结果
func TestResolve_Orphaned(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	inst := heroInstance(`{"title":"Hi"}`)
	inst.DefinitionID = "deleted-definition"
	got := r.Resolve(inst)
	assert.True(t, got.Placeholder)
	assert.Equal(t, resolve.RefDirect, got.Reference)
	assert.Empty(t, got.Props)
	assert.True(t, got.HasWarning(resolve.WarnOrphanedDefinition))

	none := r.Resolve(&instance.Instance{ID: "inst-7", TypeTag: instance.TagPageComponent})
	assert.True(t, none.Placeholder)
	assert.Equal(t, resolve.RefNone, none.Reference)
}

// TestResolve_UnknownProperties schema 未声明的属性透传并标记
func TestResolve_UnknownProperties(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(heroInstance(`{"title":"Hi","subtitle":"Sub","legacy_color":"red"}`))
	assert.Equal(t, "Sub", got.Props["subtitle"])
	assert.Equal(t, "red", got.Props["legacy_color"])
	assert.Equal(t, []string{"legacy_color", "subtitle"}, got.UnknownProperties)
	assert.True(t, got.HasWarning(resolve.WarnUnknownProperty))
}

// TestResolve_ArrayExtraFields 数组元素中模板未声明的字段透传并标记
func TestResolve_ArrayExtraFields(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	got := r.Resolve(&instance.Instance{
		ID:           "inst-8",
		DefinitionID: "def-pricing",
		TypeTag:      instance.TagPageComponent,
		Overrides:    instance.Overrides(`{"plans":[{"name":"Pro","price":"19","badge":"hot"},{"name":"Free"}]}`),
	})
	assert.Equal(t, []any{
		map[string]any{"name": "Pro", "price": float64(19), "badge": "hot"},
		map[string]any{"name": "Free", "price": float64(0)},
	}, got.Props["plans"])
	assert.Equal(t, []string{"plans[0].badge"}, got.UnknownProperties)
}

// TestResolve_InactiveDefinition 停用的定义仍然可以解析
func TestResolve_InactiveDefinition(t *testing.T) {
	reg := setupRegistry(t)
	require.NoError(t, reg.Deactivate("hero"))
	r := resolve.NewResolver(reg)

	got := r.Resolve(heroInstance(`{}`))
	assert.False(t, got.Placeholder)
	assert.Equal(t, "Welcome", got.Props["title"])
	assert.True(t, got.HasWarning(resolve.WarnDefinitionInactive))
}

type failingSource struct{}

func (failingSource) GetByID(string) (*definition.Definition, error) {
	return nil, errors.New("database is down")
}

func (failingSource) Get(string) (*definition.Definition, error) {
	return nil, errors.New("database is down")
}

// TestResolve_SourceFailure 定义查询失败时降级为占位
func TestResolve_SourceFailure(t *testing.T) {
	r := resolve.NewResolver(failingSource{})

	got := r.Resolve(heroInstance(`{}`))
	assert.True(t, got.Placeholder)
	assert.True(t, got.HasWarning(resolve.WarnDefinitionUnavailable))
}

// TestResolveContainer 单个损坏的实例不影响同容器内其他实例
func TestResolveContainer(t *testing.T) {
	r := resolve.NewResolver(setupRegistry(t))

	c := &instance.Container{ID: "page-1", Kind: instance.KindPage}
	broken := heroInstance(`not json`)
	broken.ID = "broken"
	orphan := heroInstance(`{}`)
	orphan.ID = "orphan"
	orphan.DefinitionID = "missing"
	ok := heroInstance(`{"title":"Fine"}`)
	ok.ID = "ok"

	for _, inst := range []*instance.Instance{broken, orphan, ok} {
		inst.Order = 0
		require.NoError(t, layout.Insert(c, inst, layout.Target{Position: "content"}))
	}
	hero := heroInstance(`{}`)
	hero.ID = "top"
	require.NoError(t, layout.Insert(c, hero, layout.Target{Position: "hero"}))

	rc := r.ResolveContainer(c)
	require.Len(t, rc.Buckets, 2)
	assert.Equal(t, "hero", rc.Buckets[0].Position)
	assert.Equal(t, "content", rc.Buckets[1].Position)

	content := rc.Buckets[1].Instances
	require.Len(t, content, 3)
	assert.Equal(t, "broken", content[0].ID)
	assert.Equal(t, "Welcome", content[0].Props["title"])
	assert.True(t, content[1].Placeholder)
	assert.Equal(t, "Fine", content[2].Props["title"])
	assert.Equal(t, 3, content[2].Order)

	counts := rc.WarningCounts()
	assert.Equal(t, 1, counts[resolve.WarnMalformedOverrides])
	assert.Equal(t, 1, counts[resolve.WarnOrphanedDefinition])
	assert.Len(t, rc.Instances(), 4)
}
