package definition_test

import (
	"testing"

	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefinition(slug, category string) *definition.Definition {
	return &definition.Definition{
		Slug:     slug,
		Name:     "Component " + slug,
		Category: category,
		IsActive: true,
		Schema: schema.Schema{
			{Key: "title", Kind: schema.KindText, Default: "Hello"},
		},
	}
}

// TestMemoryRegistry_Register 测试注册与查询
func TestMemoryRegistry_Register(t *testing.T) {
	reg := definition.NewMemoryRegistry()

	def := newDefinition("hero", "marketing")
	require.NoError(t, reg.Register(def))
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, 1, def.Version)

	got, err := reg.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.ID)

	byID, err := reg.GetByID(def.ID)
	require.NoError(t, err)
	assert.Equal(t, "hero", byID.Slug)
}

// TestMemoryRegistry_DuplicateSlug 测试重复 slug
func TestMemoryRegistry_DuplicateSlug(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	require.NoError(t, reg.Register(newDefinition("hero", "marketing")))

	err := reg.Register(newDefinition("hero", "content"))
	assert.ErrorIs(t, err, definition.ErrDuplicateSlug)

	all, err := reg.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "marketing", all[0].Category)
}

// TestMemoryRegistry_InvalidDefinition 测试非法定义被拒绝
func TestMemoryRegistry_InvalidDefinition(t *testing.T) {
	reg := definition.NewMemoryRegistry()

	bad := newDefinition("Bad Slug!", "content")
	assert.ErrorIs(t, reg.Register(bad), definition.ErrInvalidDefinition)

	badSchema := newDefinition("select", "content")
	badSchema.Schema = schema.Schema{{Key: "x", Kind: schema.KindSelect}}
	assert.ErrorIs(t, reg.Register(badSchema), definition.ErrInvalidDefinition)
}

// TestMemoryRegistry_GetNotFound 测试查询不存在的定义
func TestMemoryRegistry_GetNotFound(t *testing.T) {
	reg := definition.NewMemoryRegistry()

	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, definition.ErrNotFound)
	_, err = reg.GetByID("missing")
	assert.ErrorIs(t, err, definition.ErrNotFound)
}

// TestMemoryRegistry_ListActive 测试按注册顺序列出启用定义
func TestMemoryRegistry_ListActive(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	for _, d := range []*definition.Definition{
		newDefinition("c", "content"),
		newDefinition("a", "marketing"),
		newDefinition("b", "content"),
	} {
		require.NoError(t, reg.Register(d))
	}
	require.NoError(t, reg.Deactivate("a"))

	active, err := reg.ListActive("")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, slugs(active))

	content, err := reg.ListActive("content")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, slugs(content))

	marketing, err := reg.ListActive("marketing")
	require.NoError(t, err)
	assert.Empty(t, marketing)

	require.NoError(t, reg.Activate("a"))
	active, err = reg.ListActive("")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, slugs(active))
}

// TestMemoryRegistry_ProtectedDefinition 测试系统定义不可停用或删除
func TestMemoryRegistry_ProtectedDefinition(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	sys := newDefinition("logo", "branding")
	sys.IsSystem = true
	require.NoError(t, reg.Register(sys))

	assert.ErrorIs(t, reg.Deactivate("logo"), definition.ErrProtectedDefinition)
	assert.ErrorIs(t, reg.Delete("logo"), definition.ErrProtectedDefinition)

	got, err := reg.Get("logo")
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

// TestMemoryRegistry_Delete 测试删除普通定义
func TestMemoryRegistry_Delete(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	def := newDefinition("promo", "marketing")
	require.NoError(t, reg.Register(def))

	require.NoError(t, reg.Delete("promo"))
	_, err := reg.Get("promo")
	assert.ErrorIs(t, err, definition.ErrNotFound)
	_, err = reg.GetByID(def.ID)
	assert.ErrorIs(t, err, definition.ErrNotFound)

	// 删除后 slug 可以再次注册
	assert.NoError(t, reg.Register(newDefinition("promo", "marketing")))
}

// TestMemoryRegistry_Update 测试更新递增版本号且保留 ID
func TestMemoryRegistry_Update(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	def := newDefinition("hero", "marketing")
	require.NoError(t, reg.Register(def))

	changed := newDefinition("hero", "content")
	changed.Name = "Hero v2"
	require.NoError(t, reg.Update(changed))
	assert.Equal(t, def.ID, changed.ID)
	assert.Equal(t, 2, changed.Version)

	got, err := reg.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, "Hero v2", got.Name)
	assert.Equal(t, "content", got.Category)
}

// TestMemoryRegistry_ReturnsCopies 测试返回值修改不影响注册表
func TestMemoryRegistry_ReturnsCopies(t *testing.T) {
	reg := definition.NewMemoryRegistry()
	require.NoError(t, reg.Register(newDefinition("hero", "marketing")))

	got, err := reg.Get("hero")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Schema[0].Key = "mutated"

	again, err := reg.Get("hero")
	require.NoError(t, err)
	assert.Equal(t, "Component hero", again.Name)
	assert.Equal(t, "title", again.Schema[0].Key)
}

func slugs(defs []*definition.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Slug)
	}
	return out
}
