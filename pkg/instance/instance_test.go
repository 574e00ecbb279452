package instance_test

import (
	"encoding/json"
	"testing"

	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseOverrides 测试 overrides 的各种存储形式
func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]any{}},
		{name: "null", raw: "null", want: map[string]any{}},
		{name: "object", raw: `{"title":"Hi","count":2}`, want: map[string]any{"title": "Hi", "count": float64(2)}},
		{name: "string encoded object", raw: `"{\"title\":\"Hi\"}"`, want: map[string]any{"title": "Hi"}},
		{name: "truncated", raw: `{"title": "Hi"`, want: map[string]any{}, wantErr: true},
		{name: "array", raw: `[1,2]`, want: map[string]any{}, wantErr: true},
		{name: "double encoded string", raw: `"\"{}\""`, want: map[string]any{}, wantErr: true},
		{name: "plain string", raw: `"hello"`, want: map[string]any{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := instance.ParseOverrides([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, instance.ErrMalformedOverrides)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestOverrides_MarshalJSON 测试 overrides 输出规范化
func TestOverrides_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(instance.Overrides(`"{\"title\":\"Hi\"}"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Hi"}`, string(data))

	data, err = json.Marshal(instance.Overrides(nil))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	data, err = json.Marshal(instance.Overrides(`{"title": "Hi"`))
	require.NoError(t, err)
	assert.Equal(t, `"{\"title\": \"Hi\""`, string(data))
}

// TestOverrides_UnmarshalJSON 测试请求体中的 overrides 可为对象或字符串
func TestOverrides_UnmarshalJSON(t *testing.T) {
	var body struct {
		Overrides instance.Overrides `json:"overrides"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"overrides":{"title":"Hi"}}`), &body))
	m, err := body.Overrides.Map()
	require.NoError(t, err)
	assert.Equal(t, "Hi", m["title"])

	require.NoError(t, json.Unmarshal([]byte(`{"overrides":"{\"title\":\"Yo\"}"}`), &body))
	m, err = body.Overrides.Map()
	require.NoError(t, err)
	assert.Equal(t, "Yo", m["title"])
}

// TestNewFromDefinition 测试从定义新增实例时复制默认值
func TestNewFromDefinition(t *testing.T) {
	def := &definition.Definition{
		ID:   "def-1",
		Slug: "hero",
		Schema: schema.Schema{
			{Key: "title", Kind: schema.KindText, Default: "Welcome"},
			{Key: "height", Kind: schema.KindNumber, Default: 400},
		},
	}

	inst, err := instance.NewFromDefinition(def, "")
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, "def-1", inst.DefinitionID)
	assert.Equal(t, instance.TagPageComponent, inst.TypeTag)
	assert.True(t, inst.IsActive)
	assert.Equal(t, instance.VisibilityAll, inst.Visibility)

	m, err := inst.Overrides.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Welcome", "height": float64(400)}, m)

	_, err = instance.NewFromDefinition(def, "widget")
	assert.ErrorIs(t, err, instance.ErrUnknownTypeTag)
}

// TestInstance_Clone 测试克隆相互独立
func TestInstance_Clone(t *testing.T) {
	inst := &instance.Instance{ID: "a", Column: instance.IntPtr(2), Overrides: instance.Overrides(`{"a":1}`)}
	c := inst.Clone()
	*c.Column = 3
	c.Overrides[2] = 'b'

	assert.Equal(t, 2, inst.ColumnValue())
	assert.Equal(t, `{"a":1}`, string(inst.Overrides))
}

// TestTypeTag_AllowedIn 测试类型标签的放置限制
func TestTypeTag_AllowedIn(t *testing.T) {
	assert.NoError(t, instance.TagLogo.AllowedIn(instance.KindHeader))
	assert.NoError(t, instance.TagMenu.AllowedIn(instance.KindFooter))
	assert.ErrorIs(t, instance.TagLogo.AllowedIn(instance.KindPage), instance.ErrInvalidPlacement)
	assert.NoError(t, instance.TagPageComponent.AllowedIn(instance.KindPage))
	assert.ErrorIs(t, instance.TypeTag("widget").AllowedIn(instance.KindPage), instance.ErrUnknownTypeTag)

	assert.True(t, instance.TagComponent.IsLegacy())
	assert.False(t, instance.TagPageComponent.IsLegacy())
	assert.Len(t, instance.TypeTags(), 8)
}

// TestContainer_Validate 测试容器校验
func TestContainer_Validate(t *testing.T) {
	assert.NoError(t, (&instance.Container{ID: "p", Kind: instance.KindPage}).Validate())
	assert.NoError(t, (&instance.Container{ID: "f", Kind: instance.KindFooter, Columns: 3}).Validate())
	assert.ErrorIs(t, (&instance.Container{ID: "f", Kind: instance.KindFooter}).Validate(), instance.ErrInvalidContainer)
	assert.ErrorIs(t, (&instance.Container{ID: "x", Kind: "sidebar"}).Validate(), instance.ErrInvalidContainer)
	assert.ErrorIs(t, (&instance.Container{ID: "h", Kind: instance.KindHeader, Columns: 99}).Validate(), instance.ErrInvalidContainer)
}

// TestContainer_FindAndClone 测试查找与深拷贝
func TestContainer_FindAndClone(t *testing.T) {
	c := &instance.Container{
		ID:        "f",
		Kind:      instance.KindFooter,
		Columns:   2,
		Settings:  map[string]any{"background": "dark"},
		Instances: []*instance.Instance{{ID: "a", Order: 1}, {ID: "b", Order: 2}},
	}

	inst, idx, err := c.Find("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, inst.Order)

	_, _, err = c.Find("zzz")
	assert.ErrorIs(t, err, instance.ErrInstanceNotFound)

	clone := c.Clone()
	clone.Instances[0].Order = 9
	clone.Settings["background"] = "light"
	assert.Equal(t, 1, c.Instances[0].Order)
	assert.Equal(t, "dark", c.Settings["background"])
}
