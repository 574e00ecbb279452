package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Coerce 将原始输入转换为属性类型对应的规范值
// 转换永不失败: 非法输入一律回退到默认值,默认值本身不合法时回退到类型零值
func Coerce(p PropertySchema, raw any) any {
	v, _ := CoerceDetailed(p, raw)
	return v
}

// CoerceDetailed 同 Coerce,额外返回数组元素中模板未声明的字段路径(如 plans[0].badge)
func CoerceDetailed(p PropertySchema, raw any) (any, []string) {
	if raw == nil {
		return fallback(p), nil
	}

	switch p.Kind {
	case KindBoolean:
		return toBool(raw), nil
	case KindNumber:
		if n, ok := toNumber(raw); ok {
			return n, nil
		}
		return fallback(p), nil
	case KindSelect:
		if s, ok := raw.(string); ok && p.HasOption(s) {
			return s, nil
		}
		return fallback(p), nil
	case KindArray:
		items, ok := asSlice(raw)
		if !ok {
			return fallback(p), nil
		}
		return coerceItems(p.Key, p.ItemTemplate, items)
	case KindText, KindRichText, KindMedia:
		if s, ok := toText(raw); ok {
			return s, nil
		}
		return fallback(p), nil
	}

	// 未知类型: 原样透传
	return normalize(raw), nil
}

// ZeroValue 返回属性类型的零值
func ZeroValue(k Kind) any {
	switch k {
	case KindBoolean:
		return false
	case KindNumber:
		return float64(0)
	case KindArray:
		return []any{}
	default:
		return ""
	}
}

// fallback 返回规范化后的默认值
func fallback(p PropertySchema) any {
	switch p.Kind {
	case KindBoolean:
		if b, ok := p.Default.(bool); ok {
			return b
		}
	case KindNumber:
		if n, ok := toNumber(p.Default); ok {
			return n
		}
	case KindSelect:
		if s, ok := p.Default.(string); ok && p.HasOption(s) {
			return s
		}
		if len(p.Options) > 0 {
			return p.Options[0].Value
		}
	case KindArray:
		if items, ok := asSlice(p.Default); ok {
			out, _ := coerceItems(p.Key, p.ItemTemplate, items)
			return out
		}
	case KindText, KindRichText, KindMedia:
		if s, ok := toText(p.Default); ok {
			return s
		}
	default:
		return normalize(p.Default)
	}
	return ZeroValue(p.Kind)
}

func coerceItems(key string, tpl map[string]any, items []any) ([]any, []string) {
	out := make([]any, 0, len(items))
	var unknown []string
	for i, item := range items {
		coerced, extra := coerceItem(tpl, item)
		for _, field := range extra {
			unknown = append(unknown, fmt.Sprintf("%s[%d].%s", key, i, field))
		}
		out = append(out, coerced)
	}
	return out, unknown
}

// coerceItem 按 itemTemplate 逐字段转换数组元素,缺失字段使用模板默认值
func coerceItem(tpl map[string]any, item any) (map[string]any, []string) {
	m, ok := item.(map[string]any)
	if !ok {
		return cloneTemplate(tpl), nil
	}

	out := make(map[string]any, len(m))
	for field, example := range tpl {
		v, present := m[field]
		if !present || v == nil {
			out[field] = normalize(example)
			continue
		}
		out[field] = coerceByExample(example, v)
	}

	var extra []string
	for field, v := range m {
		if _, known := tpl[field]; known {
			continue
		}
		out[field] = normalize(v)
		extra = append(extra, field)
	}
	sort.Strings(extra)
	return out, extra
}

// coerceByExample 以模板默认值的类型推断子字段的转换方式
func coerceByExample(example, v any) any {
	switch example.(type) {
	case bool:
		return toBool(v)
	case string:
		if s, ok := toText(v); ok {
			return s
		}
		return example
	case nil:
		return normalize(v)
	}

	if n, ok := toNumber(example); ok {
		if parsed, ok := toNumber(v); ok {
			return parsed
		}
		return n
	}
	if _, ok := asSlice(example); ok {
		if items, ok := asSlice(v); ok {
			return normalize(items)
		}
		return normalize(example)
	}
	if _, ok := example.(map[string]any); ok {
		if m, ok := v.(map[string]any); ok {
			return normalize(m)
		}
	}
	return normalize(example)
}

func cloneTemplate(tpl map[string]any) map[string]any {
	out := make(map[string]any, len(tpl))
	for k, v := range tpl {
		out[k] = normalize(v)
	}
	return out
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.TrimSpace(b)
		return s == "1" || s == "true"
	}
	if n, ok := toNumber(v); ok {
		return n == 1
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	case string:
		if strings.TrimSpace(v.(string)) == "" {
			return 0, false
		}
		v = strings.TrimSpace(v.(string))
	case json.Number, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
	default:
		return 0, false
	}

	n, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil, map[string]any, []any:
		return "", false
	}
	if _, ok := asSlice(v); ok {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	case string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// normalize 深度转换为 JSON 解码后的规范形态(数字统一为 float64)
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	}
	if n, ok := toNumber(v); ok {
		return n
	}
	if items, ok := asSlice(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = normalize(item)
		}
		return out
	}
	if m, ok := v.(map[any]any); ok {
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	}
	return v
}

// Normalize 对外暴露的规范化函数,供实例 overrides 透传未知属性时使用
func Normalize(v any) any {
	return normalize(v)
}
