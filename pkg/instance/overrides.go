package instance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedOverrides overrides 无法解析为 JSON 对象
var ErrMalformedOverrides = errors.New("malformed overrides")

// Overrides 实例属性覆盖值
// 持久化格式为 UTF-8 JSON 对象;旧数据中也可能是一个内容为 JSON 对象的字符串
type Overrides []byte

// NewOverrides 从属性映射创建 overrides
func NewOverrides(values map[string]any) (Overrides, error) {
	if values == nil {
		values = map[string]any{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode overrides: %w", err)
	}
	return Overrides(data), nil
}

// Map 解析为属性映射,解析失败时返回空映射和 ErrMalformedOverrides
func (o Overrides) Map() (map[string]any, error) {
	return ParseOverrides(o)
}

// IsEmpty 判断是否没有任何覆盖值
func (o Overrides) IsEmpty() bool {
	m, err := o.Map()
	return err == nil && len(m) == 0
}

// MarshalJSON 输出规范化的 JSON 对象;无法解析的旧数据原样以字符串输出
func (o Overrides) MarshalJSON() ([]byte, error) {
	trimmed := bytes.TrimSpace(o)
	if len(trimmed) == 0 {
		return []byte("{}"), nil
	}
	m, err := o.Map()
	if err != nil {
		return json.Marshal(string(o))
	}
	return json.Marshal(m)
}

// UnmarshalJSON 接受对象、JSON 字符串或 null
func (o *Overrides) UnmarshalJSON(data []byte) error {
	*o = append((*o)[:0], data...)
	return nil
}

// ParseOverrides 将存储的 overrides 规范化为属性映射
// 支持: 空值/null、JSON 对象、内容为 JSON 对象的 JSON 字符串
func ParseOverrides(raw []byte) (map[string]any, error) {
	return parseOverrides(raw, 0)
}

func parseOverrides(raw []byte, depth int) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return map[string]any{}, fmt.Errorf("%w: %v", ErrMalformedOverrides, err)
		}
		if m == nil {
			m = map[string]any{}
		}
		return m, nil
	case '"':
		// 旧数据: 字符串内再编码了一层 JSON
		if depth > 0 {
			break
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return map[string]any{}, fmt.Errorf("%w: %v", ErrMalformedOverrides, err)
		}
		return parseOverrides([]byte(inner), depth+1)
	}

	return map[string]any{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedOverrides)
}
