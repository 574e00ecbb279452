package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schema 有序的属性定义集合
// JSON 编码为数组以保留顺序;解码时同时兼容旧数据中 {"key": {...}} 的对象形式
type Schema []PropertySchema

// Lookup 按 key 查找属性定义
func (s Schema) Lookup(key string) (*PropertySchema, bool) {
	for i := range s {
		if s[i].Key == key {
			return &s[i], true
		}
	}
	return nil, false
}

// Keys 按定义顺序返回所有 key
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for _, p := range s {
		keys = append(keys, p.Key)
	}
	return keys
}

// Validate 校验整个 schema
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for i := range s {
		if err := s[i].Validate(); err != nil {
			return err
		}
		if seen[s[i].Key] {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, s[i].Key)
		}
		seen[s[i].Key] = true
	}
	return nil
}

// Defaults 返回每个属性经过规范化后的默认值
// 用于组件面板新增实例时初始化 overrides
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s))
	for _, p := range s {
		out[p.Key] = Coerce(p, nil)
	}
	return out
}

// UnmarshalJSON 支持数组与对象两种形式
func (s *Schema) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	if trimmed[0] == '[' {
		var list []PropertySchema
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("failed to decode schema list: %w", err)
		}
		*s = list
		return nil
	}

	// 对象形式: 逐个 token 读取以保留 key 的顺序
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to decode schema object: %w", err)
	}
	var out Schema
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode schema key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected schema key token %v", tok)
		}
		var p PropertySchema
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("failed to decode property %s: %w", key, err)
		}
		if p.Key == "" {
			p.Key = key
		}
		out = append(out, p)
	}
	*s = out
	return nil
}
