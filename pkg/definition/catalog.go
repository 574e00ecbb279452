package definition

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pixelprecision/reticstudio/pkg/schema"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/builtin.yaml
var builtinCatalog []byte

// catalogNamespace 内置定义 ID 的命名空间,保证多次 seed 生成相同 ID
var catalogNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("reticstudio/component-definitions"))

// catalogEntry YAML 目录条目
type catalogEntry struct {
	Slug        string        `yaml:"slug"`
	Name        string        `yaml:"name"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description"`
	Schema      schema.Schema `yaml:"schema"`
	Template    any           `yaml:"template"`
	Inactive    bool          `yaml:"inactive"`
}

// CatalogID 返回内置定义的稳定 ID
func CatalogID(slug string) string {
	return uuid.NewSHA1(catalogNamespace, []byte(slug)).String()
}

// LoadCatalog 从 YAML 读取组件目录,返回的定义均标记为系统定义
func LoadCatalog(r io.Reader) ([]*Definition, error) {
	var entries []catalogEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	defs := make([]*Definition, 0, len(entries))
	for _, e := range entries {
		for i := range e.Schema {
			e.Schema[i].Default = schema.Normalize(e.Schema[i].Default)
			if e.Schema[i].ItemTemplate != nil {
				e.Schema[i].ItemTemplate = schema.Normalize(e.Schema[i].ItemTemplate).(map[string]any)
			}
		}

		var tpl json.RawMessage
		if e.Template != nil {
			data, err := json.Marshal(schema.Normalize(e.Template))
			if err != nil {
				return nil, fmt.Errorf("failed to encode template of %s: %w", e.Slug, err)
			}
			tpl = data
		}

		def := &Definition{
			ID:          CatalogID(e.Slug),
			Slug:        e.Slug,
			Name:        e.Name,
			Description: e.Description,
			Category:    e.Category,
			Schema:      e.Schema,
			Template:    tpl,
			IsSystem:    true,
			IsActive:    !e.Inactive,
			Version:     1,
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %s: %w", e.Slug, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Builtin 返回内置的系统组件目录
func Builtin() ([]*Definition, error) {
	return LoadCatalog(bytes.NewReader(builtinCatalog))
}

// Seed 将目录写入注册表,已存在的 slug 跳过,返回新注册的数量
func Seed(reg Registry, defs []*Definition) (int, error) {
	created := 0
	for _, def := range defs {
		if _, err := reg.Get(def.Slug); err == nil {
			continue
		}
		if err := reg.Register(def.Clone()); err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", def.Slug, err)
		}
		created++
	}
	return created, nil
}
