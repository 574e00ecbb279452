package resolve

import (
	"time"

	"github.com/pixelprecision/reticstudio/pkg/instance"
)

// WarningCode 解析告警代码,展示给编辑者,不影响终端用户渲染
type WarningCode string

const (
	WarnOrphanedDefinition    WarningCode = "orphaned_definition"
	WarnDefinitionUnavailable WarningCode = "definition_unavailable"
	WarnMalformedOverrides    WarningCode = "malformed_overrides"
	WarnUnknownProperty       WarningCode = "unknown_property"
	WarnDefinitionInactive    WarningCode = "definition_inactive"
	WarnUnknownTypeTag        WarningCode = "unknown_type_tag"
)

// Warning 解析告警
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Key     string      `json:"key,omitempty"`
}

// RefSource 定义引用的来源
type RefSource string

const (
	RefDirect      RefSource = "direct"       // 实例上的定义 ID
	RefLegacy      RefSource = "legacy"       // overrides 中内嵌的旧式引用
	RefTypeDefault RefSource = "type_default" // 类型标签对应的内置定义
	RefNone        RefSource = "none"
)

// ResolvedInstance 解析后的实例,props 已按 schema 完成类型转换
type ResolvedInstance struct {
	ID                string              `json:"id"`
	TypeTag           instance.TypeTag    `json:"type_tag"`
	DefinitionID      string              `json:"definition_id,omitempty"`
	DefinitionSlug    string              `json:"definition_slug,omitempty"`
	DefinitionVersion int                 `json:"definition_version,omitempty"`
	Reference         RefSource           `json:"reference"`
	Props             map[string]any      `json:"props"`
	Position          string              `json:"position"`
	Column            *int                `json:"column,omitempty"`
	Order             int                 `json:"order"`
	IsActive          bool                `json:"is_active"`
	Visibility        instance.Visibility `json:"visibility"`
	Placeholder       bool                `json:"placeholder,omitempty"`
	UnknownProperties []string            `json:"unknown_properties,omitempty"`
	Warnings          []Warning           `json:"warnings,omitempty"`
}

// HasWarning 判断是否包含指定告警
func (r *ResolvedInstance) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// ResolvedBucket 一个 (position, column) 分组内按顺序排列的解析结果
type ResolvedBucket struct {
	Position  string             `json:"position"`
	Column    *int               `json:"column,omitempty"`
	Instances []ResolvedInstance `json:"instances"`
}

// ResolvedContainer 容器的渲染数据
type ResolvedContainer struct {
	ID         string                 `json:"id"`
	Kind       instance.ContainerKind `json:"kind"`
	Name       string                 `json:"name"`
	Columns    int                    `json:"columns"`
	Settings   map[string]any         `json:"settings,omitempty"`
	Buckets    []ResolvedBucket       `json:"buckets"`
	ResolvedAt time.Time              `json:"resolved_at"`
}

// Instances 按分组顺序返回全部解析结果
func (rc *ResolvedContainer) Instances() []ResolvedInstance {
	var out []ResolvedInstance
	for _, b := range rc.Buckets {
		out = append(out, b.Instances...)
	}
	return out
}

// WarningCounts 按代码统计告警数量
func (rc *ResolvedContainer) WarningCounts() map[WarningCode]int {
	counts := map[WarningCode]int{}
	for _, b := range rc.Buckets {
		for _, inst := range b.Instances {
			for _, w := range inst.Warnings {
				counts[w.Code]++
			}
		}
	}
	return counts
}
