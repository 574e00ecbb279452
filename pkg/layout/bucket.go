package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pixelprecision/reticstudio/pkg/instance"
)

// ColumnPrefix 按列划分的位置前缀,如 column_2
const ColumnPrefix = "column_"

// 各类型容器的固定位置,列位置 column_<n> 另外由容器列数决定
var kindPositions = map[instance.ContainerKind][]string{
	instance.KindPage:   {"hero", "content", "sidebar"},
	instance.KindHeader: {"topbar", "header", "header_bottom"},
	instance.KindFooter: {"footer_top", "footer_bar"},
}

// Bucket 共享 (position, column) 的实例集合
type Bucket struct {
	Position string `json:"position"`
	Column   *int   `json:"column,omitempty"`
}

// String 返回分组的可读形式
func (b Bucket) String() string {
	if b.Column == nil {
		return b.Position
	}
	return fmt.Sprintf("%s#%d", b.Position, *b.Column)
}

// Key 分组的比较键
func (b Bucket) Key() string {
	return b.String()
}

// NewBucket 创建分组,column_<n> 位置的列号以位置名为准
func NewBucket(position string, column *int) Bucket {
	if n, ok := ParseColumnPosition(position); ok {
		return Bucket{Position: position, Column: instance.IntPtr(n)}
	}
	if column != nil {
		return Bucket{Position: position, Column: instance.IntPtr(*column)}
	}
	return Bucket{Position: position}
}

// BucketOf 返回实例所在的分组
func BucketOf(inst *instance.Instance) Bucket {
	return NewBucket(inst.Position, inst.Column)
}

// ParseColumnPosition 解析 column_<n> 位置
func ParseColumnPosition(position string) (int, bool) {
	if !strings.HasPrefix(position, ColumnPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(position, ColumnPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ColumnPosition 返回第 n 列的位置名
func ColumnPosition(n int) string {
	return ColumnPrefix + strconv.Itoa(n)
}

// Positions 返回容器允许的全部位置
// 页脚的列位置位于 footer_top 与 footer_bar 之间
func Positions(c *instance.Container) []string {
	fixed := kindPositions[c.Kind]
	columns := make([]string, 0, c.Columns)
	for n := 1; n <= c.Columns; n++ {
		columns = append(columns, ColumnPosition(n))
	}

	out := make([]string, 0, len(fixed)+len(columns))
	if c.Kind == instance.KindFooter {
		out = append(out, fixed[:1]...)
		out = append(out, columns...)
		return append(out, fixed[1:]...)
	}
	out = append(out, fixed...)
	return append(out, columns...)
}

// ResolveBucket 校验位置和列号并返回规范化的分组
func ResolveBucket(c *instance.Container, position string, column *int) (Bucket, error) {
	if n, ok := ParseColumnPosition(position); ok {
		if c.Columns == 0 {
			return Bucket{}, fmt.Errorf("%w: %s has no columns", ErrInvalidPosition, c.Kind)
		}
		if column != nil && *column != n {
			return Bucket{}, fmt.Errorf("%w: column %d conflicts with position %s", ErrInvalidPosition, *column, position)
		}
		if n < 1 || n > c.Columns {
			return Bucket{}, &ColumnOutOfRangeError{Column: n, Columns: c.Columns}
		}
		return NewBucket(position, nil), nil
	}

	for _, p := range kindPositions[c.Kind] {
		if p == position {
			if column != nil {
				return Bucket{}, fmt.Errorf("%w: position %s is not column partitioned", ErrInvalidPosition, position)
			}
			return Bucket{Position: position}, nil
		}
	}
	return Bucket{}, fmt.Errorf("%w: %q is not a %s position", ErrInvalidPosition, position, c.Kind)
}

// Members 返回分组内按顺序排列的实例
// 顺序相同时按创建时间,再按 ID 排序
func Members(c *instance.Container, b Bucket) []*instance.Instance {
	key := b.Key()
	var out []*instance.Instance
	for _, inst := range c.Instances {
		if BucketOf(inst).Key() == key {
			out = append(out, inst)
		}
	}
	sortMembers(out)
	return out
}

// Buckets 返回容器中出现的所有分组,按位置顺序排列
func Buckets(c *instance.Container) []Bucket {
	rank := map[string]int{}
	for i, p := range Positions(c) {
		rank[p] = i
	}

	seen := map[string]bool{}
	var out []Bucket
	for _, inst := range c.Instances {
		b := BucketOf(inst)
		if seen[b.Key()] {
			continue
		}
		seen[b.Key()] = true
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].Position]
		rj, jok := rank[out[j].Position]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func sortMembers(members []*instance.Instance) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
