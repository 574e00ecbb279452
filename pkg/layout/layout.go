// Package layout 维护容器内 (position, column) 分组的稠密排序。
//
// 所有变更操作都先完成校验再修改容器,校验失败时容器保持不变。
// 每次变更都从头重算受影响分组的顺序 1..N,而不是做相对增减,
// 因此并发编辑中后写入者的结果总是一个合法的稠密排序。
package layout

import (
	"errors"
	"fmt"
	"time"

	"github.com/pixelprecision/reticstudio/pkg/instance"
)

// ErrOrderGap 分组顺序不是稠密的 1..N
var ErrOrderGap = errors.New("bucket order is not dense")

// Target 插入或移动的目标位置
type Target struct {
	ContainerID string `json:"container_id,omitempty"`
	Position    string `json:"position"`
	Column      *int   `json:"column,omitempty"`
	Index       *int   `json:"index,omitempty"` // 从 1 开始,为空表示追加到末尾
}

// Insert 将实例插入目标分组
// 目标分组中 order >= index 的实例顺延一位,新实例的 order 为 index
func Insert(c *instance.Container, inst *instance.Instance, t Target) error {
	if inst == nil || inst.ID == "" {
		return fmt.Errorf("%w: id is required", instance.ErrInvalidInstance)
	}
	if _, _, err := c.Find(inst.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, inst.ID)
	}
	if inst.ContainerID != "" && inst.ContainerID != c.ID {
		return fmt.Errorf("%w: instance belongs to container %s", ErrInvalidMove, inst.ContainerID)
	}
	if err := inst.TypeTag.AllowedIn(c.Kind); err != nil {
		return err
	}
	b, err := resolveTarget(c, t)
	if err != nil {
		return err
	}

	place(c, inst, b, t.Index)
	return nil
}

// Remove 从容器中移除实例并重排其原分组
func Remove(c *instance.Container, instanceID string) (*instance.Instance, error) {
	inst, idx, err := c.Find(instanceID)
	if err != nil {
		return nil, err
	}

	remaining := make([]*instance.Instance, 0, len(c.Instances)-1)
	remaining = append(remaining, c.Instances[:idx]...)
	remaining = append(remaining, c.Instances[idx+1:]...)
	c.Instances = remaining

	renumber(c, BucketOf(inst))
	return inst, nil
}

// Move 移动实例
// 先从源分组移除并重排,再插入目标分组,同一分组内的调整也走相同路径
func Move(c *instance.Container, instanceID string, t Target) error {
	inst, _, err := c.Find(instanceID)
	if err != nil {
		return err
	}
	b, err := resolveTarget(c, t)
	if err != nil {
		return err
	}

	if _, err := Remove(c, instanceID); err != nil {
		return err
	}
	place(c, inst, b, t.Index)
	inst.UpdatedAt = time.Now()
	return nil
}

// ReorderBucket 按给定的完整 ID 列表重排分组
// 列表必须恰好包含分组当前的全部成员
func ReorderBucket(c *instance.Container, position string, column *int, orderedIDs []string) error {
	b, err := ResolveBucket(c, position, column)
	if err != nil {
		return err
	}
	members := Members(c, b)

	byID := make(map[string]*instance.Instance, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	reorderErr := &IncompleteReorderError{Bucket: b}
	seen := make(map[string]bool, len(orderedIDs))
	ordered := make([]*instance.Instance, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			reorderErr.Duplicates = append(reorderErr.Duplicates, id)
			continue
		}
		seen[id] = true
		m, ok := byID[id]
		if !ok {
			reorderErr.Unexpected = append(reorderErr.Unexpected, id)
			continue
		}
		ordered = append(ordered, m)
	}
	for _, m := range members {
		if !seen[m.ID] {
			reorderErr.Missing = append(reorderErr.Missing, m.ID)
		}
	}
	if len(reorderErr.Missing)+len(reorderErr.Unexpected)+len(reorderErr.Duplicates) > 0 {
		return reorderErr
	}

	assign(ordered)
	return nil
}

// SetColumns 修改容器列数,仍有实例的列不能被移除
func SetColumns(c *instance.Container, columns int) error {
	if columns < 0 || columns > instance.MaxColumns {
		return fmt.Errorf("%w: columns must be between 0 and %d", instance.ErrInvalidContainer, instance.MaxColumns)
	}
	for _, inst := range c.Instances {
		if n, ok := ParseColumnPosition(inst.Position); ok && n > columns {
			return &ColumnOutOfRangeError{Column: n, Columns: columns}
		}
	}
	c.Columns = columns
	return nil
}

// Normalize 重排容器内所有分组,消除重复或空缺的顺序,返回被修改的实例数
func Normalize(c *instance.Container) int {
	changed := 0
	for _, b := range Buckets(c) {
		changed += assign(Members(c, b))
	}
	return changed
}

// Check 校验所有分组的顺序都是稠密的 1..N
func Check(c *instance.Container) error {
	for _, b := range Buckets(c) {
		for i, m := range Members(c, b) {
			if m.Order != i+1 {
				return fmt.Errorf("%w: %s has order %d at rank %d in %s", ErrOrderGap, m.ID, m.Order, i+1, b)
			}
		}
	}
	return nil
}

func resolveTarget(c *instance.Container, t Target) (Bucket, error) {
	if t.ContainerID != "" && t.ContainerID != c.ID {
		return Bucket{}, fmt.Errorf("%w: cross-container moves are not supported", ErrInvalidMove)
	}
	if t.Index != nil && *t.Index < 1 {
		return Bucket{}, fmt.Errorf("%w: index must be at least 1", ErrInvalidIndex)
	}
	return ResolveBucket(c, t.Position, t.Column)
}

// place 将实例放入分组并重排,调用方需保证已校验
func place(c *instance.Container, inst *instance.Instance, b Bucket, index *int) {
	members := Members(c, b)

	pos := len(members)
	if index != nil && *index-1 < pos {
		pos = *index - 1
	}
	ordered := make([]*instance.Instance, 0, len(members)+1)
	ordered = append(ordered, members[:pos]...)
	ordered = append(ordered, inst)
	ordered = append(ordered, members[pos:]...)

	inst.ContainerID = c.ID
	inst.Position = b.Position
	inst.Column = nil
	if b.Column != nil {
		inst.Column = instance.IntPtr(*b.Column)
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}
	c.Instances = append(c.Instances, inst)

	assign(ordered)
}

func renumber(c *instance.Container, b Bucket) {
	assign(Members(c, b))
}

func assign(ordered []*instance.Instance) int {
	now := time.Now()
	changed := 0
	for i, m := range ordered {
		if m.Order != i+1 {
			m.Order = i + 1
			m.UpdatedAt = now
			changed++
		}
	}
	return changed
}
