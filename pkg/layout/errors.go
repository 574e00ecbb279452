package layout

import (
	"errors"
	"fmt"
	"strings"
)

// 错误定义
var (
	ErrInvalidPosition   = errors.New("invalid layout position")
	ErrInvalidMove       = errors.New("invalid move")
	ErrInvalidIndex      = errors.New("invalid layout index")
	ErrDuplicateInstance = errors.New("instance already exists in container")
	ErrColumnOutOfRange  = errors.New("column out of range")
	ErrIncompleteReorder = errors.New("incomplete reorder")
)

// ColumnOutOfRangeError 目标列超出容器配置的列数
type ColumnOutOfRangeError struct {
	Column  int
	Columns int
}

func (e *ColumnOutOfRangeError) Error() string {
	return fmt.Sprintf("column %d does not exist in a %d-column layout", e.Column, e.Columns)
}

// Is 支持 errors.Is(err, ErrColumnOutOfRange)
func (e *ColumnOutOfRangeError) Is(target error) bool {
	return target == ErrColumnOutOfRange
}

// IncompleteReorderError 重排列表与分组当前成员不一致
type IncompleteReorderError struct {
	Bucket     Bucket
	Missing    []string
	Unexpected []string
	Duplicates []string
}

func (e *IncompleteReorderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicated "+strings.Join(e.Duplicates, ","))
	}
	return fmt.Sprintf("incomplete reorder of %s: %s", e.Bucket, strings.Join(parts, "; "))
}

// Is 支持 errors.Is(err, ErrIncompleteReorder)
func (e *IncompleteReorderError) Is(target error) bool {
	return target == ErrIncompleteReorder
}
