package utils

import (
	"errors"
	"regexp"
	"strings"
)

var sortFieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SortableColumns 允许用于排序的列
var SortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"kind":       true,
	"slug":       true,
	"category":   true,
	"seq":        true,
}

// ValidateSortField 验证排序字段,只接受白名单中的列名
func ValidateSortField(field string) error {
	if field == "" {
		return errors.New("sort field cannot be empty")
	}
	if !sortFieldPattern.MatchString(field) {
		return errors.New("invalid sort field format")
	}
	if !SortableColumns[field] {
		return errors.New("sort field is not sortable")
	}
	return nil
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return errors.New("sort order must be ASC or DESC")
	}
	return nil
}
