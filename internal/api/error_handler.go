package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pixelprecision/reticstudio/internal/service"
	"github.com/pixelprecision/reticstudio/internal/utils"
	"github.com/pixelprecision/reticstudio/pkg/definition"
	"github.com/pixelprecision/reticstudio/pkg/instance"
	"github.com/pixelprecision/reticstudio/pkg/layout"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// 领域错误到 HTTP 状态码的映射,按顺序匹配
var errorStatus = []struct {
	target  error
	status  int
	message string
}{
	{definition.ErrNotFound, http.StatusNotFound, "definition not found"},
	{instance.ErrContainerNotFound, http.StatusNotFound, "container not found"},
	{instance.ErrInstanceNotFound, http.StatusNotFound, "instance not found"},

	{definition.ErrDuplicateSlug, http.StatusConflict, "definition slug already exists"},
	{definition.ErrProtectedDefinition, http.StatusConflict, "definition is protected"},
	{instance.ErrDuplicateContainer, http.StatusConflict, "container already exists"},
	{service.ErrDefinitionInactive, http.StatusConflict, "definition is inactive"},

	{layout.ErrColumnOutOfRange, http.StatusUnprocessableEntity, "column out of range"},
	{layout.ErrIncompleteReorder, http.StatusUnprocessableEntity, "incomplete reorder"},
	{layout.ErrInvalidMove, http.StatusUnprocessableEntity, "invalid move"},
	{layout.ErrInvalidPosition, http.StatusUnprocessableEntity, "invalid position"},
	{layout.ErrInvalidIndex, http.StatusUnprocessableEntity, "invalid index"},
	{layout.ErrDuplicateInstance, http.StatusUnprocessableEntity, "duplicate instance"},
	{instance.ErrInvalidPlacement, http.StatusUnprocessableEntity, "invalid placement"},

	{definition.ErrInvalidDefinition, http.StatusBadRequest, "invalid definition"},
	{instance.ErrInvalidContainer, http.StatusBadRequest, "invalid container"},
	{instance.ErrInvalidInstance, http.StatusBadRequest, "invalid instance"},
	{instance.ErrUnknownTypeTag, http.StatusBadRequest, "unknown type tag"},
	{service.ErrDefinitionRequired, http.StatusBadRequest, "definition required"},
}

// HandleError 将服务层错误转换为统一的错误响应
func HandleError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.target) {
			Error(c, m.status, m.message, err.Error())
			return
		}
	}

	var validationErr *utils.ValidationError
	if errors.As(err, &validationErr) {
		Error(c, http.StatusBadRequest, "validation failed", validationErr.Message)
		return
	}

	_ = c.Error(err)
	GetLogger().WithField("request_id", c.GetString("request_id")).WithError(err).Error("Unhandled service error")
	Error(c, http.StatusInternalServerError, "internal server error", "")
}

// HandleBindError 处理请求体绑定错误
func HandleBindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &validationErrs):
		Error(c, http.StatusBadRequest, "validation failed", validationErrs.Error())
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		Error(c, http.StatusBadRequest, "invalid request body", err.Error())
	default:
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
	}
}
