package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 编辑器接口的响应信封
// @Description 组件定义、容器与解析结果接口的统一返回体,data 为具体资源
type Response struct {
	Code    int         `json:"code" example:"0"`          // 0 表示成功
	Message string      `json:"message" example:"success"` // 固定为 success
	Data    interface{} `json:"data"`                      // 定义、容器、实例或渲染数据
}

// ErrorResponse 错误响应
// @Description 请求失败时的返回体,code 与 HTTP 状态码一致,布局规则冲突为 422
type ErrorResponse struct {
	Code    int    `json:"code" example:"422"`
	Message string `json:"message" example:"column out of range"`
	Detail  string `json:"detail,omitempty" example:"column 4 out of range"` // 具体违反的规则
}

// PaginatedResponse 容器列表分页响应
// @Description 容器列表的返回体,附带分页信息
type PaginatedResponse struct {
	Code       int            `json:"code" example:"0"`
	Message    string         `json:"message" example:"success"`
	Data       interface{}    `json:"data"` // 容器摘要列表
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo 分页信息
// @Description 当前页码、每页数量、容器总数和总页数
type PaginationInfo struct {
	Page      int   `json:"page" example:"1"`
	PageSize  int   `json:"page_size" example:"20"`
	Total     int64 `json:"total" example:"42"`
	TotalPage int   `json:"total_page" example:"3"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Created 资源创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error 错误响应,非 4xx/5xx 的 code 按 500 返回
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}
