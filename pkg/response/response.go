package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess        = 0
	CodeParamError     = 400
	CodeNotFound       = 404
	CodeServerError    = 500
	CodePartialSuccess = 1001
	CodeBatchFailed    = 1002
)

// Response 统一响应结构
// success 与 HTTP 状态码同时表达结果：前端只看 success，网关/监控看状态码
type Response struct {
	Success  bool        `json:"success"`
	Code     int         `json:"code"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data"`
	Errors   interface{} `json:"errors,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Batch 批量结果：部分成功返回 200，全部失败返回 500，两种情况都带最新数据
func Batch(c *gin.Context, status int, success bool, code int, message string, data, errs interface{}, warnings []string) {
	c.JSON(status, Response{
		Success:  success,
		Code:     code,
		Message:  message,
		Data:     data,
		Errors:   errs,
		Warnings: warnings,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}
