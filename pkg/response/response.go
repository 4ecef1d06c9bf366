package response

import (
	"net/http"

	"MoodCapture/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Success 200 响应
func Success(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": msg,
		"data":    data,
	})
}

// Created 201 响应，body 中的字段与 message 平铺在同一层
func Created(c *gin.Context, msg string, body gin.H) {
	out := gin.H{"message": msg}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(http.StatusCreated, out)
}

// Fail 400 响应
func Fail(c *gin.Context, msg string, data any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": msg,
		"data":    data,
	})
}

// Abort 指定状态码的错误响应
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    status,
		"message": msg,
	})
}

// StatusOf 将错误分类映射为 HTTP 状态码
func StatusOf(err error) int {
	if code := errors.GetCode(err); code >= 400 && code < 600 {
		return code
	}
	switch errors.KindOf(err) {
	case errors.KindValidationFailed, errors.KindInvalidTransition:
		return http.StatusBadRequest
	case errors.KindUnauthorized, errors.KindPermissionDenied:
		return http.StatusUnauthorized
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindDeviceBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error 按错误分类输出；5xx 不暴露内部细节
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		Abort(c, status, "Server error")
		return
	}
	Abort(c, status, errors.GetMessage(err))
}
