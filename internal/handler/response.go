// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"sales-voice-go/internal/service"
	"sales-voice-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

// respondError 将业务错误映射为 HTTP 状态码。未知错误只记录日志，不把细节返回给客户端。
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("[%s %s] 请求处理失败: %v", c.Request.Method, c.FullPath(), err)
		message = "internal server error"
	}
	respond(c, status, message, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrAudioNotFound),
		errors.Is(err, service.ErrNoChart):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyQuestion),
		errors.Is(err, service.ErrInvalidDataset):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDatasetTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoDataset):
		return http.StatusConflict
	case errors.Is(err, service.ErrModelUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
