package handler

import (
	"net/http"
	"sales-voice-go/internal/chart"
	"sales-voice-go/internal/service"
	"sales-voice-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话历史与最新图表的查询。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// History 返回会话记录，最新的在前。
func (h *ConversationHandler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", history)
}

// Archive 返回会话在 MySQL 中归档的问答。
func (h *ConversationHandler) Archive(c *gin.Context) {
	records, err := h.service.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", records)
}

// Chart 以 HTML 页面返回最近一次绘制的图表。
func (h *ConversationHandler) Chart(c *gin.Context) {
	latest, err := h.service.LatestChart(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := chart.RenderHTML(c.Writer, latest); err != nil {
		log.Errorf("渲染图表失败: %v", err)
	}
}
