package handler

import (
	"net/http"
	"sales-voice-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 处理会话的创建与结束。
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create 新建会话，返回会话 ID 与访问令牌。
func (h *SessionHandler) Create(c *gin.Context) {
	session, tok, err := h.sessionService.Create(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", gin.H{
		"sessionId": session.ID,
		"token":     tok,
	})
}

// End 结束会话，进行中的提问会被取消。
func (h *SessionHandler) End(c *gin.Context) {
	if err := h.sessionService.End(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "session ended", nil)
}
