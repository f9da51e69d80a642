package handler

import (
	"net/http"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SpeechHandler 查询回答的语音状态。
type SpeechHandler struct {
	speechService service.SpeechService
}

// NewSpeechHandler 创建一个新的 SpeechHandler。
func NewSpeechHandler(speechService service.SpeechService) *SpeechHandler {
	return &SpeechHandler{speechService: speechService}
}

// Audio 在语音仍在合成时返回 202。
func (h *SpeechHandler) Audio(c *gin.Context) {
	audio, err := h.speechService.Audio(c.Request.Context(), c.Param("id"), c.Param("turnId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if audio.Status == model.SpeechPending {
		respond(c, http.StatusAccepted, "speech is being synthesized", audio)
		return
	}
	respond(c, http.StatusOK, "success", audio)
}
