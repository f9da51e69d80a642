package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sales-voice-go/internal/service"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/token"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理提问请求，包括 HTTP 与 WebSocket 两种方式。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask 以一次 HTTP 请求完成问答。模型失败时返回 502，data 中仍包含写入会话的错误回答。
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	res, err := h.chatService.Ask(c.Request.Context(), c.Param("id"), req.Question, nil)
	if err != nil {
		if errors.Is(err, service.ErrModelUnavailable) && res != nil {
			respond(c, http.StatusBadGateway, res.Answer, res)
			return
		}
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "success", res)
}

// wsConn 串行化对同一连接的写入，流式分块与控制帧可能来自不同 goroutine。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, b)
}

// chunkWriter 将模型分块包装为 {"chunk":"..."}，停止后不再下发。
type chunkWriter struct {
	ws      *wsConn
	stopped func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *chunkWriter) WriteMessage(_ int, data []byte) error {
	if w.stopped() {
		return nil
	}
	return w.ws.writeJSON(map[string]string{"chunk": string(data)})
}

// clientMessage 是客户端发送的 JSON 帧，纯文本帧直接视为问题。
type clientMessage struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

func parseClientMessage(raw []byte) clientMessage {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		var msg clientMessage
		if err := json.Unmarshal([]byte(text), &msg); err == nil {
			return msg
		}
	}
	return clientMessage{Question: text}
}

func notification(kind, message string) map[string]interface{} {
	now := time.Now()
	return map[string]interface{}{
		"type":      kind,
		"message":   message,
		"timestamp": now.UnixMilli(),
		"date":      now.Format("2006-01-02T15:04:05"),
	}
}

// inflightAsk 是连接上正在进行的一次提问。
type inflightAsk struct {
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

func (a *inflightAsk) stop() {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.cancel()
}

func (a *inflightAsk) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func (a *inflightAsk) running() bool {
	if a == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Handle 处理一个 WebSocket 连接。每个文本帧是一个问题，{"type":"stop"} 取消进行中的提问。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		respond(c, http.StatusUnauthorized, "invalid token", nil)
		return
	}
	sessionID := claims.SessionID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	var current *inflightAsk
	defer func() {
		// 连接断开时取消进行中的提问，并等待其退出后再关闭连接
		if current.running() {
			current.stop()
			<-current.done
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		msg := parseClientMessage(raw)
		if msg.Type == "stop" {
			if current.running() {
				log.Infof("收到停止指令，正在中断会话 %s 的提问", sessionID)
				current.stop()
				<-current.done
			}
			_ = ws.writeJSON(notification("stop", "response stopped"))
			continue
		}
		if current.running() {
			_ = ws.writeJSON(gin.H{"type": "error", "error": "a question is already in progress"})
			continue
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		current = &inflightAsk{cancel: cancel, done: make(chan struct{})}
		go h.answer(ctx, ws, sessionID, msg.Question, current)
	}
}

func (h *ChatHandler) answer(ctx context.Context, ws *wsConn, sessionID, question string, ask *inflightAsk) {
	defer close(ask.done)
	defer ask.cancel()

	writer := &chunkWriter{ws: ws, stopped: ask.isStopped}
	res, err := h.chatService.Ask(ctx, sessionID, question, writer)
	if ask.isStopped() {
		return
	}
	if err != nil {
		log.Errorf("处理提问失败, 会话: %s, Error: %v", sessionID, err)
		message := err.Error()
		if errors.Is(err, service.ErrModelUnavailable) {
			message = service.ErrorReply
		} else if statusFor(err) == http.StatusInternalServerError {
			message = "internal server error"
		}
		_ = ws.writeJSON(gin.H{"type": "error", "error": message})
		_ = ws.writeJSON(notification("completion", "response finished"))
		return
	}
	_ = ws.writeJSON(gin.H{"type": "result", "data": res})
	_ = ws.writeJSON(notification("completion", "response finished"))
}
