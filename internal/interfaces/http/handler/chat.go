package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	appChat "github.com/aimaestro/backend/internal/application/chat"
	"github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/infrastructure/websocket"
	"github.com/aimaestro/backend/internal/interfaces/http/response"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	orchestrator *appChat.Orchestrator
	sessions     *appChat.SessionStore
	dispatcher   *appChat.Dispatcher
	hub          *websocket.Hub
	upgrader     gorilla.Upgrader
	logger       *slog.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(
	orchestrator *appChat.Orchestrator,
	sessions *appChat.SessionStore,
	dispatcher *appChat.Dispatcher,
	hub *websocket.Hub,
) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		sessions:     sessions,
		dispatcher:   dispatcher,
		hub:          hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.NewModuleLogger("chat", "handler"),
	}
}

// ChatRequest 对话回合请求
type ChatRequest struct {
	AgentID      int64             `json:"agent_id" binding:"required"`
	Message      string            `json:"message" binding:"required"`
	SessionToken string            `json:"session_token,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ChatResponse 对话回合响应
type ChatResponse struct {
	SessionToken string  `json:"session_token"`
	Reply        string  `json:"reply"`
	AgentName    string  `json:"agent_name"`
	Model        string  `json:"model"`
	LatencyMS    int64   `json:"latency_ms"`
	TokensUsed   int     `json:"tokens_used"`
	Cost         float64 `json:"cost"`
}

// Chat 处理一个对话回合
// POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	result, err := h.orchestrator.ProcessTurn(c.Request.Context(), &appChat.TurnRequest{
		AgentID:      req.AgentID,
		Message:      req.Message,
		SessionToken: req.SessionToken,
		Channel:      "web",
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, ChatResponse{
		SessionToken: result.SessionToken,
		Reply:        result.Reply,
		AgentName:    result.AgentName,
		Model:        result.Model,
		LatencyMS:    result.LatencyMS,
		TokensUsed:   result.TokensUsed,
		Cost:         result.Cost,
	})
}

// HistoryItem 历史消息
type HistoryItem struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History 返回会话的全部消息
// GET /api/v1/conversations/:token/history
func (h *ChatHandler) History(c *gin.Context) {
	token := c.Param("token")

	conv, err := h.sessions.GetByToken(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}

	messages, err := h.sessions.History(c.Request.Context(), conv.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]HistoryItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, HistoryItem{
			Role:      m.Role,
			Content:   m.Content,
			Model:     m.Model,
			CreatedAt: m.CreatedAt,
		})
	}
	response.Success(c, items)
}

// EndRequest 结束会话请求
type EndRequest struct {
	Rating   *int   `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// End 结束会话并记录可选评分
// POST /api/v1/conversations/:token/end
func (h *ChatHandler) End(c *gin.Context) {
	var req EndRequest
	// rating 与 feedback 都是可选的，空请求体直接按零值处理
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "rating must be between 1 and 5")
		return
	}

	if err := h.sessions.End(c.Request.Context(), c.Param("token"), req.Rating, req.Feedback); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"ended": true})
}

// ChannelMessageRequest 外部渠道入站消息
type ChannelMessageRequest struct {
	AgentID        int64             `json:"agent_id" binding:"required"`
	Message        string            `json:"message" binding:"required"`
	SessionToken   string            `json:"session_token,omitempty"`
	ExternalUserID string            `json:"external_user_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ChannelMessage 受理渠道消息：入队确认，结果通过 WebSocket 推送
// POST /api/v1/channels/:channel/messages
func (h *ChatHandler) ChannelMessage(c *gin.Context) {
	var req ChannelMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	err := h.dispatcher.Enqueue(&appChat.TurnRequest{
		AgentID:        req.AgentID,
		Message:        req.Message,
		SessionToken:   req.SessionToken,
		Channel:        c.Param("channel"),
		ExternalUserID: req.ExternalUserID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Accepted(c, gin.H{"queued": true})
}

// Subscribe 订阅会话的异步回复
// GET /ws?session_token=...
func (h *ChatHandler) Subscribe(c *gin.Context) {
	token := c.Query("session_token")
	if token == "" {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "session_token is required")
		return
	}
	if _, err := h.sessions.GetByToken(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &websocket.Connection{
		SessionToken: token,
		Send:         make(chan []byte, 16),
	}
	h.hub.Register(conn)

	go h.writePump(ws, conn)
	go h.readPump(ws, conn)
}

// writePump 把 Hub 推送的消息写到连接上
func (h *ChatHandler) writePump(ws *gorilla.Conn, conn *websocket.Connection) {
	defer ws.Close()
	for data := range conn.Send {
		if err := ws.WriteMessage(gorilla.TextMessage, data); err != nil {
			h.hub.Unregister(conn)
			return
		}
	}
}

// readPump 消费入站帧，只为感知连接关闭
func (h *ChatHandler) readPump(ws *gorilla.Conn, conn *websocket.Connection) {
	defer ws.Close()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.hub.Unregister(conn)
			return
		}
	}
}
