package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appAgent "github.com/aimaestro/backend/internal/application/agent"
	domainAgent "github.com/aimaestro/backend/internal/domain/agent"
	"github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/interfaces/http/response"
)

// AgentHandler 智能体处理器
type AgentHandler struct {
	service *appAgent.Service
	logger  *slog.Logger
}

// NewAgentHandler 创建智能体处理器
func NewAgentHandler(service *appAgent.Service) *AgentHandler {
	return &AgentHandler{
		service: service,
		logger:  log.NewModuleLogger("agent", "handler"),
	}
}

// CreateAgentRequest 创建智能体请求
type CreateAgentRequest struct {
	Name         string  `json:"name" binding:"required"`
	Description  string  `json:"description,omitempty"`
	Model        string  `json:"model" binding:"required"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// AgentView 智能体视图
type AgentView struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Model              string    `json:"model"`
	Temperature        float64   `json:"temperature"`
	MaxTokens          int       `json:"max_tokens"`
	IsActive           bool      `json:"is_active"`
	IsPublished        bool      `json:"is_published"`
	TotalConversations int       `json:"total_conversations"`
	TotalMessages      int       `json:"total_messages"`
	CreatedAt          time.Time `json:"created_at"`
}

func agentView(a *domainAgent.Agent) AgentView {
	return AgentView{
		ID:                 a.ID,
		Name:               a.Name,
		Description:        a.Description,
		Model:              a.Model,
		Temperature:        a.Temperature,
		MaxTokens:          a.MaxTokens,
		IsActive:           a.IsActive,
		IsPublished:        a.IsPublished,
		TotalConversations: a.TotalConversations,
		TotalMessages:      a.TotalMessages,
		CreatedAt:          a.CreatedAt,
	}
}

// Create 创建智能体
// POST /api/v1/agents
func (h *AgentHandler) Create(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}

	ag, err := h.service.Create(c.Request.Context(), &appAgent.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		Model:        req.Model,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SystemPrompt: req.SystemPrompt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, agentView(ag))
}

// List 列出所有智能体
// GET /api/v1/agents
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]AgentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView(a))
	}
	response.Success(c, views)
}

// Get 获取单个智能体
// GET /api/v1/agents/:id
func (h *AgentHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid agent id")
		return
	}

	ag, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, agentView(ag))
}

// PublishRequest 发布状态请求
type PublishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// Publish 设置发布状态
// POST /api/v1/agents/:id/publish
func (h *AgentHandler) Publish(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, "invalid agent id")
		return
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	if err := h.service.SetPublished(c.Request.Context(), id, *req.Published); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"published": *req.Published})
}
