package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/interfaces/http/handler"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.ServerConfig,
	chatHandler *handler.ChatHandler,
	agentHandler *handler.AgentHandler,
	knowledgeHandler *handler.KnowledgeHandler,
) *HTTPServer {
	router := gin.Default()

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 对话相关路由
		api.POST("/chat", chatHandler.Chat)
		api.GET("/conversations/:token/history", chatHandler.History)
		api.POST("/conversations/:token/end", chatHandler.End)
		api.POST("/channels/:channel/messages", chatHandler.ChannelMessage)

		// 智能体相关路由
		api.POST("/agents", agentHandler.Create)
		api.GET("/agents", agentHandler.List)
		api.GET("/agents/:id", agentHandler.Get)
		api.POST("/agents/:id/publish", agentHandler.Publish)

		// 知识库相关路由
		kb := api.Group("/knowledge-bases")
		{
			kb.POST("", knowledgeHandler.Create)
			kb.GET("", knowledgeHandler.List)
			kb.GET("/:id", knowledgeHandler.Get)
			kb.DELETE("/:id", knowledgeHandler.Delete)
			kb.POST("/:id/documents", knowledgeHandler.Upload)
			kb.GET("/:id/documents", knowledgeHandler.Documents)
			kb.POST("/:id/search", knowledgeHandler.Search)
		}
		api.GET("/documents/:id", knowledgeHandler.Document)
	}

	// WebSocket 订阅
	router.GET("/ws", chatHandler.Subscribe)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
