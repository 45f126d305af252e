package wire

import (
	"database/sql"

	"log/slog"

	appChat "github.com/aimaestro/backend/internal/application/chat"
	appIngest "github.com/aimaestro/backend/internal/application/ingest"
	applog "github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/infrastructure/websocket"
	interfaceHTTP "github.com/aimaestro/backend/internal/interfaces/http"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer  *interfaceHTTP.HTTPServer
	wsHub       *websocket.Hub
	dispatcher  *appChat.Dispatcher
	ingestQueue *appIngest.Queue
	db          *sql.DB
	logger      *slog.Logger
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaceHTTP.HTTPServer,
	wsHub *websocket.Hub,
	dispatcher *appChat.Dispatcher,
	ingestQueue *appIngest.Queue,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:  httpServer,
		wsHub:       wsHub,
		dispatcher:  dispatcher,
		ingestQueue: ingestQueue,
		db:          db,
		logger:      applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting AIMaestro backend application")

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动文档摄取队列
	a.ingestQueue.Start()

	// 启动渠道消息分发器
	a.dispatcher.Start()

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("AIMaestro backend application started successfully")

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping AIMaestro backend application")

	// 先停入口，再停后台队列，最后关数据库
	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	a.dispatcher.Stop()
	a.ingestQueue.Stop()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("AIMaestro backend application stopped successfully")

	return nil
}
