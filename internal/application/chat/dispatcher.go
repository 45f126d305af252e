package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aimaestro/backend/internal/infrastructure/log"
	"github.com/aimaestro/backend/internal/infrastructure/websocket"
)

var (
	// ErrChannelQueueFull 渠道消息队列已满
	ErrChannelQueueFull = errors.New("channel queue full")
	// ErrChannelQueueStopped 分发器已停止，不再接收消息
	ErrChannelQueueStopped = errors.New("channel dispatcher stopped")
)

const (
	channelQueueSize = 64
	channelWorkers   = 2
	// channelTurnTimeout 单个渠道回合的处理上限
	channelTurnTimeout = 120 * time.Second
)

// channelReply 推送给渠道订阅方的回复
type channelReply struct {
	Type         string `json:"type"`
	SessionToken string `json:"session_token"`
	Reply        string `json:"reply,omitempty"`
	Model        string `json:"model,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Dispatcher 渠道消息分发器
// 入站渠道消息先入队确认，worker 再走编排器处理，
// 回复通过 WebSocket Hub 推送给按 session token 订阅的连接
type Dispatcher struct {
	orchestrator *Orchestrator
	hub          *websocket.Hub
	jobs         chan *TurnRequest
	logger       *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once

	// mu 保护 closed 与 jobs 的写入端：入队持锁发送，
	// 关闭前先持锁置位，保证不会向已关闭的 channel 发送
	mu     sync.Mutex
	closed bool
}

// NewDispatcher 创建渠道分发器
func NewDispatcher(orchestrator *Orchestrator, hub *websocket.Hub) *Dispatcher {
	return &Dispatcher{
		orchestrator: orchestrator,
		hub:          hub,
		jobs:         make(chan *TurnRequest, channelQueueSize),
		logger:       log.NewModuleLogger("chat", "dispatcher"),
	}
}

// Start 启动 worker 协程
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < channelWorkers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.logger.Info("channel dispatcher started", "workers", channelWorkers)
}

// Stop 停止分发器，等待 worker 退出
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		if d.cancel != nil {
			d.cancel()
		}
		close(d.jobs)
		d.wg.Wait()
	})
}

// Enqueue 提交渠道回合任务
// 入队成功即向渠道返回确认；队列满时返回 ErrChannelQueueFull，
// 停止后返回 ErrChannelQueueStopped
func (d *Dispatcher) Enqueue(req *TurnRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrChannelQueueStopped
	}
	select {
	case d.jobs <- req:
		return nil
	default:
		return ErrChannelQueueFull
	}
}

// run worker 主循环
func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-d.jobs:
			if !ok {
				return
			}
			d.process(ctx, req)
		}
	}
}

// process 处理一个渠道回合并推送结果
// 失败也推送给订阅方，不静默丢弃
func (d *Dispatcher) process(ctx context.Context, req *TurnRequest) {
	turnCtx, cancel := context.WithTimeout(ctx, channelTurnTimeout)
	defer cancel()

	result, err := d.orchestrator.ProcessTurn(turnCtx, req)
	if err != nil {
		d.logger.Warn("channel turn failed",
			"channel", req.Channel, "agent_id", req.AgentID, "error", err)
		if req.SessionToken != "" {
			d.push(&channelReply{
				Type:         "error",
				SessionToken: req.SessionToken,
				Error:        err.Error(),
			})
		}
		return
	}

	d.push(&channelReply{
		Type:         "reply",
		SessionToken: result.SessionToken,
		Reply:        result.Reply,
		Model:        result.Model,
	})
}

// push 向会话订阅方推送
func (d *Dispatcher) push(reply *channelReply) {
	if err := d.hub.BroadcastToSession(reply.SessionToken, reply); err != nil {
		d.logger.Warn("failed to push channel reply",
			"session_token", reply.SessionToken, "error", err)
	}
}
