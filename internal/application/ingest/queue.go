package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

var (
	// ErrQueueFull 摄取队列已满，调用方应稍后重试
	ErrQueueFull = errors.New("ingest queue full")
	// ErrQueueStopped 队列已停止，不再接收任务
	ErrQueueStopped = errors.New("ingest queue stopped")
)

// Queue 文档摄取队列
// 入队立即返回确认，后台 worker 串行消费；
// 处理失败记录在文档上，不会静默丢弃
type Queue struct {
	service *Service
	jobs    chan int64
	workers int
	logger  *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once

	// mu 保护 closed 与 jobs 的写入端：入队持锁发送，
	// 关闭前先持锁置位，保证不会向已关闭的 channel 发送
	mu     sync.Mutex
	closed bool
}

// NewQueue 创建摄取队列
func NewQueue(cfg *config.Config, service *Service) *Queue {
	workers := cfg.Ingest.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.Ingest.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	return &Queue{
		service: service,
		jobs:    make(chan int64, queueSize),
		workers: workers,
		logger:  log.NewModuleLogger("ingest", "queue"),
	}
}

// Start 启动 worker 协程
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
	q.logger.Info("ingest queue started", "workers", q.workers, "capacity", cap(q.jobs))
}

// Stop 停止队列，等待 worker 退出
// 队列中未消费的任务被放弃，文档保持未处理状态
func (q *Queue) Stop() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		if q.cancel != nil {
			q.cancel()
		}
		close(q.jobs)
		q.wg.Wait()
	})
}

// Enqueue 提交文档处理任务
// 队列满时返回 ErrQueueFull 而不是阻塞请求；停止后返回 ErrQueueStopped
func (q *Queue) Enqueue(documentID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- documentID:
		return nil
	default:
		return ErrQueueFull
	}
}

// run worker 主循环
func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case documentID, ok := <-q.jobs:
			if !ok {
				return
			}
			// 错误已由服务落库，这里只记录日志
			if err := q.service.ProcessDocument(ctx, documentID); err != nil {
				q.logger.Warn("document job failed", "document_id", documentID, "error", err)
			}
		}
	}
}
