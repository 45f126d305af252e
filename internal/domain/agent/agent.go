package agent

import (
	"context"
	"errors"
	"time"
)

// ErrAgentNotAvailable 智能体不存在、未发布或已停用
var ErrAgentNotAvailable = errors.New("agent not available")

// Agent 智能体
// 账号/租户归属由外部账号子系统负责，这里只保留对话编排需要的字段
type Agent struct {
	ID           int64
	Name         string
	Description  string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	IsActive    bool
	IsPublished bool

	// 聚合指标
	TotalConversations int
	TotalMessages      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository 智能体仓储接口
type Repository interface {
	// Create 创建智能体
	Create(ctx context.Context, a *Agent) error
	// Get 按 ID 获取智能体（不校验发布状态）
	Get(ctx context.Context, id int64) (*Agent, error)
	// GetPublished 获取已发布且启用的智能体，否则返回 ErrAgentNotAvailable
	GetPublished(ctx context.Context, id int64) (*Agent, error)
	// List 列出所有智能体
	List(ctx context.Context) ([]*Agent, error)
	// SetPublished 设置发布状态
	SetPublished(ctx context.Context, id int64, published bool) error
	// IncrementCounters 累加聚合指标
	IncrementCounters(ctx context.Context, id int64, conversations, messages int) error
}
