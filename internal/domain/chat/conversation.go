package chat

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation 一次会话
// session token 一经分配不可变且全局唯一
type Conversation struct {
	ID           int64
	AgentID      int64
	SessionToken string

	Channel        string
	ExternalUserID string
	Metadata       map[string]string

	IsActive bool
	EndedAt  *time.Time
	Rating   *int // 1-5
	Feedback string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ended 会话是否已结束
func (c *Conversation) Ended() bool {
	return c.EndedAt != nil
}

// Message 会话中的一条消息，写入后不可变
// 会话内消息按 (created_at, id) 全序，这个顺序是重建模型上下文的唯一合法顺序
type Message struct {
	ID             int64
	ConversationID int64

	Role    string
	Content string

	Model      string
	TokensUsed int
	Cost       float64
	LatencyMS  int64
	Metadata   map[string]string

	CreatedAt time.Time
}

// MessageMetrics 写入助手消息时附带的生成指标
type MessageMetrics struct {
	Model      string
	TokensUsed int
	Cost       float64
	LatencyMS  int64
}
