package chat

import "context"

// ConversationRepository 会话仓储接口
type ConversationRepository interface {
	// Create 创建会话，session token 冲突时返回错误
	Create(ctx context.Context, conv *Conversation) error
	// GetByToken 按 session token 获取会话（包含已结束的），不存在返回 ErrConversationNotFound
	GetByToken(ctx context.Context, token string) (*Conversation, error)
	// Get 按 ID 获取会话，不存在返回 ErrConversationNotFound
	Get(ctx context.Context, id int64) (*Conversation, error)
	// End 结束会话，只有第一次调用生效；重复调用是静默空操作
	End(ctx context.Context, id int64, rating *int, feedback string) error
}

// MessageRepository 消息仓储接口
type MessageRepository interface {
	// Append 追加一条消息，会话不存在返回 ErrConversationNotFound
	Append(ctx context.Context, msg *Message) error
	// History 按创建顺序升序返回会话的全部消息
	History(ctx context.Context, conversationID int64) ([]*Message, error)
}
