package chat

import "errors"

var (
	// ErrConversationNotFound 会话不存在
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConversationEnded 会话已结束，不再接受用户消息
	ErrConversationEnded = errors.New("conversation ended")
)
