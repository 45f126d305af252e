package chat

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	domainChat "github.com/aimaestro/backend/internal/domain/chat"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// SessionStore 会话状态存取
// 每个回合的状态都从库里重读，内存中不保留跨回合状态
type SessionStore struct {
	convRepo domainChat.ConversationRepository
	msgRepo  domainChat.MessageRepository
	logger   *slog.Logger
}

// NewSessionStore 创建会话存取服务
func NewSessionStore(
	convRepo domainChat.ConversationRepository,
	msgRepo domainChat.MessageRepository,
) *SessionStore {
	return &SessionStore{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		logger:   log.NewModuleLogger("chat", "session"),
	}
}

// ResolveOrCreate 解析或创建会话
// 给定 token 且存在（无论是否已结束）时原样返回；否则铸造新 token 创建会话。
// 返回值第二个布尔量表示是否新建
func (s *SessionStore) ResolveOrCreate(
	ctx context.Context,
	sessionToken string,
	agentID int64,
	channel, externalUserID string,
	metadata map[string]string,
) (*domainChat.Conversation, bool, error) {
	if sessionToken != "" {
		conv, err := s.convRepo.GetByToken(ctx, sessionToken)
		if err == nil {
			return conv, false, nil
		}
		if err != domainChat.ErrConversationNotFound {
			return nil, false, err
		}
		// 调用方给了 token 但没有对应会话，沿用该 token 创建，
		// 唯一约束兜底并发下的重复创建
	}

	if sessionToken == "" {
		sessionToken = uuid.New().String()
	}

	conv := &domainChat.Conversation{
		AgentID:        agentID,
		SessionToken:   sessionToken,
		Channel:        channel,
		ExternalUserID: externalUserID,
		Metadata:       metadata,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, false, err
	}

	s.logger.Debug("conversation created",
		"conversation_id", conv.ID, "agent_id", agentID, "channel", channel)
	return conv, true, nil
}

// AppendMessage 向会话追加一条消息
func (s *SessionStore) AppendMessage(
	ctx context.Context,
	conversationID int64,
	role, content string,
	metrics *domainChat.MessageMetrics,
) (*domainChat.Message, error) {
	msg := &domainChat.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if metrics != nil {
		msg.Model = metrics.Model
		msg.TokensUsed = metrics.TokensUsed
		msg.Cost = metrics.Cost
		msg.LatencyMS = metrics.LatencyMS
	}

	if err := s.msgRepo.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History 按创建顺序返回会话的全部消息
func (s *SessionStore) History(ctx context.Context, conversationID int64) ([]*domainChat.Message, error) {
	return s.msgRepo.History(ctx, conversationID)
}

// End 结束会话并记录可选评分/反馈
// 只有第一次调用生效；对已结束会话重复调用是静默空操作
func (s *SessionStore) End(ctx context.Context, sessionToken string, rating *int, feedback string) error {
	conv, err := s.convRepo.GetByToken(ctx, sessionToken)
	if err != nil {
		return err
	}
	return s.convRepo.End(ctx, conv.ID, rating, feedback)
}

// GetByToken 按 session token 获取会话
func (s *SessionStore) GetByToken(ctx context.Context, sessionToken string) (*domainChat.Conversation, error) {
	return s.convRepo.GetByToken(ctx, sessionToken)
}
