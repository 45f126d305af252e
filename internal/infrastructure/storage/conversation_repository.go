package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domainChat "github.com/aimaestro/backend/internal/domain/chat"
)

// 确保 ConversationRepositoryImpl 实现了 chat.ConversationRepository 接口
var _ domainChat.ConversationRepository = (*ConversationRepositoryImpl)(nil)

// ConversationRepositoryImpl 会话仓库实现
type ConversationRepositoryImpl struct {
	db *sql.DB
}

// NewConversationRepository 创建会话仓库实例
func NewConversationRepository(db *sql.DB) domainChat.ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

// Create 创建会话
// session_token 上的唯一索引保证并发创建同一 token 时只有一个成功
func (r *ConversationRepositoryImpl) Create(ctx context.Context, conv *domainChat.Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.IsActive = true

	metadataJSON, _ := json.Marshal(conv.Metadata)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (
			agent_id, session_token, channel, external_user_id, metadata,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		conv.AgentID, conv.SessionToken, conv.Channel, conv.ExternalUserID,
		string(metadataJSON), now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	conv.ID, err = res.LastInsertId()
	return err
}

// GetByToken 按 session token 获取会话
func (r *ConversationRepositoryImpl) GetByToken(ctx context.Context, token string) (*domainChat.Conversation, error) {
	row := r.db.QueryRowContext(ctx, selectConversation+` WHERE session_token = ?`, token)
	return scanConversation(row)
}

// Get 按 ID 获取会话
func (r *ConversationRepositoryImpl) Get(ctx context.Context, id int64) (*domainChat.Conversation, error) {
	row := r.db.QueryRowContext(ctx, selectConversation+` WHERE id = ?`, id)
	return scanConversation(row)
}

// End 结束会话
// WHERE ended_at IS NULL 保证只有第一次调用写入结束时间，重复调用是静默空操作
func (r *ConversationRepositoryImpl) End(ctx context.Context, id int64, rating *int, feedback string) error {
	// 先确认会话存在
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET is_active = 0, ended_at = ?, rating = ?, feedback = ?, updated_at = ?
		WHERE id = ? AND ended_at IS NULL`,
		now.Unix(), rating, feedback, now.Unix(), id)
	return err
}

const selectConversation = `
	SELECT id, agent_id, session_token, channel, external_user_id, metadata,
	       is_active, ended_at, rating, feedback, created_at, updated_at
	FROM conversations`

// scanConversation 扫描一行会话数据
func scanConversation(row rowScanner) (*domainChat.Conversation, error) {
	var conv domainChat.Conversation
	var metadataJSON sql.NullString
	var isActive int
	var endedAt, rating sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&conv.ID, &conv.AgentID, &conv.SessionToken, &conv.Channel,
		&conv.ExternalUserID, &metadataJSON,
		&isActive, &endedAt, &rating, &conv.Feedback,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domainChat.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	conv.IsActive = isActive == 1
	if endedAt.Valid {
		t := time.Unix(endedAt.Int64, 0)
		conv.EndedAt = &t
	}
	if rating.Valid {
		v := int(rating.Int64)
		conv.Rating = &v
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &conv.Metadata)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)

	return &conv, nil
}
