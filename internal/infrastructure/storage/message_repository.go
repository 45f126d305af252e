package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domainChat "github.com/aimaestro/backend/internal/domain/chat"
)

// 确保 MessageRepositoryImpl 实现了 chat.MessageRepository 接口
var _ domainChat.MessageRepository = (*MessageRepositoryImpl)(nil)

// MessageRepositoryImpl 消息仓库实现
type MessageRepositoryImpl struct {
	db *sql.DB
}

// NewMessageRepository 创建消息仓库实例
func NewMessageRepository(db *sql.DB) domainChat.MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

// Append 追加一条消息
func (r *MessageRepositoryImpl) Append(ctx context.Context, msg *domainChat.Message) error {
	// 会话必须存在
	var convID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE id = ?`, msg.ConversationID).Scan(&convID)
	if err == sql.ErrNoRows {
		return domainChat.ErrConversationNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now()
	msg.CreatedAt = now
	metadataJSON, _ := json.Marshal(msg.Metadata)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			conversation_id, role, content, model, tokens_used, cost,
			latency_ms, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.Role, msg.Content, msg.Model,
		msg.TokensUsed, msg.Cost, msg.LatencyMS, string(metadataJSON),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		now.Unix(), msg.ConversationID)
	return err
}

// History 按创建顺序升序返回会话的全部消息
// 同一秒写入的消息靠自增 ID 保序
func (r *MessageRepositoryImpl) History(ctx context.Context, conversationID int64) ([]*domainChat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, model, tokens_used, cost,
		       latency_ms, metadata, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domainChat.Message
	for rows.Next() {
		var msg domainChat.Message
		var metadataJSON sql.NullString
		var createdAt int64

		err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.Model, &msg.TokensUsed, &msg.Cost, &msg.LatencyMS,
			&metadataJSON, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &msg.Metadata)
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
