package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domainAgent "github.com/aimaestro/backend/internal/domain/agent"
)

// 确保 AgentRepositoryImpl 实现了 agent.Repository 接口
var _ domainAgent.Repository = (*AgentRepositoryImpl)(nil)

// AgentRepositoryImpl 智能体仓库实现
type AgentRepositoryImpl struct {
	db *sql.DB
}

// NewAgentRepository 创建智能体仓库实例
func NewAgentRepository(db *sql.DB) domainAgent.Repository {
	return &AgentRepositoryImpl{db: db}
}

// Create 创建智能体
func (r *AgentRepositoryImpl) Create(ctx context.Context, a *domainAgent.Agent) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (
			name, description, model, temperature, max_tokens, system_prompt,
			is_active, is_published, total_conversations, total_messages,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		a.Name, a.Description, a.Model, a.Temperature, a.MaxTokens, a.SystemPrompt,
		boolToInt(a.IsActive), boolToInt(a.IsPublished),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}

	a.ID, err = res.LastInsertId()
	return err
}

// Get 按 ID 获取智能体
func (r *AgentRepositoryImpl) Get(ctx context.Context, id int64) (*domainAgent.Agent, error) {
	row := r.db.QueryRowContext(ctx, selectAgent+` WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, domainAgent.ErrAgentNotAvailable
	}
	return a, err
}

// GetPublished 获取已发布且启用的智能体
func (r *AgentRepositoryImpl) GetPublished(ctx context.Context, id int64) (*domainAgent.Agent, error) {
	row := r.db.QueryRowContext(ctx,
		selectAgent+` WHERE id = ? AND is_published = 1 AND is_active = 1`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, domainAgent.ErrAgentNotAvailable
	}
	return a, err
}

// List 列出所有智能体
func (r *AgentRepositoryImpl) List(ctx context.Context) ([]*domainAgent.Agent, error) {
	rows, err := r.db.QueryContext(ctx, selectAgent+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*domainAgent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SetPublished 设置发布状态
func (r *AgentRepositoryImpl) SetPublished(ctx context.Context, id int64, published bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE agents SET is_published = ?, updated_at = ? WHERE id = ?`,
		boolToInt(published), time.Now().Unix(), id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return domainAgent.ErrAgentNotAvailable
	}
	return nil
}

// IncrementCounters 累加聚合指标
func (r *AgentRepositoryImpl) IncrementCounters(ctx context.Context, id int64, conversations, messages int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE agents
		SET total_conversations = total_conversations + ?,
		    total_messages = total_messages + ?,
		    updated_at = ?
		WHERE id = ?`,
		conversations, messages, time.Now().Unix(), id)
	return err
}

const selectAgent = `
	SELECT id, name, description, model, temperature, max_tokens, system_prompt,
	       is_active, is_published, total_conversations, total_messages,
	       created_at, updated_at
	FROM agents`

// rowScanner sql.Row 和 sql.Rows 的公共扫描接口
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAgent 扫描一行智能体数据
func scanAgent(row rowScanner) (*domainAgent.Agent, error) {
	var a domainAgent.Agent
	var isActive, isPublished int
	var createdAt, updatedAt int64

	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.Model, &a.Temperature, &a.MaxTokens,
		&a.SystemPrompt, &isActive, &isPublished,
		&a.TotalConversations, &a.TotalMessages,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.IsActive = isActive == 1
	a.IsPublished = isPublished == 1
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

// boolToInt sqlite 布尔存储
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
