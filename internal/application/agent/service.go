package agent

import (
	"context"
	"fmt"
	"log/slog"

	domainAgent "github.com/aimaestro/backend/internal/domain/agent"
	"github.com/aimaestro/backend/internal/infrastructure/llm"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// Service 智能体管理服务
type Service struct {
	repo   domainAgent.Repository
	logger *slog.Logger
}

// NewService 创建智能体服务
func NewService(repo domainAgent.Repository) *Service {
	return &Service{
		repo:   repo,
		logger: log.NewModuleLogger("agent", "service"),
	}
}

// CreateInput 创建智能体的输入
type CreateInput struct {
	Name         string
	Description  string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Create 创建智能体
// 模型名在配置时就完成归类校验，而不是等到第一次生成才失败
func (s *Service) Create(ctx context.Context, input *CreateInput) (*domainAgent.Agent, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if _, err := llm.ClassifyModel(input.Model); err != nil {
		return nil, err
	}
	if input.Temperature < 0 || input.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be in [0,2], got %v", input.Temperature)
	}
	if input.MaxTokens < 1 {
		return nil, fmt.Errorf("max_tokens must be at least 1, got %d", input.MaxTokens)
	}

	ag := &domainAgent.Agent{
		Name:         input.Name,
		Description:  input.Description,
		Model:        input.Model,
		Temperature:  input.Temperature,
		MaxTokens:    input.MaxTokens,
		SystemPrompt: input.SystemPrompt,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, ag); err != nil {
		return nil, err
	}

	s.logger.Info("agent created", "agent_id", ag.ID, "name", ag.Name, "model", ag.Model)
	return ag, nil
}

// Get 按 ID 获取智能体
func (s *Service) Get(ctx context.Context, id int64) (*domainAgent.Agent, error) {
	return s.repo.Get(ctx, id)
}

// List 列出所有智能体
func (s *Service) List(ctx context.Context) ([]*domainAgent.Agent, error) {
	return s.repo.List(ctx)
}

// SetPublished 设置发布状态
func (s *Service) SetPublished(ctx context.Context, id int64, published bool) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.SetPublished(ctx, id, published)
}
