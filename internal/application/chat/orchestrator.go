package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	domainAgent "github.com/aimaestro/backend/internal/domain/agent"
	domainChat "github.com/aimaestro/backend/internal/domain/chat"
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/llm"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// Generator 生成能力协作方
type Generator interface {
	Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResult, error)
}

// TurnRequest 一个用户回合的输入
type TurnRequest struct {
	AgentID        int64
	Message        string
	SessionToken   string
	Channel        string
	ExternalUserID string
	Metadata       map[string]string
}

// TurnResult 一个回合的输出
type TurnResult struct {
	ConversationID int64
	SessionToken   string
	Reply          string
	AgentName      string
	Model          string
	LatencyMS      int64
	TokensUsed     int
	Cost           float64
}

// Orchestrator 回合处理状态机
// 同一会话的回合串行执行，不同会话完全并行
type Orchestrator struct {
	agentRepo domainAgent.Repository
	sessions  *SessionStore
	gateway   Generator
	kbRepo    domainKnowledge.KnowledgeBaseRepository
	index     domainKnowledge.RetrievalIndex
	topK      int
	logger    *slog.Logger

	locks keyedMutex
}

// NewOrchestrator 创建回合编排器
func NewOrchestrator(
	cfg *config.Config,
	agentRepo domainAgent.Repository,
	sessions *SessionStore,
	gateway Generator,
	kbRepo domainKnowledge.KnowledgeBaseRepository,
	index domainKnowledge.RetrievalIndex,
) *Orchestrator {
	topK := cfg.Retrieval.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{
		agentRepo: agentRepo,
		sessions:  sessions,
		gateway:   gateway,
		kbRepo:    kbRepo,
		index:     index,
		topK:      topK,
		logger:    log.NewModuleLogger("chat", "orchestrator"),
	}
}

// ProcessTurn 处理一个用户回合
// 生成失败时中止回合：已追加的用户消息保留，不写入助手消息
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	ag, err := o.agentRepo.GetPublished(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	conv, created, err := o.sessions.ResolveOrCreate(
		ctx, req.SessionToken, ag.ID, req.Channel, req.ExternalUserID, req.Metadata)
	if err != nil {
		return nil, err
	}

	// 同一会话同时最多一个在途生成
	unlock := o.locks.lock(conv.ID)
	defer unlock()

	if conv.Ended() {
		return nil, fmt.Errorf("%w: %s", domainChat.ErrConversationEnded, conv.SessionToken)
	}

	if _, err := o.sessions.AppendMessage(ctx, conv.ID, domainChat.RoleUser, req.Message, nil); err != nil {
		return nil, err
	}

	history, err := o.sessions.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	systemPrompt := o.buildSystemPrompt(ctx, ag, req.Message)

	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	result, err := o.gateway.Generate(ctx, &llm.GenerateRequest{
		Model:        ag.Model,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Temperature:  ag.Temperature,
		MaxTokens:    ag.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	tokensUsed := result.PromptTokens + result.CompletionTokens
	_, err = o.sessions.AppendMessage(ctx, conv.ID, domainChat.RoleAssistant, result.Content,
		&domainChat.MessageMetrics{
			Model:      result.Model,
			TokensUsed: tokensUsed,
			Cost:       result.Cost,
			LatencyMS:  result.LatencyMS,
		})
	if err != nil {
		return nil, err
	}

	conversationsDelta := 0
	if created {
		conversationsDelta = 1
	}
	if err := o.agentRepo.IncrementCounters(ctx, ag.ID, conversationsDelta, 2); err != nil {
		o.logger.Warn("failed to update agent counters", "agent_id", ag.ID, "error", err)
	}

	return &TurnResult{
		ConversationID: conv.ID,
		SessionToken:   conv.SessionToken,
		Reply:          result.Content,
		AgentName:      ag.Name,
		Model:          result.Model,
		LatencyMS:      result.LatencyMS,
		TokensUsed:     tokensUsed,
		Cost:           result.Cost,
	}, nil
}

// buildSystemPrompt 组装系统提示词
// 检索到的片段以参考上下文的形式追加在智能体自身提示词之后，
// 永远不会替换掉智能体的提示词；检索失败降级为无上下文生成
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, ag *domainAgent.Agent, query string) string {
	kb, err := o.kbRepo.GetActiveByAgent(ctx, ag.ID)
	if err != nil {
		o.logger.Warn("failed to resolve knowledge base", "agent_id", ag.ID, "error", err)
		return ag.SystemPrompt
	}
	if kb == nil {
		return ag.SystemPrompt
	}

	results, err := o.index.Search(ctx, kb.ID, query, o.topK)
	if err != nil {
		o.logger.Warn("retrieval failed, generating without context",
			"kb_id", kb.ID, "error", err)
		return ag.SystemPrompt
	}
	if len(results) == 0 {
		return ag.SystemPrompt
	}

	var sb strings.Builder
	sb.WriteString(ag.SystemPrompt)
	sb.WriteString("\n\nUse the following context to answer when relevant:\n")
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, r.Content))
	}
	return sb.String()
}

// keyedMutex 按会话 ID 的互斥锁，空闲锁自动回收
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock 获取指定键的锁，返回释放函数
func (k *keyedMutex) lock(key int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
