package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aimaestro/backend/internal/infrastructure/config"
	"github.com/aimaestro/backend/internal/infrastructure/log"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider 模型提供方族
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ClassifyModel 按模型名前缀归类提供方
// 未知前缀返回 ErrUnsupportedModel，调用方不应继续发起请求
func ClassifyModel(model string) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(model, "gemini"):
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}
}

// Message 与提供方无关的对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest 一次生成调用的输入
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// GenerateResult 生成结果
// 调用失败通过 error 返回，Content 永远不携带错误文案
type GenerateResult struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	LatencyMS        int64
}

// usage 提供方返回的 token 用量，可能为零值（部分提供方不返回）
type usage struct {
	promptTokens     int
	completionTokens int
}

// Gateway 生成模型网关，按模型名路由到对应提供方
type Gateway struct {
	cfg        *config.ProvidersConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway 创建模型网关
func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{
		cfg: &cfg.Providers,
		httpClient: &http.Client{
			Timeout: cfg.Providers.Timeout(),
		},
		logger: log.NewModuleLogger("llm", "gateway"),
	}
}

// Generate 执行一次生成调用
// 凭证缺失在发起网络请求之前返回 ErrCredentialMissing；
// 超时统一映射为 ErrProviderTimeout
func (g *Gateway) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	provider, err := ClassifyModel(req.Model)
	if err != nil {
		return nil, err
	}

	cred := g.credential(provider)
	if cred.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrCredentialMissing, provider)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout())
	defer cancel()

	start := time.Now()

	var content string
	var u usage
	switch provider {
	case ProviderOpenAI:
		content, u, err = g.generateOpenAI(ctx, cred, req)
	case ProviderAnthropic:
		content, u, err = g.generateAnthropic(ctx, cred, req)
	case ProviderGemini:
		content, u, err = g.generateGemini(ctx, cred, req)
	}

	latencyMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("generation timed out",
				"model", req.Model, "provider", provider, "latency_ms", latencyMS)
			return nil, fmt.Errorf("%w: %s", ErrProviderTimeout, req.Model)
		}
		g.logger.Error("generation failed",
			"model", req.Model, "provider", provider, "error", err)
		return nil, err
	}

	// 提供方未返回用量时按文本长度估算
	if u.promptTokens == 0 && u.completionTokens == 0 {
		u.promptTokens = estimatePromptTokens(req)
		u.completionTokens = EstimateTokens(content)
	}

	result := &GenerateResult{
		Content:          content,
		Model:            req.Model,
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		Cost:             EstimateCost(req.Model, u.promptTokens, u.completionTokens),
		LatencyMS:        latencyMS,
	}

	g.logger.Debug("generation completed",
		"model", req.Model, "provider", provider,
		"tokens", u.promptTokens+u.completionTokens, "latency_ms", latencyMS)
	return result, nil
}

// credential 取提供方凭证
func (g *Gateway) credential(p Provider) config.ProviderCredential {
	switch p {
	case ProviderOpenAI:
		return g.cfg.OpenAI
	case ProviderAnthropic:
		return g.cfg.Anthropic
	case ProviderGemini:
		return g.cfg.Gemini
	}
	return config.ProviderCredential{}
}

// estimatePromptTokens 估算整个输入上下文的 token 数
func estimatePromptTokens(req *GenerateRequest) int {
	total := EstimateTokens(req.SystemPrompt)
	for _, m := range req.Messages {
		total += EstimateTokens(m.Content)
	}
	return total
}

// doJSON 发送 JSON 请求并读取响应体，非 2xx 映射为 ErrProviderError
func (g *Gateway) doJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrProviderError, resp.StatusCode, truncateBody(respBody))
	}
	return respBody, nil
}

// truncateBody 截断过长的错误响应体，避免日志刷屏
func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
