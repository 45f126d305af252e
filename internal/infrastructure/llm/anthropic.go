package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aimaestro/backend/internal/infrastructure/config"
)

const anthropicVersion = "2023-06-01"

// anthropicRequest Anthropic messages 请求
// system 走独立字段，消息列表只允许 user/assistant 角色
type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse Anthropic messages 响应
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// generateAnthropic 调用 Anthropic messages 接口
func (g *Gateway) generateAnthropic(ctx context.Context, cred config.ProviderCredential, req *GenerateRequest) (string, usage, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		// system 消息已通过独立字段传递
		if m.Role == RoleSystem {
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	payload := anthropicRequest{
		Model:       req.Model,
		System:      req.SystemPrompt,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	url := strings.TrimSuffix(cred.BaseURL, "/") + "/v1/messages"
	headers := map[string]string{
		"x-api-key":         cred.APIKey,
		"anthropic-version": anthropicVersion,
	}

	body, err := g.doJSON(ctx, url, headers, payload)
	if err != nil {
		return "", usage{}, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", usage{}, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", usage{}, fmt.Errorf("%w: anthropic returned no text content", ErrProviderError)
	}

	u := usage{
		promptTokens:     resp.Usage.InputTokens,
		completionTokens: resp.Usage.OutputTokens,
	}
	return text.String(), u, nil
}
