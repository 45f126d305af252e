package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aimaestro/backend/internal/infrastructure/config"
)

// openaiRequest OpenAI chat completions 请求
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse OpenAI chat completions 响应
type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// generateOpenAI 调用 OpenAI 兼容接口
// 系统提示词作为首条 system 消息内联在消息列表中
func (g *Gateway) generateOpenAI(ctx context.Context, cred config.ProviderCredential, req *GenerateRequest) (string, usage, error) {
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	payload := openaiRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	url := strings.TrimSuffix(cred.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + cred.APIKey,
	}

	body, err := g.doJSON(ctx, url, headers, payload)
	if err != nil {
		return "", usage{}, err
	}

	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", usage{}, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", usage{}, fmt.Errorf("%w: openai returned no choices", ErrProviderError)
	}

	u := usage{
		promptTokens:     resp.Usage.PromptTokens,
		completionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, u, nil
}
