package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aimaestro/backend/internal/infrastructure/config"
)

// geminiRequest Gemini generateContent 请求
// 角色只有 user/model 两种，系统提示词走 systemInstruction
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// geminiResponse Gemini generateContent 响应
type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// generateGemini 调用 Gemini generateContent 接口
func (g *Gateway) generateGemini(ctx context.Context, cred config.ProviderCredential, req *GenerateRequest) (string, usage, error) {
	contents := make([]geminiContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		switch m.Role {
		case RoleAssistant:
			role = "model"
		case RoleSystem:
			continue
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	payload := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(cred.BaseURL, "/"), req.Model, cred.APIKey)

	body, err := g.doJSON(ctx, url, nil, payload)
	if err != nil {
		return "", usage{}, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", usage{}, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", usage{}, fmt.Errorf("%w: gemini returned no candidates", ErrProviderError)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	u := usage{
		promptTokens:     resp.UsageMetadata.PromptTokenCount,
		completionTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
	return text.String(), u, nil
}
