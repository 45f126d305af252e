package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaestro/backend/internal/infrastructure/config"
)

func newTestGateway(openaiURL, anthropicURL, geminiURL string) *Gateway {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			OpenAI:         config.ProviderCredential{APIKey: "test-key", BaseURL: openaiURL},
			Anthropic:      config.ProviderCredential{APIKey: "test-key", BaseURL: anthropicURL},
			Gemini:         config.ProviderCredential{APIKey: "test-key", BaseURL: geminiURL},
			TimeoutSeconds: 5,
		},
	}
	return NewGateway(cfg)
}

func TestClassifyModel(t *testing.T) {
	tests := []struct {
		model    string
		provider Provider
		wantErr  bool
	}{
		{"gpt-4", ProviderOpenAI, false},
		{"gpt-3.5-turbo", ProviderOpenAI, false},
		{"o1-mini", ProviderOpenAI, false},
		{"claude-3-sonnet", ProviderAnthropic, false},
		{"gemini-1.5-pro", ProviderGemini, false},
		{"foo-7b", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		provider, err := ClassifyModel(tt.model)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedModel, tt.model)
		} else {
			require.NoError(t, err, tt.model)
			assert.Equal(t, tt.provider, provider, tt.model)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(string(make([]rune, 100))))
}

func TestEstimateCost(t *testing.T) {
	// 已收录模型按自身价格计算
	cost := EstimateCost("gpt-4", 1000, 1000)
	assert.InDelta(t, 0.03+0.06, cost, 1e-9)

	// 未知模型回落到 gpt-3.5-turbo 价格
	fallback := EstimateCost("some-model", 1000, 1000)
	assert.InDelta(t, 0.0015+0.002, fallback, 1e-9)
}

func TestGenerateUnsupportedModel(t *testing.T) {
	gw := newTestGateway("", "", "")

	_, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:    "foo-7b",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestGenerateCredentialMissing(t *testing.T) {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{TimeoutSeconds: 5},
	}
	gw := NewGateway(cfg)

	_, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestGenerateOpenAI(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := openaiResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message openaiMessage `json:"message"`
		}{Message: openaiMessage{Role: RoleAssistant, Content: "hi there"}})
		resp.Usage.PromptTokens = 12
		resp.Usage.CompletionTokens = 3
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "", "")
	result, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:        "gpt-4",
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: RoleUser, Content: "hello"}},
		Temperature:  0.7,
		MaxTokens:    128,
	})
	require.NoError(t, err)

	assert.Equal(t, "hi there", result.Content)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 3, result.CompletionTokens)
	assert.Greater(t, result.Cost, 0.0)

	// 系统提示词内联为首条 system 消息
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "be brief", captured.Messages[0].Content)
	assert.Equal(t, RoleUser, captured.Messages[1].Role)
}

func TestGenerateAnthropic(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := anthropicResponse{}
		resp.Content = append(resp.Content, struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "text", Text: "bonjour"})
		resp.Usage.InputTokens = 8
		resp.Usage.OutputTokens = 2
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	gw := newTestGateway("", server.URL, "")
	result, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:        "claude-3-sonnet",
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: RoleSystem, Content: "stale system entry"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", result.Content)

	// system 走独立字段，消息列表剔除 system 角色
	assert.Equal(t, "be brief", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, RoleUser, captured.Messages[0].Role)
	assert.Equal(t, 1024, captured.MaxTokens)
}

func TestGenerateGemini(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-1.5-pro:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := geminiResponse{}
		resp.Candidates = append(resp.Candidates, struct {
			Content geminiContent `json:"content"`
		}{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: "ola"}}}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	gw := newTestGateway("", "", server.URL)
	result, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:        "gemini-1.5-pro",
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "hello again"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ola", result.Content)

	// assistant 映射为 model 角色，系统提示词走 systemInstruction
	require.NotNil(t, captured.SystemInstruction)
	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)

	// Gemini 不返回用量时按文本长度估算
	assert.GreaterOrEqual(t, result.PromptTokens, 0)
}

func TestGenerateProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "", "")
	_, err := gw.Generate(context.Background(), &GenerateRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	assert.ErrorIs(t, err, ErrProviderError)
}

func TestGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Generate(ctx, &GenerateRequest{
		Model:    "gpt-4",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	assert.ErrorIs(t, err, ErrProviderTimeout)
}
