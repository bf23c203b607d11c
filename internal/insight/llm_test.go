package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/resilience"
	"github.com/sells-group/sales-assistant/pkg/anthropic"
	"github.com/sells-group/sales-assistant/pkg/openai"
)

func TestAnthropicLLM_Complete(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 2000 &&
			req.System == "sys" && req.Prefill == "{" &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user" && req.Messages[0].Content == "user" &&
			req.Temperature != nil && *req.Temperature == 0.3
	})).Return(&anthropic.MessageResponse{
		Model:   "claude-sonnet-4-5-20250929",
		Content: []anthropic.ContentBlock{{Type: "text", Text: `"opportunities":"x"}`}},
		Prefill: "{",
		Usage:   anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 0},
	}, nil).Once()

	llm := NewAnthropicLLM(client, "claude-sonnet-4-5-20250929")
	comp, err := llm.Complete(context.Background(), Request{System: "sys", User: "user", MaxTokens: 2000, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, `{"opportunities":"x"}`, comp.Text)
	assert.Equal(t, 1_000_000, comp.Usage.InputTokens)
	assert.InDelta(t, 3.00, comp.Usage.Cost, 0.001)
	assert.Equal(t, "anthropic", llm.Provider())
	assert.Equal(t, "claude-sonnet-4-5-20250929", llm.Model())
	client.AssertExpectations(t)
}

func TestAnthropicLLM_Error(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("bad request")).Once()

	_, err := NewAnthropicLLM(client, "m").Complete(context.Background(), Request{User: "u"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestOpenAILLM_Complete(t *testing.T) {
	client := &mockOpenAIClient{}
	client.On("CreateChat", mock.Anything, mock.MatchedBy(func(req openai.ChatRequest) bool {
		return req.Model == "gpt-4o" && req.System == "sys" && req.User == "user" && req.JSONObject &&
			req.Temperature != nil && *req.Temperature == 0.3 && req.MaxTokens == 2000
	})).Return(&openai.ChatResponse{
		Model:   "gpt-4o-2024-08-06",
		Content: `{"company_strategy":"y"}`,
		Usage:   openai.Usage{PromptTokens: 800, CompletionTokens: 200},
	}, nil).Once()

	llm := NewOpenAILLM(client, "gpt-4o")
	comp, err := llm.Complete(context.Background(), Request{System: "sys", User: "user", MaxTokens: 2000, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, `{"company_strategy":"y"}`, comp.Text)
	assert.Equal(t, "gpt-4o-2024-08-06", comp.Model)
	assert.Equal(t, 800, comp.Usage.InputTokens)
	assert.Equal(t, 200, comp.Usage.OutputTokens)
	assert.Equal(t, "openai", llm.Provider())
	client.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	base := errors.New("upstream")
	assert.True(t, resilience.IsTransient(classify(base, 429)))
	assert.True(t, resilience.IsTransient(classify(base, 503)))
	assert.False(t, resilience.IsTransient(classify(base, 400)))
	assert.Equal(t, base, classify(base, 0))
}

func TestNewLLM(t *testing.T) {
	cfg := &config.Config{}
	cfg.Anthropic.Model = "claude-sonnet-4-5-20250929"
	cfg.OpenAI.Model = "gpt-4o"

	for provider, want := range map[string]string{"": "anthropic", "anthropic": "anthropic", "openai": "openai"} {
		cfg.Insight.Provider = provider
		llm, err := NewLLM(cfg)
		require.NoError(t, err, provider)
		assert.Equal(t, want, llm.Provider())
	}

	cfg.Insight.Provider = "cohere"
	_, err := NewLLM(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "cohere"`)
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Insight = config.InsightConfig{Provider: "openai", MaxTokens: 1500, Temperature: 0.2, TimeoutSecs: 30, MaxAttempts: 4, MaxPromptChars: 9000}

	g, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1500, g.maxTokens)
	assert.InDelta(t, 0.2, g.temperature, 1e-9)
	assert.Equal(t, 9000, g.maxPromptChars)
	assert.Equal(t, 4, g.retry.MaxAttempts)
	assert.Equal(t, "30s", g.timeout.String())
}
