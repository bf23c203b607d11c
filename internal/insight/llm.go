package insight

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/resilience"
	"github.com/sells-group/sales-assistant/pkg/anthropic"
	"github.com/sells-group/sales-assistant/pkg/openai"
)

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64
}

// Completion is the text a model returned for a Request.
type Completion struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// LLM produces a completion for a prompt. Implementations mark retryable
// failures with resilience.TransientError.
type LLM interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Provider() string
	Model() string
}

// NewLLM builds the model client selected by insight.provider.
func NewLLM(cfg *config.Config) (LLM, error) {
	switch cfg.Insight.Provider {
	case "anthropic", "":
		return NewAnthropicLLM(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model), nil
	case "openai":
		client := openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		return NewOpenAILLM(client, cfg.OpenAI.Model), nil
	default:
		return nil, eris.Errorf("insight: unknown provider %q", cfg.Insight.Provider)
	}
}

// AnthropicLLM completes prompts with the Anthropic Messages API.
type AnthropicLLM struct {
	client anthropic.Client
	model  string
}

// NewAnthropicLLM wraps an Anthropic client.
func NewAnthropicLLM(client anthropic.Client, model string) *AnthropicLLM {
	return &AnthropicLLM{client: client, model: model}
}

// Provider implements LLM.
func (a *AnthropicLLM) Provider() string { return "anthropic" }

// Model implements LLM.
func (a *AnthropicLLM) Model() string { return a.model }

// Complete implements LLM.
func (a *AnthropicLLM) Complete(ctx context.Context, req Request) (Completion, error) {
	temp := req.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Prefill:     "{",
		Temperature: &temp,
	})
	if err != nil {
		cerr := classify(err, anthropic.StatusCode(err))
		if te, ok := cerr.(*resilience.TransientError); ok {
			te.RetryAfter = anthropic.RetryAfter(err)
		}
		return Completion{}, cerr
	}
	if resp.Truncated() {
		zap.L().Warn("insight: model output hit max_tokens", zap.String("model", a.model))
	}

	resp.Usage.LogCost(a.model, "insight")
	return Completion{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			Cost:         resp.Usage.EstimateCost(a.model),
		},
	}, nil
}

// OpenAILLM completes prompts with the OpenAI chat completions API in JSON
// object mode.
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM wraps an OpenAI client.
func NewOpenAILLM(client openai.Client, model string) *OpenAILLM {
	return &OpenAILLM{client: client, model: model}
}

// Provider implements LLM.
func (o *OpenAILLM) Provider() string { return "openai" }

// Model implements LLM.
func (o *OpenAILLM) Model() string { return o.model }

// Complete implements LLM.
func (o *OpenAILLM) Complete(ctx context.Context, req Request) (Completion, error) {
	temp := req.Temperature
	resp, err := o.client.CreateChat(ctx, openai.ChatRequest{
		Model:       o.model,
		System:      req.System,
		User:        req.User,
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		return Completion{}, classify(err, openai.StatusCode(err))
	}

	zap.L().Info("cost attribution",
		zap.String("model", o.model),
		zap.String("phase", "insight"),
		zap.Int64("input_tokens", resp.Usage.PromptTokens),
		zap.Int64("output_tokens", resp.Usage.CompletionTokens),
	)
	return Completion{
		Text:  resp.Content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func classify(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
