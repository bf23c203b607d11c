package insight

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sales-assistant/pkg/anthropic"
	"github.com/sells-group/sales-assistant/pkg/openai"
)

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, req Request) (Completion, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(Completion), args.Error(1)
}

func (m *mockLLM) Provider() string { return "mock" }

func (m *mockLLM) Model() string { return "mock-model" }

// funcLLM adapts a function for behaviours a mock cannot express, such as
// blocking until the deadline.
type funcLLM func(ctx context.Context, req Request) (Completion, error)

func (f funcLLM) Complete(ctx context.Context, req Request) (Completion, error) { return f(ctx, req) }

func (f funcLLM) Provider() string { return "func" }

func (f funcLLM) Model() string { return "func-model" }

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- OpenAI Mock ---

type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) CreateChat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatResponse), args.Error(1)
}
