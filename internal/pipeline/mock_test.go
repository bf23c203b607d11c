package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/sales-assistant/internal/ingest"
	"github.com/sells-group/sales-assistant/internal/insight"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, input model.SalesInput) (*model.Run, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunPhase), args.Error(1)
}

func (m *mockStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	return m.Called(ctx, phaseID, result).Error(0)
}

func (m *mockStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunPhase), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- LLM fake ---

// recordingLLM answers every prompt with a fixed response and keeps the
// last request.
type recordingLLM struct {
	mu       sync.Mutex
	response string
	err      error
	last     insight.Request
	calls    int
}

func (r *recordingLLM) Complete(_ context.Context, req insight.Request) (insight.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = req
	r.calls++
	if r.err != nil {
		return insight.Completion{}, r.err
	}
	return insight.Completion{Text: r.response, Model: "fake-model"}, nil
}

func (r *recordingLLM) Provider() string { return "fake" }
func (r *recordingLLM) Model() string    { return "fake-model" }

func (r *recordingLLM) lastRequest() insight.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// --- PDF fake ---

type fakePages []string

func (f fakePages) NumPages() int { return len(f) }

func (f fakePages) PageText(_ context.Context, n int) (string, error) {
	if f[n-1] == "CORRUPT" {
		panic("flate: corrupt input")
	}
	return f[n-1], nil
}

func (f fakePages) Close() error { return nil }

func pagesOpener(pages ...string) ingest.Opener {
	return func(context.Context, []byte) (ingest.PageSource, error) {
		return fakePages(pages), nil
	}
}
