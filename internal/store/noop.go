package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/model"
)

// NoopStore keeps runs in memory for the life of the process. It backs
// the "none" driver so one-shot CLI runs need no database.
type NoopStore struct {
	mu   sync.Mutex
	runs map[string]*model.Run
}

// NewNoop creates an empty in-memory store.
func NewNoop() *NoopStore {
	return &NoopStore{runs: make(map[string]*model.Run)}
}

func (s *NoopStore) Migrate(context.Context) error { return nil }
func (s *NoopStore) Close() error                  { return nil }

func (s *NoopStore) CreateRun(_ context.Context, input model.SalesInput) (*model.Run, error) {
	r := newRun(uuid.NewString(), input, time.Now().UTC())
	s.mu.Lock()
	s.runs[r.ID] = r
	s.mu.Unlock()
	cp := *r
	return &cp, nil
}

func (s *NoopStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *NoopStore) UpdateRunResult(_ context.Context, runID string, result *model.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	r.Result = result
	r.Status = resultStatus(result)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *NoopStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns no history; the in-memory store is not queryable.
func (s *NoopStore) ListRuns(context.Context, RunFilter) ([]model.Run, error) {
	return []model.Run{}, nil
}

// DeleteRunsBefore drops runs held in memory that were created before cutoff.
func (s *NoopStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.runs {
		if r.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n, nil
}

func (s *NoopStore) CreatePhase(_ context.Context, runID string, name string) (*model.RunPhase, error) {
	return newPhase(uuid.NewString(), runID, name, time.Now().UTC()), nil
}

func (s *NoopStore) CompletePhase(context.Context, string, *model.PhaseResult) error { return nil }

func (s *NoopStore) ListPhases(context.Context, string) ([]model.RunPhase, error) {
	return []model.RunPhase{}, nil
}
