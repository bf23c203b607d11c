// Package store persists insight runs and their phase timings.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/model"
)

// ErrNotFound is returned when a run or phase does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs. Product matches the
// product name case-insensitively.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	TargetURL string          `json:"target_url,omitempty"`
	Product   string          `json:"product,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 100

// Store defines the persistence interface for insight runs. Uploaded
// document bytes are never stored.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input model.SalesInput) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// DeleteRunsBefore removes runs created before cutoff together with
	// their phases and returns how many runs were removed.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "none":
		return NewNoop(), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// resultStatus is the run status recorded with a final result.
func resultStatus(result *model.RunResult) model.RunStatus {
	if result != nil && result.Report.Degraded {
		return model.RunStatusDegraded
	}
	return model.RunStatusComplete
}

// placeholder renders the nth (1-based) bind parameter of a SQL dialect.
type placeholder func(n int) string

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

const runColumns = `id, input, status, result, created_at, updated_at`

// listRunsQuery builds the ListRuns statement shared by the SQL stores.
func listRunsQuery(filter RunFilter, ph placeholder) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+bind(string(filter.Status)))
	}
	if filter.TargetURL != "" {
		where = append(where, "target_url = "+bind(filter.TargetURL))
	}
	if p := strings.TrimSpace(filter.Product); p != "" {
		where = append(where, "lower(product_name) = "+bind(strings.ToLower(p)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + runColumns + " FROM runs")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	b.WriteString(" LIMIT " + bind(limit))
	if filter.Offset > 0 {
		b.WriteString(" OFFSET " + bind(filter.Offset))
	}
	return b.String(), args
}

// encodeInput serializes a run's input. Document bytes carry json:"-".
func encodeInput(input model.SalesInput) ([]byte, error) {
	data, err := json.Marshal(input)
	return data, eris.Wrap(err, "store: marshal input")
}

// decodeRun fills the JSON columns of r. result may be nil.
func decodeRun(r *model.Run, input, result []byte) error {
	if err := json.Unmarshal(input, &r.Input); err != nil {
		return eris.Wrapf(err, "store: unmarshal input of run %s", r.ID)
	}
	if result == nil {
		return nil
	}
	r.Result = &model.RunResult{}
	return eris.Wrapf(json.Unmarshal(result, r.Result), "store: unmarshal result of run %s", r.ID)
}

func decodePhaseResult(p *model.RunPhase, result []byte) error {
	if result == nil {
		return nil
	}
	p.Result = &model.PhaseResult{}
	return eris.Wrapf(json.Unmarshal(result, p.Result), "store: unmarshal result of phase %s", p.ID)
}

func newRun(id string, input model.SalesInput, now time.Time) *model.Run {
	input.Document = nil
	return &model.Run{ID: id, Input: input, Status: model.RunStatusQueued, CreatedAt: now, UpdatedAt: now}
}

func newPhase(id, runID, name string, now time.Time) *model.RunPhase {
	return &model.RunPhase{ID: id, RunID: runID, Name: name, Status: model.PhaseStatusRunning, StartedAt: now}
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	return data, eris.Wrap(err, "store: marshal")
}
