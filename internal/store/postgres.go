package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/model"
)

// PostgresStore implements Store on a pgx connection pool. It suits the
// serve driver when several instances share run history.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig tunes the connection pool. Zero values keep the defaults.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertRun     = `INSERT INTO runs (id, product_name, target_url, input, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	pgSetRunStatus  = `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`
	pgSetRunResult  = `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`
	pgGetRun        = `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	pgInsertPhase   = `INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`
	pgCompletePhase = `UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`
	pgListPhases    = `SELECT id, run_id, name, status, result, started_at FROM run_phases WHERE run_id = $1 ORDER BY started_at, name`
	pgPruneRuns     = `DELETE FROM runs WHERE created_at < $1`
)

// statements are prepared on every new pool connection.
var statements = map[string]string{
	"insert_run":     pgInsertRun,
	"set_run_status": pgSetRunStatus,
	"set_run_result": pgSetRunResult,
	"get_run":        pgGetRun,
	"insert_phase":   pgInsertPhase,
	"complete_phase": pgCompletePhase,
	"list_phases":    pgListPhases,
}

// NewPostgres connects to connString and verifies the connection.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	cfg.MaxConns, cfg.MinConns = 10, 2
	if poolCfg != nil && poolCfg.MaxConns > 0 {
		cfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg != nil && poolCfg.MinConns > 0 {
		cfg.MinConns = poolCfg.MinConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range statements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	target_url   TEXT NOT NULL,
	input        JSONB NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_target_url ON runs(target_url);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
`

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate creates the schema. It is safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, input model.SalesInput) (*model.Run, error) {
	inputJSON, err := encodeInput(input)
	if err != nil {
		return nil, err
	}
	run := newRun(uuid.NewString(), input, time.Now().UTC())

	if _, err := s.pool.Exec(ctx, pgInsertRun,
		run.ID, input.ProductName, input.TargetURL, inputJSON, string(run.Status), run.CreatedAt, run.UpdatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.execOne(ctx, "run", runID, pgSetRunStatus, string(status), time.Now().UTC(), runID)
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	data, err := marshalJSON(result)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "run", runID, pgSetRunResult, data, string(resultStatus(result)), time.Now().UTC(), runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, pgGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args := listRunsQuery(filter, postgresPlaceholder)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

// DeleteRunsBefore relies on ON DELETE CASCADE to drop phases.
func (s *PostgresStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, pgPruneRuns, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune runs")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	phase := newPhase(uuid.NewString(), runID, name, time.Now().UTC())
	if _, err := s.pool.Exec(ctx, pgInsertPhase,
		phase.ID, runID, name, string(phase.Status), phase.StartedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase %s for run %s", name, runID)
	}
	return phase, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	data, err := marshalJSON(result)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "phase", phaseID, pgCompletePhase, string(result.Status), data, phaseID)
}

func (s *PostgresStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.pool.Query(ctx, pgListPhases, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list phases")
	}
	defer rows.Close()

	phases := []model.RunPhase{}
	for rows.Next() {
		var (
			p      model.RunPhase
			result []byte
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &result, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phase")
		}
		if err := decodePhaseResult(&p, result); err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "postgres: list phases")
}

func (s *PostgresStore) execOne(ctx context.Context, entity, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", entity, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r             model.Run
		input, result []byte
	)
	if err := row.Scan(&r.ID, &input, &r.Status, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeRun(&r, input, result); err != nil {
		return nil, err
	}
	return &r, nil
}
