package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sales-assistant/internal/model"
)

// SQLiteStore implements Store on a local database file.
type SQLiteStore struct {
	db *sql.DB
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// NewSQLite opens the database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	product_name TEXT NOT NULL,
	target_url   TEXT NOT NULL,
	input        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	result       TEXT,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_target_url ON runs(target_url);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     TEXT,
	started_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
`

// Migrate creates the schema. It is safe to run repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input model.SalesInput) (*model.Run, error) {
	inputJSON, err := encodeInput(input)
	if err != nil {
		return nil, err
	}
	run := newRun(uuid.NewString(), input, time.Now().UTC())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, product_name, target_url, input, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, input.ProductName, input.TargetURL, string(inputJSON), string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.execOne(ctx, "run", runID,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	data, err := marshalJSON(result)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "run", runID,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(data), string(resultStatus(result)), time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args := listRunsQuery(filter, sqlitePlaceholder)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	runs := []model.Run{}
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin prune")
	}
	defer tx.Rollback() //nolint:errcheck

	cutoff = cutoff.UTC()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_phases WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: prune phases")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune runs")
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit prune")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	phase := newPhase(uuid.NewString(), runID, name, time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		phase.ID, runID, name, string(phase.Status), phase.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase %s for run %s", name, runID)
	}
	return phase, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	data, err := marshalJSON(result)
	if err != nil {
		return err
	}
	return s.execOne(ctx, "phase", phaseID,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(data), phaseID,
	)
}

func (s *SQLiteStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, result, started_at FROM run_phases WHERE run_id = ? ORDER BY started_at, name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list phases")
	}
	defer rows.Close() //nolint:errcheck

	phases := []model.RunPhase{}
	for rows.Next() {
		var (
			p      model.RunPhase
			result sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &result, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if err := decodePhaseResult(&p, nullBytes(result)); err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: list phases")
}

// execOne runs an UPDATE that must touch exactly one entity.
func (s *SQLiteStore) execOne(ctx context.Context, entity, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %s", entity, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*model.Run, error) {
	var (
		r      model.Run
		input  string
		result sql.NullString
	)
	if err := row.Scan(&r.ID, &input, &r.Status, &result, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeRun(&r, []byte(input), nullBytes(result)); err != nil {
		return nil, err
	}
	return &r, nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
