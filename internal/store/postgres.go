package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/raumwerk/standort-cli/internal/db"
	"github.com/raumwerk/standort-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, portfolio, status, companies, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_run":      `UPDATE runs SET status = $1, succeeded = $2, failed = $3, report = $4, updated_at = $5 WHERE id = $6`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE id = $1`,
	"list_assessments":  `SELECT result FROM assessments WHERE run_id = $1 ORDER BY seq`,
	"get_lookup":        `SELECT place, value FROM geo_cache WHERE key = $1`,
	"put_lookup":        `INSERT INTO geo_cache (key, place, value, cached_at) VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO UPDATE SET place = EXCLUDED.place, value = EXCLUDED.value, cached_at = EXCLUDED.cached_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	portfolio  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	companies  INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	report     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assessments (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	company    TEXT NOT NULL,
	location   TEXT NOT NULL,
	result     JSONB NOT NULL,
	overall    DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geo_cache (
	key       TEXT PRIMARY KEY,
	place     TEXT NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_assessments_run_id ON assessments(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_run_seq ON assessments(run_id, seq);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, portfolio string, companies int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, portfolio, status, companies, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, portfolio, string(model.RunStatusRunning), companies, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Portfolio: portfolio,
		Status:    model.RunStatusRunning,
		Companies: companies,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, succeeded, failed int, report string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, succeeded = $2, failed = $3, report = $4, updated_at = $5 WHERE id = $6`,
		string(model.RunStatusComplete), succeeded, failed, report, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var report *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Portfolio, &r.Status, &r.Companies, &r.Succeeded, &r.Failed, &report, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if report != nil {
		r.Report = *report
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var report *string

		if err := rows.Scan(&r.ID, &r.Portfolio, &r.Status, &r.Companies, &r.Succeeded, &r.Failed, &report, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if report != nil {
			r.Report = *report
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// assessmentColumns is the COPY column order for SaveAssessments.
var assessmentColumns = []string{"id", "run_id", "seq", "company", "location", "result", "overall", "created_at"}

func (s *PostgresStore) SaveAssessments(ctx context.Context, runID string, assessments []model.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(assessments))
	for seq, a := range assessments {
		resultJSON, err := json.Marshal(a)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal assessment %s", a.Company)
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, seq, a.Company, a.Location, resultJSON, a.Scores.Overall, now,
		})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "assessments", assessmentColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: save assessments for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, runID string) ([]model.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM assessments WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list assessments for run %s", runID)
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var resultJSON []byte
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		var a model.Assessment
		if err := json.Unmarshal(resultJSON, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal assessment")
		}
		assessments = append(assessments, a)
	}
	return assessments, eris.Wrap(rows.Err(), "postgres: list assessments iterate")
}

func (s *PostgresStore) GetLookup(ctx context.Context, key string) (string, float64, bool, error) {
	var place string
	var value float64

	err := s.pool.QueryRow(ctx,
		`SELECT place, value FROM geo_cache WHERE key = $1`,
		key,
	).Scan(&place, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, eris.Wrap(err, "postgres: get lookup")
	}
	return place, value, true, nil
}

func (s *PostgresStore) PutLookup(ctx context.Context, key, place string, value float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geo_cache (key, place, value, cached_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET place = EXCLUDED.place, value = EXCLUDED.value, cached_at = EXCLUDED.cached_at`,
		key, place, value, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put lookup")
}
