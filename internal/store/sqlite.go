package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/raumwerk/standort-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	portfolio  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	companies  INTEGER NOT NULL DEFAULT 0,
	succeeded  INTEGER NOT NULL DEFAULT 0,
	failed     INTEGER NOT NULL DEFAULT 0,
	report     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assessments (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	company    TEXT NOT NULL,
	location   TEXT NOT NULL,
	result     TEXT NOT NULL,
	overall    REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geo_cache (
	key       TEXT PRIMARY KEY,
	place     TEXT NOT NULL,
	value     REAL NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_assessments_run_id ON assessments(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_run_seq ON assessments(run_id, seq);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, portfolio string, companies int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, portfolio, status, companies, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, portfolio, string(model.RunStatusRunning), companies, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, succeeded, failed int, report string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, succeeded = ?, failed = ?, report = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), succeeded, failed, report, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveAssessments(ctx context.Context, runID string, assessments []model.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save assessments")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for seq, a := range assessments {
		resultJSON, err := json.Marshal(a)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal assessment %s", a.Company)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assessments (id, run_id, seq, company, location, result, overall, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, seq, a.Company, a.Location, string(resultJSON), a.Scores.Overall, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert assessment for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save assessments")
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, runID string) ([]model.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM assessments WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list assessments for run %s", runID)
	}
	defer rows.Close()

	var assessments []model.Assessment
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		var a model.Assessment
		if err := json.Unmarshal([]byte(resultJSON), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal assessment")
		}
		assessments = append(assessments, a)
	}
	return assessments, eris.Wrap(rows.Err(), "sqlite: list assessments iterate")
}

func (s *SQLiteStore) GetLookup(ctx context.Context, key string) (string, float64, bool, error) {
	var place string
	var value float64

	err := s.db.QueryRowContext(ctx,
		`SELECT place, value FROM geo_cache WHERE key = ?`,
		key,
	).Scan(&place, &value)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, eris.Wrap(err, "sqlite: get lookup")
	}
	return place, value, true, nil
}

func (s *SQLiteStore) PutLookup(ctx context.Context, key, place string, value float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geo_cache (key, place, value, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET place = excluded.place, value = excluded.value, cached_at = excluded.cached_at`,
		key, place, value, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put lookup")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var report sql.NullString

	err := row.Scan(&r.ID, &r.Portfolio, &r.Status, &r.Companies, &r.Succeeded, &r.Failed, &report, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if report.Valid {
		r.Report = report.String
	}
	return &r, nil
}
