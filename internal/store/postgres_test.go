package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raumwerk/standort-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "portfolio.yaml", "running", 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "portfolio.yaml", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, 3, run.Companies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, portfolio, status, companies, succeeded, failed, report, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, succeeded`).
		WithArgs("complete", 2, 0, "out.xlsx", pgxmock.AnyArg(), "nonexistent-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "nonexistent-run", 2, 0, "out.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAssessments_CopiesBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"assessments"}, assessmentColumns).WillReturnResult(2)

	batch := []model.Assessment{
		sampleAssessment("TechCorp AG", "Zug", 4.1),
		sampleAssessment("Trans-Helvetia Logistik", "Bern", 2.6),
	}
	err := s.SaveAssessments(context.Background(), "run-1", batch)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAssessments_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.SaveAssessments(context.Background(), "run-1", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT place, value FROM geo_cache`).
		WithArgs("unknown-key").
		WillReturnError(pgx.ErrNoRows)

	_, _, ok, err := s.GetLookup(context.Background(), "unknown-key")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT place, value FROM geo_cache`).
		WithArgs("key-1").
		WillReturnRows(pgxmock.NewRows([]string{"place", "value"}).AddRow("Bahnhof Zug", 250.0))

	place, value, ok, err := s.GetLookup(context.Background(), "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bahnhof Zug", place)
	assert.InDelta(t, 250.0, value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutLookup_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("key-1", "Bahnhof Zug", 250.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutLookup(context.Background(), "key-1", "Bahnhof Zug", 250.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
