package store

import (
	"context"
	"time"

	"github.com/raumwerk/standort-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoring pipeline. Both
// backends keep run history, the per-company assessments of each run, and
// the geo lookup cache.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, portfolio string, companies int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, succeeded, failed int, report string) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Assessments, kept in submission order
	SaveAssessments(ctx context.Context, runID string, assessments []model.Assessment) error
	ListAssessments(ctx context.Context, runID string) ([]model.Assessment, error)

	// Geo lookup cache (satisfies geo.LookupCache)
	GetLookup(ctx context.Context, key string) (place string, value float64, ok bool, err error)
	PutLookup(ctx context.Context, key, place string, value float64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
