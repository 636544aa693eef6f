package repository

import (
	"context"
	"errors"
	"time"

	"opsmap/internal/domain"
)

// ErrNotFound is returned when a run or metadata key does not exist
var ErrNotFound = errors.New("not found")

// Repository defines the interface for run and metadata storage
type Repository interface {
	// Runs
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	LatestRun(ctx context.Context) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// Metadata stores any JSON-encodable value under a key
	SetMetadata(ctx context.Context, key string, value any) error
	GetMetadata(ctx context.Context, key string, target any) error

	// Close releases resources
	Close() error
}
