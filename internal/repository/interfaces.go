package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Harsh-BH/qsweep/internal/domain"
)

// SweepRepository defines the interface for sweep run persistence operations.
// Implementations must be safe for concurrent use.
type SweepRepository interface {
	// Create inserts a new sweep run into the data store.
	Create(ctx context.Context, run *domain.SweepRun) error

	// GetByID retrieves a sweep run by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error)

	// UpdateStatus atomically updates the status of a sweep run.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error

	// SetJobIDs records the remote job created for each sweep point so far.
	SetJobIDs(ctx context.Context, id uuid.UUID, jobIDs []string) error

	// SetResult stores the sampled results and marks the run COMPLETED.
	SetResult(ctx context.Context, id uuid.UUID, results []*domain.Result) error

	// SetFailed records the failure reason and marks the run FAILED.
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a sweep run.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, sweepID uuid.UUID) (bool, error)

	// RefreshLock extends the lock while the run is still being processed.
	RefreshLock(ctx context.Context, sweepID uuid.UUID) error

	// ReleaseLock drops the processing lock.
	ReleaseLock(ctx context.Context, sweepID uuid.UUID) error
}
