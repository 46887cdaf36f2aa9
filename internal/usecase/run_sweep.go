package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/metrics"
	"github.com/Harsh-BH/qsweep/internal/repository"
	"github.com/Harsh-BH/qsweep/internal/sampler"
)

// defaultLockRefresh keeps the idempotency lock alive. It must stay well
// inside the lock store's TTL.
const defaultLockRefresh = 30 * time.Second

// RunSweepUsecase orchestrates the execution of one queued sweep run.
type RunSweepUsecase struct {
	repo        repository.SweepRepository
	idempotent  repository.IdempotencyStore
	service     domain.JobService
	logger      *zap.Logger
	lockRefresh time.Duration
}

// NewRunSweepUsecase creates a new RunSweepUsecase.
func NewRunSweepUsecase(
	repo repository.SweepRepository,
	idempotent repository.IdempotencyStore,
	service domain.JobService,
	logger *zap.Logger,
) *RunSweepUsecase {
	return &RunSweepUsecase{
		repo:        repo,
		idempotent:  idempotent,
		service:     service,
		logger:      logger,
		lockRefresh: defaultLockRefresh,
	}
}

// Execute processes a single run: lock → load → RUNNING → sample → store result.
// Returns (isDuplicate, error). Sampling failures are recorded on the run
// and are not returned. A non-nil error means the run could not be tracked,
// or ctx was cancelled mid-run; in the latter case the run is back in
// QUEUED and a redelivery resumes its recorded jobs.
func (uc *RunSweepUsecase) Execute(ctx context.Context, run *domain.SweepRun) (bool, error) {
	log := uc.logger.With(zap.String("sweep_id", run.SweepID.String()))

	// Step 1: Idempotency lock
	acquired, err := uc.idempotent.AcquireLock(ctx, run.SweepID)
	if err != nil {
		log.Error("Failed to acquire idempotency lock", zap.Error(err))
		return false, err
	}
	if !acquired {
		log.Info("Duplicate message detected, skipping")
		return true, nil
	}
	stopRefresh := uc.keepLock(ctx, run.SweepID, log)
	defer func() {
		stopRefresh()
		_ = uc.idempotent.ReleaseLock(context.WithoutCancel(ctx), run.SweepID)
	}()

	// Step 2: Load stored state. Finished runs are redeliveries.
	stored, err := uc.repo.GetByID(ctx, run.SweepID)
	if err != nil {
		log.Error("Failed to load sweep", zap.Error(err))
		return false, err
	}
	if stored.Status.IsTerminal() {
		log.Info("Sweep already finished, skipping", zap.String("status", string(stored.Status)))
		return true, nil
	}

	// Step 3: Mark RUNNING
	if err := uc.repo.UpdateStatus(ctx, run.SweepID, domain.StatusRunning); err != nil {
		log.Error("Failed to update sweep status", zap.Error(err))
		return false, err
	}

	// Step 4: Sample every point
	start := time.Now()
	results, err := uc.sample(ctx, run, stored.JobIDs, log)
	metrics.SweepDuration.WithLabelValues(targetLabel(run.Target)).Observe(time.Since(start).Seconds())

	// Outcome is stored even if the worker is shutting down.
	storeCtx := context.WithoutCancel(ctx)

	if err != nil && ctx.Err() != nil {
		log.Warn("Sweep interrupted, returning it to the queue", zap.Error(err))
		metrics.SweepsTotal.WithLabelValues(targetLabel(run.Target), "interrupted").Inc()
		if err := uc.repo.UpdateStatus(storeCtx, run.SweepID, domain.StatusQueued); err != nil {
			log.Error("Failed to requeue sweep status", zap.Error(err))
		}
		return false, fmt.Errorf("sweep %s interrupted: %w", run.SweepID, err)
	}

	if err != nil {
		log.Warn("Sweep failed", zap.Error(err))
		metrics.SweepsTotal.WithLabelValues(targetLabel(run.Target), string(domain.StatusFailed)).Inc()
		if err := uc.repo.SetFailed(storeCtx, run.SweepID, err.Error()); err != nil {
			log.Error("Failed to store sweep failure", zap.Error(err))
			return false, err
		}
		return false, nil
	}

	// Step 5: Store results
	if err := uc.repo.SetResult(storeCtx, run.SweepID, results); err != nil {
		log.Error("Failed to store sweep results", zap.Error(err))
		return false, err
	}
	metrics.SweepsTotal.WithLabelValues(targetLabel(run.Target), string(domain.StatusCompleted)).Inc()

	log.Info("Sweep completed",
		zap.Int("points", len(results)),
		zap.Int("repetitions", run.Repetitions),
		zap.Duration("elapsed", time.Since(start)),
	)
	return false, nil
}

func (uc *RunSweepUsecase) sample(ctx context.Context, run *domain.SweepRun, jobIDs []string, log *zap.Logger) ([]*domain.Result, error) {
	sweep, err := run.Sweep.Build()
	if err != nil {
		return nil, err
	}

	jobs := newJobRecorder(uc.service, uc.repo, run.SweepID, jobIDs, log)
	opts := []sampler.Option{sampler.WithTarget(run.Target), sampler.WithLogger(uc.logger)}
	if run.Seed != nil {
		opts = append(opts, sampler.WithSeed(*run.Seed))
	}
	return sampler.New(jobs, opts...).RunSweep(ctx, run.Circuit, sweep, run.Repetitions)
}

// keepLock refreshes the idempotency lock until the returned stop function
// is called.
func (uc *RunSweepUsecase) keepLock(ctx context.Context, sweepID uuid.UUID, log *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(uc.lockRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := uc.idempotent.RefreshLock(ctx, sweepID); err != nil {
					log.Warn("Failed to refresh idempotency lock", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
