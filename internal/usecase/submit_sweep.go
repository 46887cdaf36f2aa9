package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/metrics"
	"github.com/Harsh-BH/qsweep/internal/publisher"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

const (
	maxSweepPoints = domain.MaxSweepPoints
	maxRepetitions = 10000
)

// SubmitSweepUsecase handles the business logic for submitting parameter sweeps.
type SubmitSweepUsecase struct {
	repo      repository.SweepRepository
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewSubmitSweepUsecase creates a new SubmitSweepUsecase.
func NewSubmitSweepUsecase(repo repository.SweepRepository, pub publisher.Publisher, logger *zap.Logger) *SubmitSweepUsecase {
	return &SubmitSweepUsecase{
		repo:      repo,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the submission, records the run, publishes it, and returns the sweep ID.
func (uc *SubmitSweepUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// Generate UUIDv7 (time-ordered)
	sweepID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	now := time.Now().UTC()
	run := &domain.SweepRun{
		SweepID:     sweepID,
		Circuit:     req.Circuit,
		Sweep:       req.Sweep,
		Repetitions: req.Repetitions,
		Target:      req.Target,
		Seed:        req.Seed,
		Status:      domain.StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, run); err != nil {
		uc.logger.Error("Failed to create sweep in database", zap.Error(err), zap.String("sweep_id", sweepID.String()))
		return nil, fmt.Errorf("create sweep: %w", err)
	}

	if err := uc.publisher.Publish(ctx, run); err != nil {
		uc.logger.Error("Failed to publish sweep to queue", zap.Error(err), zap.String("sweep_id", sweepID.String()))
		// The run will never be picked up.
		_ = uc.repo.SetFailed(ctx, sweepID, domain.ErrPublishFailed.Error())
		return nil, domain.ErrPublishFailed
	}

	metrics.SweepsSubmitted.WithLabelValues(targetLabel(req.Target)).Inc()
	uc.logger.Info("Sweep submitted successfully",
		zap.String("sweep_id", sweepID.String()),
		zap.String("target", req.Target),
		zap.Int("repetitions", req.Repetitions),
	)

	return &domain.SubmitResponse{
		SweepID: sweepID,
		Status:  string(domain.StatusQueued),
	}, nil
}

func validate(req *domain.SubmitRequest) error {
	if req.Circuit == nil {
		return fmt.Errorf("%w: circuit is required", domain.ErrInvalidCircuit)
	}
	if err := req.Circuit.Validate(); err != nil {
		return err
	}
	if len(req.Circuit.MeasurementKeys()) == 0 {
		return fmt.Errorf("%w: at least one measurement is required", domain.ErrInvalidCircuit)
	}
	if req.Repetitions < 1 || req.Repetitions > maxRepetitions {
		return domain.ErrInvalidRepetitions
	}
	if !domain.IsValidTarget(req.Target) {
		return domain.ErrInvalidTarget
	}

	sweep, err := req.Sweep.Build()
	if err != nil {
		return err
	}
	// Product lengths saturate, so this bound holds before anything is expanded.
	n := sweep.Len()
	if n <= 0 {
		return fmt.Errorf("%w: sweep has no points", domain.ErrInvalidSweep)
	}
	if n > maxSweepPoints {
		return domain.ErrSweepTooLarge
	}

	// Every free symbol must be bound at every point.
	for i, resolver := range domain.Take(sweep, maxSweepPoints) {
		if missing := domain.ResolveParameters(req.Circuit, resolver).Parameters(); len(missing) > 0 {
			return fmt.Errorf("%w: point %d leaves %v unresolved", domain.ErrInvalidSweep, i, missing)
		}
	}
	return nil
}

func targetLabel(target string) string {
	if target == "" {
		return "default"
	}
	return target
}
