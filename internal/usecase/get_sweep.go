package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

// GetSweepUsecase handles fetching sweep status and results.
type GetSweepUsecase struct {
	repo   repository.SweepRepository
	logger *zap.Logger
}

// NewGetSweepUsecase creates a new GetSweepUsecase.
func NewGetSweepUsecase(repo repository.SweepRepository, logger *zap.Logger) *GetSweepUsecase {
	return &GetSweepUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Execute retrieves a sweep run by its ID.
func (uc *GetSweepUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error) {
	run, err := uc.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrSweepNotFound) {
		uc.logger.Debug("Sweep not found", zap.String("sweep_id", id.String()))
		return nil, domain.ErrSweepNotFound
	}
	if err != nil {
		uc.logger.Error("Failed to load sweep", zap.String("sweep_id", id.String()), zap.Error(err))
		return nil, err
	}
	return run, nil
}
