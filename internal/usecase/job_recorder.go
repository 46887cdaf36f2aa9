package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

// jobRecorder sits between the sampler and the job service. Points that
// already have a recorded job are re-attached instead of created again, and
// every new job ID is stored before the sweep moves on to the next point.
type jobRecorder struct {
	service domain.JobService
	resumer domain.JobResumer
	repo    repository.SweepRepository
	sweepID uuid.UUID
	known   []string
	ids     []string
	logger  *zap.Logger
}

func newJobRecorder(service domain.JobService, repo repository.SweepRepository, sweepID uuid.UUID, known []string, logger *zap.Logger) *jobRecorder {
	resumer, _ := service.(domain.JobResumer)
	return &jobRecorder{
		service: service,
		resumer: resumer,
		repo:    repo,
		sweepID: sweepID,
		known:   known,
		logger:  logger,
	}
}

// CreateJob is called once per sweep point, in order.
func (r *jobRecorder) CreateJob(ctx context.Context, circuit *domain.Circuit, repetitions int, target string) (domain.RemoteJob, error) {
	point := len(r.ids)

	if point < len(r.known) && r.resumer != nil {
		job, err := r.resumer.ResumeJob(ctx, r.known[point])
		switch {
		case err == nil:
			r.ids = append(r.ids, job.ID())
			r.logger.Debug("Resumed sweep job", zap.Int("point", point), zap.String("job_id", job.ID()))
			return job, nil
		case errors.Is(err, domain.ErrJobNotFound):
			r.logger.Warn("Recorded sweep job is gone, creating a new one",
				zap.Int("point", point),
				zap.String("job_id", r.known[point]),
			)
		default:
			return nil, err
		}
	}

	job, err := r.service.CreateJob(ctx, circuit, repetitions, target)
	if err != nil {
		return nil, err
	}
	r.ids = append(r.ids, job.ID())

	// A lost record only costs a duplicate job if this run is interrupted.
	if err := r.repo.SetJobIDs(context.WithoutCancel(ctx), r.sweepID, r.ids); err != nil {
		r.logger.Warn("Failed to record sweep job", zap.String("job_id", job.ID()), zap.Error(err))
	}
	return job, nil
}
