package ionq

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
)

// JobStatus is the remote job state.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusReady     JobStatus = "ready"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// IsTerminal returns true if the job will not change state again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// Job is a handle on a remote job.
type Job struct {
	service *Service

	mu    sync.Mutex
	state JobResponse
}

var _ domain.RemoteJob = (*Job)(nil)

func newJob(s *Service, resp *JobResponse) *Job {
	return &Job{service: s, state: *resp}
}

// ID returns the remote job ID.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.ID
}

// Status returns the last observed status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Status
}

// Target returns the target the job runs on.
func (j *Job) Target() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Target
}

// Refresh reloads the job state from the API.
func (j *Job) Refresh(ctx context.Context) error {
	resp, err := j.service.client.GetJob(ctx, j.ID())
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	// Keep locally known fields the status endpoint may omit.
	if resp.Target == "" {
		resp.Target = j.state.Target
	}
	if resp.Qubits == 0 {
		resp.Qubits = j.state.Qubits
	}
	if resp.Metadata == nil {
		resp.Metadata = j.state.Metadata
	}
	j.state = *resp
	return nil
}

// Cancel cancels the job.
func (j *Job) Cancel(ctx context.Context) error {
	resp, err := j.service.client.CancelJob(ctx, j.ID())
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.state.Status = resp.Status
	j.mu.Unlock()
	return nil
}

// Delete deletes the job and its results.
func (j *Job) Delete(ctx context.Context) error {
	return j.service.client.DeleteJob(ctx, j.ID())
}

// Results blocks until the job completes and returns a *domain.QPUResult
// for hardware targets or a *domain.SimulatorResult for the simulator.
func (j *Job) Results(ctx context.Context) (domain.JobResult, error) {
	if err := j.wait(ctx); err != nil {
		return nil, err
	}

	hist, err := j.histogram(ctx)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	state := j.state
	j.mu.Unlock()

	keys, err := decodeMeasurements(state.Metadata)
	if err != nil {
		return nil, err
	}
	shots, err := strconv.Atoi(state.Metadata[shotsMetaKey])
	if err != nil {
		return nil, fmt.Errorf("ionq: job %s has no valid shot count: %w", state.ID, err)
	}

	if domain.IsQPUTarget(state.Target) {
		counts := make(map[int]int, len(hist))
		for k, p := range hist {
			s, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("ionq: job %s: malformed state %q: %w", state.ID, k, err)
			}
			counts[s] = int(math.Round(p * float64(shots)))
		}
		return &domain.QPUResult{Counts: counts, NumQubits: state.Qubits, MeasurementKeys: keys}, nil
	}

	probs := make(map[int]float64, len(hist))
	for k, p := range hist {
		s, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("ionq: job %s: malformed state %q: %w", state.ID, k, err)
		}
		probs[s] = p
	}
	return &domain.SimulatorResult{
		Probabilities:   probs,
		NumQubits:       state.Qubits,
		MeasurementKeys: keys,
		Repetitions:     shots,
	}, nil
}

// wait polls the job until it reaches a terminal status.
func (j *Job) wait(ctx context.Context) error {
	timeout := time.NewTimer(j.service.jobTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(j.service.pollInterval)
	defer ticker.Stop()

	for {
		j.mu.Lock()
		state := j.state
		j.mu.Unlock()

		switch state.Status {
		case JobStatusCompleted:
			return nil
		case JobStatusFailed:
			failure := &JobFailedError{JobID: state.ID, Message: "unknown error"}
			if state.Failure != nil {
				failure.Code = state.Failure.Code
				failure.Message = state.Failure.Error
			}
			return failure
		case JobStatusCanceled:
			return fmt.Errorf("%w: %s", ErrJobCanceled, state.ID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return fmt.Errorf("%w: job %s after %v", ErrJobTimeout, state.ID, j.service.jobTimeout)
		case <-ticker.C:
			if err := j.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}

func (j *Job) histogram(ctx context.Context) (map[string]float64, error) {
	id := j.ID()
	cache := j.service.cache
	logger := j.service.logger

	if cache != nil {
		hist, ok, err := cache.Get(ctx, id)
		if err != nil {
			logger.Warn("Result cache lookup failed", zap.String("job_id", id), zap.Error(err))
		} else if ok {
			return hist, nil
		}
	}

	hist, err := j.service.client.GetResults(ctx, id)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Put(ctx, id, hist); err != nil {
			logger.Warn("Result cache store failed", zap.String("job_id", id), zap.Error(err))
		}
	}
	return hist, nil
}
