package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, sweepID uuid.UUID) (bool, error)
	RefreshLockFn func(ctx context.Context, sweepID uuid.UUID) error
	ReleaseLockFn func(ctx context.Context, sweepID uuid.UUID) error

	AcquireCalls []uuid.UUID
	RefreshCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, sweepID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, sweepID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, sweepID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) RefreshLock(ctx context.Context, sweepID uuid.UUID) error {
	m.mu.Lock()
	m.RefreshCalls = append(m.RefreshCalls, sweepID)
	m.mu.Unlock()
	if m.RefreshLockFn != nil {
		return m.RefreshLockFn(ctx, sweepID)
	}
	return nil
}

// Refreshes returns the number of RefreshLock calls so far.
func (m *IdempotencyStore) Refreshes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RefreshCalls)
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, sweepID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, sweepID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, sweepID)
	}
	return nil
}

// ---- JobService mock ----

var (
	_ domain.JobService = (*JobService)(nil)
	_ domain.JobResumer = (*JobService)(nil)
)

// CreateCall records one CreateJob invocation.
type CreateCall struct {
	Circuit     *domain.Circuit
	Repetitions int
	Target      string
}

// JobService is a test double for domain.JobService and domain.JobResumer.
// By default every job completes with a simulator result that always
// measures |0...0>. Created jobs can be resumed by ID.
type JobService struct {
	mu   sync.Mutex
	jobs map[string]domain.RemoteJob

	CreateJobFn func(ctx context.Context, circuit *domain.Circuit, repetitions int, target string) (domain.RemoteJob, error)
	ResumeJobFn func(ctx context.Context, id string) (domain.RemoteJob, error)

	CreateCalls []CreateCall
	ResumeCalls []string
}

func (m *JobService) CreateJob(ctx context.Context, circuit *domain.Circuit, repetitions int, target string) (domain.RemoteJob, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, CreateCall{Circuit: circuit, Repetitions: repetitions, Target: target})
	n := len(m.CreateCalls)
	m.mu.Unlock()

	var (
		job domain.RemoteJob
		err error
	)
	if m.CreateJobFn != nil {
		job, err = m.CreateJobFn(ctx, circuit, repetitions, target)
	} else {
		job = &RemoteJob{
			JobID: fmt.Sprintf("job-%d", n),
			Result: &domain.SimulatorResult{
				Probabilities:   map[int]float64{0: 1},
				NumQubits:       circuit.Qubits,
				MeasurementKeys: circuit.MeasurementKeys(),
				Repetitions:     repetitions,
			},
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.jobs == nil {
		m.jobs = make(map[string]domain.RemoteJob)
	}
	m.jobs[job.ID()] = job
	m.mu.Unlock()
	return job, nil
}

func (m *JobService) ResumeJob(ctx context.Context, id string) (domain.RemoteJob, error) {
	m.mu.Lock()
	m.ResumeCalls = append(m.ResumeCalls, id)
	job, ok := m.jobs[id]
	m.mu.Unlock()
	if m.ResumeJobFn != nil {
		return m.ResumeJobFn(ctx, id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return job, nil
}

// ---- RemoteJob mock ----

var _ domain.RemoteJob = (*RemoteJob)(nil)

// RemoteJob is a test double for domain.RemoteJob.
type RemoteJob struct {
	mu sync.Mutex

	JobID  string
	Result domain.JobResult
	Err    error

	ResultsCalls int
}

func (m *RemoteJob) ID() string {
	return m.JobID
}

func (m *RemoteJob) Results(ctx context.Context) (domain.JobResult, error) {
	m.mu.Lock()
	m.ResultsCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}
