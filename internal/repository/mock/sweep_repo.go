package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/repository"
)

// Ensure MockSweepRepository implements repository.SweepRepository.
var _ repository.SweepRepository = (*MockSweepRepository)(nil)

// StatusUpdate records one UpdateStatus call.
type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.RunStatus
}

// MockSweepRepository is an in-memory mock of the sweep repository for testing.
type MockSweepRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*domain.SweepRun

	// Hook functions for injecting errors
	CreateFunc       func(ctx context.Context, run *domain.SweepRun) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error)
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status domain.RunStatus) error
	SetJobIDsFunc    func(ctx context.Context, id uuid.UUID, jobIDs []string) error
	SetResultFunc    func(ctx context.Context, id uuid.UUID, results []*domain.Result) error
	SetFailedFunc    func(ctx context.Context, id uuid.UUID, reason string) error

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
}

// NewMockSweepRepository creates a new mock repository.
func NewMockSweepRepository() *MockSweepRepository {
	return &MockSweepRepository{
		runs: make(map[uuid.UUID]*domain.SweepRun),
	}
}

func (m *MockSweepRepository) Create(ctx context.Context, run *domain.SweepRun) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.SweepID] = run
	return nil
}

func (m *MockSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SweepRun, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrSweepNotFound
	}
	return run, nil
}

func (m *MockSweepRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return domain.ErrSweepNotFound
	}
	run.Status = status
	return nil
}

func (m *MockSweepRepository) SetJobIDs(ctx context.Context, id uuid.UUID, jobIDs []string) error {
	if m.SetJobIDsFunc != nil {
		return m.SetJobIDsFunc(ctx, id, jobIDs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return domain.ErrSweepNotFound
	}
	run.JobIDs = slices.Clone(jobIDs)
	return nil
}

func (m *MockSweepRepository) SetResult(ctx context.Context, id uuid.UUID, results []*domain.Result) error {
	if m.SetResultFunc != nil {
		return m.SetResultFunc(ctx, id, results)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return domain.ErrSweepNotFound
	}
	run.Results = results
	run.Status = domain.StatusCompleted
	return nil
}

func (m *MockSweepRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if m.SetFailedFunc != nil {
		return m.SetFailedFunc(ctx, id, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return domain.ErrSweepNotFound
	}
	run.Error = reason
	run.Status = domain.StatusFailed
	return nil
}

// GetAll returns all stored runs (for test assertions).
func (m *MockSweepRepository) GetAll() []*domain.SweepRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.SweepRun, 0, len(m.runs))
	for _, r := range m.runs {
		result = append(result, r)
	}
	return result
}
