package mock

import (
	"context"
	"sync"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock message publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.SweepRun
	PublishFn func(ctx context.Context, run *domain.SweepRun) error
	Closed    bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, run *domain.SweepRun) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, run)
	}
	m.mu.Lock()
	m.Published = append(m.Published, run)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	m.Closed = true
	return nil
}
