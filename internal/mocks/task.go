package mocks

import (
	"context"

	"github.com/fablebot/fable-api/internal/task"
)

// MockEnqueuer implements task.Enqueuer for testing.
type MockEnqueuer struct {
	// Function field for customizable behavior
	EnqueueFn func(ctx context.Context, d task.Descriptor) error

	// Data for default implementation
	EnqueueError error

	// Call tracking
	Enqueued []task.Descriptor
}

var _ task.Enqueuer = (*MockEnqueuer)(nil)

// NewMockEnqueuer creates a mock enqueuer.
func NewMockEnqueuer() *MockEnqueuer {
	return &MockEnqueuer{}
}

// Enqueue implements the Enqueuer interface.
func (m *MockEnqueuer) Enqueue(ctx context.Context, d task.Descriptor) error {
	m.Enqueued = append(m.Enqueued, d)

	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, d)
	}
	return m.EnqueueError
}
