package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore implements the Store interface for testing. Default behaviors
// keep records in memory; individual functions can be overridden per test.
type MockStore struct {
	mutex          sync.RWMutex
	records        map[uuid.UUID]*Record
	SaveFn         func(ctx context.Context, record *Record) error
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a MockStore with in-memory default implementations.
func NewMockStore() *MockStore {
	store := &MockStore{
		records: make(map[uuid.UUID]*Record),
	}

	store.SaveFn = func(ctx context.Context, record *Record) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		copied := *record
		store.records[record.ID] = &copied
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		record, exists := store.records[id]
		if !exists {
			return nil
		}
		record.Status = status
		record.ErrorMessage = errorMsg
		record.UpdatedAt = time.Now().UTC()
		return nil
	}

	return store
}

// SaveTask persists a record to the mock store.
func (s *MockStore) SaveTask(ctx context.Context, record *Record) error {
	return s.SaveFn(ctx, record)
}

// UpdateTaskStatus updates a record's status in the mock store.
func (s *MockStore) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error {
	return s.UpdateStatusFn(ctx, id, status, errorMsg)
}

// GetPendingTasks returns records in the pending state.
func (s *MockStore) GetPendingTasks(ctx context.Context) ([]*Record, error) {
	return s.byStatus(StatusPending, 0), nil
}

// GetDeliveringTasks returns records stuck in the delivering state.
func (s *MockStore) GetDeliveringTasks(ctx context.Context, olderThan time.Duration) ([]*Record, error) {
	return s.byStatus(StatusDelivering, olderThan), nil
}

// TaskStatus reports the current status of a stored record.
func (s *MockStore) TaskStatus(id uuid.UUID) (Status, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return "", false
	}
	return record.Status, true
}

// Records returns a snapshot of all stored records.
func (s *MockStore) Records() []*Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		copied := *record
		out = append(out, &copied)
	}
	return out
}

func (s *MockStore) byStatus(status Status, olderThan time.Duration) []*Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var out []*Record
	for _, record := range s.records {
		if record.Status != status {
			continue
		}
		if olderThan > 0 && record.UpdatedAt.After(cutoff) {
			continue
		}
		copied := *record
		out = append(out, &copied)
	}
	return out
}
