package mocks

import (
	"context"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/store"
)

// MockThreadStore implements store.ThreadStore for testing.
type MockThreadStore struct {
	// Function fields for customizable behavior
	GetThreadFn  func(ctx context.Context, threadID string) (*domain.Thread, error)
	SaveThreadFn func(ctx context.Context, threadID string, messages []domain.Message, threadType domain.ThreadType) error

	// Data for default implementation
	Threads   map[string]*domain.Thread
	GetError  error
	SaveError error

	// Call tracking
	SaveCalls []SaveThreadCall
}

// SaveThreadCall records one SaveThread invocation.
type SaveThreadCall struct {
	ThreadID string
	Messages []domain.Message
	Type     domain.ThreadType
}

var _ store.ThreadStore = (*MockThreadStore)(nil)

// NewMockThreadStore creates a new mock store with initialized defaults.
func NewMockThreadStore() *MockThreadStore {
	return &MockThreadStore{
		Threads: make(map[string]*domain.Thread),
	}
}

// GetThread implements the ThreadStore interface.
func (m *MockThreadStore) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	if m.GetThreadFn != nil {
		return m.GetThreadFn(ctx, threadID)
	}

	if m.GetError != nil {
		return nil, m.GetError
	}

	thread, exists := m.Threads[threadID]
	if !exists {
		return nil, store.ErrThreadNotFound
	}
	return thread, nil
}

// SaveThread implements the ThreadStore interface.
func (m *MockThreadStore) SaveThread(
	ctx context.Context,
	threadID string,
	messages []domain.Message,
	threadType domain.ThreadType,
) error {
	m.SaveCalls = append(m.SaveCalls, SaveThreadCall{
		ThreadID: threadID,
		Messages: append([]domain.Message(nil), messages...),
		Type:     threadType,
	})

	if m.SaveThreadFn != nil {
		return m.SaveThreadFn(ctx, threadID, messages, threadType)
	}

	if m.SaveError != nil {
		return m.SaveError
	}

	m.Threads[threadID] = &domain.Thread{
		ID:       threadID,
		Messages: append([]domain.Message(nil), messages...),
		Type:     threadType,
	}
	return nil
}

// MockCredentialStore implements store.CredentialStore for testing.
type MockCredentialStore struct {
	// Function fields for customizable behavior
	GetAPIKeyFn  func(ctx context.Context, userID string) (string, error)
	SaveAPIKeyFn func(ctx context.Context, userID, apiKey string) error

	// Data for default implementation
	Keys      map[string]string
	GetError  error
	SaveError error
}

var _ store.CredentialStore = (*MockCredentialStore)(nil)

// NewMockCredentialStore creates a new mock store with initialized defaults.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		Keys: make(map[string]string),
	}
}

// GetAPIKey implements the CredentialStore interface.
func (m *MockCredentialStore) GetAPIKey(ctx context.Context, userID string) (string, error) {
	if m.GetAPIKeyFn != nil {
		return m.GetAPIKeyFn(ctx, userID)
	}

	if m.GetError != nil {
		return "", m.GetError
	}

	key, exists := m.Keys[userID]
	if !exists {
		return "", store.ErrCredentialNotFound
	}
	return key, nil
}

// SaveAPIKey implements the CredentialStore interface.
func (m *MockCredentialStore) SaveAPIKey(ctx context.Context, userID, apiKey string) error {
	if m.SaveAPIKeyFn != nil {
		return m.SaveAPIKeyFn(ctx, userID, apiKey)
	}

	if m.SaveError != nil {
		return m.SaveError
	}

	m.Keys[userID] = apiKey
	return nil
}
