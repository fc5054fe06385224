package mocks

import (
	"context"
	"fmt"

	"github.com/fablebot/fable-api/internal/platform/googlechat"
)

// MockMessenger implements googlechat.Messenger for testing.
type MockMessenger struct {
	// Function fields for customizable behavior
	CreateMessageFn func(ctx context.Context, spaceName string, msg googlechat.Message) (string, error)
	UpdateMessageFn func(ctx context.Context, messageName string, msg googlechat.Message) error

	// Data for default implementation
	CreateError error
	UpdateError error

	// Call tracking
	CreateCalls []CreateMessageCall
	UpdateCalls []UpdateMessageCall
}

// CreateMessageCall records one CreateMessage invocation.
type CreateMessageCall struct {
	SpaceName string
	Message   googlechat.Message
}

// UpdateMessageCall records one UpdateMessage invocation.
type UpdateMessageCall struct {
	MessageName string
	Message     googlechat.Message
}

var _ googlechat.Messenger = (*MockMessenger)(nil)

// NewMockMessenger creates a mock messenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

// CreateMessage implements the Messenger interface. The default returns a
// message name derived from the space and the call count.
func (m *MockMessenger) CreateMessage(ctx context.Context, spaceName string, msg googlechat.Message) (string, error) {
	m.CreateCalls = append(m.CreateCalls, CreateMessageCall{SpaceName: spaceName, Message: msg})

	if m.CreateMessageFn != nil {
		return m.CreateMessageFn(ctx, spaceName, msg)
	}

	if m.CreateError != nil {
		return "", m.CreateError
	}
	return fmt.Sprintf("%s/messages/%d", spaceName, len(m.CreateCalls)), nil
}

// UpdateMessage implements the Messenger interface.
func (m *MockMessenger) UpdateMessage(ctx context.Context, messageName string, msg googlechat.Message) error {
	m.UpdateCalls = append(m.UpdateCalls, UpdateMessageCall{MessageName: messageName, Message: msg})

	if m.UpdateMessageFn != nil {
		return m.UpdateMessageFn(ctx, messageName, msg)
	}
	return m.UpdateError
}
