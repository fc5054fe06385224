package mocks

import (
	"context"

	"github.com/fablebot/fable-api/internal/service/auth"
)

// MockVerifier implements auth.Verifier for testing.
type MockVerifier struct {
	// Function field for customizable behavior
	VerifyFn func(ctx context.Context, authorizationHeader string) (*auth.Identity, error)

	// Data for default implementation
	Identity    *auth.Identity
	VerifyError error
}

var _ auth.Verifier = (*MockVerifier)(nil)

// NewMockVerifier creates a mock verifier that accepts everything as the
// given identity.
func NewMockVerifier(identity *auth.Identity) *MockVerifier {
	return &MockVerifier{Identity: identity}
}

// Verify implements the Verifier interface.
func (m *MockVerifier) Verify(ctx context.Context, authorizationHeader string) (*auth.Identity, error) {
	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, authorizationHeader)
	}

	if m.VerifyError != nil {
		return nil, m.VerifyError
	}
	return m.Identity, nil
}
