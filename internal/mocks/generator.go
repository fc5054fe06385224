package mocks

import (
	"context"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/generation"
)

// MockGenerator implements generation.Generator for testing.
type MockGenerator struct {
	// Function fields for customizable behavior
	CompleteFn    func(ctx context.Context, apiKey string, messages []domain.Message) (string, error)
	CreateImageFn func(ctx context.Context, apiKey, prompt string) (string, error)

	// Data for default implementation
	CompletionText string
	ImageURL       string
	CompleteError  error
	ImageError     error

	// Call tracking
	CompleteCalls []CompleteCall
	ImageCalls    []ImageCall
}

// CompleteCall records one Complete invocation.
type CompleteCall struct {
	APIKey   string
	Messages []domain.Message
}

// ImageCall records one CreateImage invocation.
type ImageCall struct {
	APIKey string
	Prompt string
}

var _ generation.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator with canned responses.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		CompletionText: "a generated reply",
		ImageURL:       "https://img.example/generated.png",
	}
}

// Complete implements the Completer interface.
func (m *MockGenerator) Complete(ctx context.Context, apiKey string, messages []domain.Message) (string, error) {
	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{
		APIKey:   apiKey,
		Messages: append([]domain.Message(nil), messages...),
	})

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, apiKey, messages)
	}

	if m.CompleteError != nil {
		return "", m.CompleteError
	}
	return m.CompletionText, nil
}

// CreateImage implements the ImageGenerator interface.
func (m *MockGenerator) CreateImage(ctx context.Context, apiKey, prompt string) (string, error) {
	m.ImageCalls = append(m.ImageCalls, ImageCall{APIKey: apiKey, Prompt: prompt})

	if m.CreateImageFn != nil {
		return m.CreateImageFn(ctx, apiKey, prompt)
	}

	if m.ImageError != nil {
		return "", m.ImageError
	}
	return m.ImageURL, nil
}
