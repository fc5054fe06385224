// Package generation defines the interfaces the conversation service uses to
// produce model output. Implementations live under internal/platform and are
// selected at wiring time; the service layer depends only on these contracts.
package generation

import (
	"context"

	"github.com/fablebot/fable-api/internal/domain"
)

// Completer produces a chat completion from a message history. The apiKey is
// supplied per call because each user brings their own provider credential.
type Completer interface {
	// Complete returns the model's reply to the given history. The history
	// must already include any guidance message; Complete does not add one.
	Complete(ctx context.Context, apiKey string, messages []domain.Message) (string, error)
}

// ImageGenerator produces an image from a text prompt and returns a URL the
// chat surface can embed directly.
type ImageGenerator interface {
	CreateImage(ctx context.Context, apiKey, prompt string) (string, error)
}

// Generator is the full model surface a provider implements.
type Generator interface {
	Completer
	ImageGenerator
}
