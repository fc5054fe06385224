// Package gemini implements the text-generation interface on top of the
// Google Gemini API. It is an alternate provider to the OpenAI generator;
// image generation is not supported because Gemini returns raw image bytes
// rather than hosted URLs the chat surface can embed.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/generation"
	"github.com/fablebot/fable-api/internal/platform/logger"
)

// Config holds the model parameters for the Gemini generator.
type Config struct {
	// ChatModel names the generation model, e.g. "gemini-2.0-flash".
	ChatModel string

	// Temperature is the sampling temperature.
	Temperature float64
}

// Generator produces chat completions via the Gemini API.
type Generator struct {
	cfg Config
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini-backed generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Complete sends the message history to the model and returns its reply.
// A leading system message becomes the system instruction; the rest of the
// history maps onto user and model turns.
func (g *Generator) Complete(ctx context.Context, apiKey string, messages []domain.Message) (string, error) {
	log := logger.FromContext(ctx)

	if apiKey == "" {
		return "", generation.ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	contents, cfg := g.toRequest(messages)

	resp, err := client.Models.GenerateContent(ctx, g.cfg.ChatModel, contents, cfg)
	if err != nil {
		log.Error("content generation request failed", "model", g.cfg.ChatModel, "error", err)
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	text := resp.Text()
	if text == "" {
		return "", generation.ErrEmptyCompletion
	}
	return text, nil
}

// CreateImage always fails; the conversation service surfaces this to the
// user when image commands are invoked under the Gemini provider.
func (g *Generator) CreateImage(_ context.Context, _ string, _ string) (string, error) {
	return "", generation.ErrImageUnsupported
}

// toRequest converts the message history into Gemini contents and a
// generation config carrying the system instruction, if any.
func (g *Generator) toRequest(messages []domain.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	temp := float32(g.cfg.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, cfg
}
