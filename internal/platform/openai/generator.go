// Package openai implements the generation interfaces on top of the OpenAI
// API. Clients are constructed per call because every request carries the
// calling user's own API key.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/generation"
	"github.com/fablebot/fable-api/internal/platform/logger"
)

// Config holds the model parameters for the OpenAI generator.
type Config struct {
	// ChatModel names the chat completion model, e.g. "gpt-3.5-turbo".
	ChatModel string

	// ImageModel names the image model, e.g. "dall-e-2".
	ImageModel string

	// Temperature is the sampling temperature passed to chat completions.
	Temperature float64
}

// Generator produces chat completions and images via the OpenAI API.
type Generator struct {
	cfg Config
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates an OpenAI-backed generator with the given model
// configuration.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Complete sends the message history to the chat completion endpoint and
// returns the first choice.
func (g *Generator) Complete(ctx context.Context, apiKey string, messages []domain.Message) (string, error) {
	log := logger.FromContext(ctx)

	if apiKey == "" {
		return "", generation.ErrMissingAPIKey
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	params := openai.ChatCompletionNewParams{
		Model:       g.cfg.ChatModel,
		Messages:    toChatMessages(messages),
		Temperature: openai.Float(g.cfg.Temperature),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error("chat completion request failed", "model", g.cfg.ChatModel, "error", err)
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", generation.ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// CreateImage generates a single 1024x1024 image for the prompt and returns
// its hosted URL.
func (g *Generator) CreateImage(ctx context.Context, apiKey, prompt string) (string, error) {
	log := logger.FromContext(ctx)

	if apiKey == "" {
		return "", generation.ErrMissingAPIKey
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  g.cfg.ImageModel,
		Prompt: prompt,
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		log.Error("image generation request failed", "model", g.cfg.ImageModel, "error", err)
		return "", fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", generation.ErrEmptyCompletion
	}

	return resp.Data[0].URL, nil
}

// toChatMessages converts domain messages into completion request parts.
func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
