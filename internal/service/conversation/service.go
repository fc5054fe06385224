// Package conversation implements the bot's conversational behavior: inline
// chat replies, image cards, credential management and deferral of
// long-form story work to the background queue. It coordinates the thread
// and credential stores, the generation provider, the chat messenger and
// the task dispatcher; HTTP concerns stay in the api package.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/generation"
	"github.com/fablebot/fable-api/internal/platform/googlechat"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/store"
	"github.com/fablebot/fable-api/internal/task"
)

// placeholderText is shown while a deferred operation runs.
const placeholderText = "Generating..."

// imageTitlePrompt asks the model to caption a generated image.
const imageTitlePrompt = "The following prompt was given to DALL-E to create an " +
	"image. Please come up with a witty title for the image. " +
	"It should be no longer than 8 words: %s"

// Config holds the conversation service's policy knobs.
type Config struct {
	// AllowSharedFallback permits unprovisioned users to ride on the shared
	// credential instead of being prompted to provision their own.
	AllowSharedFallback bool

	// FallbackAPIKey is the shared credential used when the fallback is
	// allowed.
	FallbackAPIKey string
}

// Service implements the conversational operations behind both the webhook
// and the background worker.
type Service struct {
	threads     store.ThreadStore
	credentials store.CredentialStore
	generator   generation.Generator
	messenger   googlechat.Messenger
	enqueuer    task.Enqueuer
	cfg         Config
}

// NewService wires a conversation service from its collaborators.
func NewService(
	threads store.ThreadStore,
	credentials store.CredentialStore,
	generator generation.Generator,
	messenger googlechat.Messenger,
	enqueuer task.Enqueuer,
	cfg Config,
) *Service {
	return &Service{
		threads:     threads,
		credentials: credentials,
		generator:   generator,
		messenger:   messenger,
		enqueuer:    enqueuer,
		cfg:         cfg,
	}
}

// StoreAPIKey saves the user's generation-API key.
func (s *Service) StoreAPIKey(ctx context.Context, userID, apiKey string) error {
	if err := s.credentials.SaveAPIKey(ctx, userID, apiKey); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the credential to act with for the user: their own
// key if provisioned, the shared fallback if allowed, otherwise
// ErrUnprovisioned.
func (s *Service) ResolveAPIKey(ctx context.Context, userID string) (string, error) {
	apiKey, err := s.credentials.GetAPIKey(ctx, userID)
	if err == nil {
		return apiKey, nil
	}
	if !errors.Is(err, store.ErrCredentialNotFound) {
		return "", fmt.Errorf("failed to resolve API key: %w", err)
	}

	if s.cfg.AllowSharedFallback && s.cfg.FallbackAPIKey != "" {
		logger.FromContext(ctx).Debug("using shared fallback credential", "user_id", userID)
		return s.cfg.FallbackAPIKey, nil
	}
	return "", ErrUnprovisioned
}

// ActiveStory reports whether the thread exists and is a story in progress.
// A missing thread is an ordinary false.
func (s *Service) ActiveStory(ctx context.Context, threadID string) (bool, error) {
	if threadID == "" {
		return false, nil
	}

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check thread type: %w", err)
	}
	return thread.Type == domain.ThreadTypeStory, nil
}

// ChatReply produces the assistant's reply to userText. A non-empty guidance
// starts a fresh conversation seeded with a system message; otherwise any
// stored history for the thread is extended. With a thread id the updated
// history is persisted after the reply arrives; without one the exchange is
// stateless.
func (s *Service) ChatReply(ctx context.Context, apiKey, threadID, userText, guidance string) (string, error) {
	log := logger.FromContext(ctx)

	var messages []domain.Message

	if guidance != "" {
		messages = append(messages, domain.NewMessage(domain.RoleSystem, guidance))
	} else if threadID != "" {
		thread, err := s.threads.GetThread(ctx, threadID)
		if err != nil && !errors.Is(err, store.ErrThreadNotFound) {
			return "", fmt.Errorf("failed to load thread: %w", err)
		}
		if err == nil {
			messages = thread.Messages
		}
	}

	messages = append(messages, domain.NewMessage(domain.RoleUser, userText))

	reply, err := s.generator.Complete(ctx, apiKey, messages)
	if err != nil {
		return "", err
	}

	if threadID != "" {
		messages = append(messages, domain.NewMessage(domain.RoleAssistant, reply))
		if err := s.threads.SaveThread(ctx, threadID, messages, domain.ThreadTypeChat); err != nil {
			// The reply is already generated; losing one turn of history is
			// preferable to failing the whole exchange.
			log.Error("failed to persist chat history",
				"thread_id", threadID,
				"error", err)
		}
	}

	return reply, nil
}

// ImageCard generates an image for the prompt, captions it with a witty
// title, and returns the card message presenting both.
func (s *Service) ImageCard(ctx context.Context, apiKey, prompt string) (googlechat.Message, error) {
	imageURL, err := s.generator.CreateImage(ctx, apiKey, prompt)
	if err != nil {
		return googlechat.Message{}, err
	}

	titleRequest := []domain.Message{
		domain.NewMessage(domain.RoleUser, fmt.Sprintf(imageTitlePrompt, prompt)),
	}
	title, err := s.generator.Complete(ctx, apiKey, titleRequest)
	if err != nil {
		return googlechat.Message{}, err
	}

	return googlechat.NewImageCard(title, imageURL), nil
}

// DeferStory posts the placeholder message into the thread's space and
// enqueues the story action against it. The placeholder is created first so
// the queued payload can carry its handle.
func (s *Service) DeferStory(ctx context.Context, action task.Action, threadID, userText string) error {
	log := logger.FromContext(ctx)

	desc := task.NewDescriptor(action, threadID, userText, "")

	messageID, err := s.messenger.CreateMessage(ctx, desc.SpaceName(), googlechat.NewTextMessage(placeholderText))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeferFailed, err)
	}
	desc.MessageID = messageID

	if err := s.enqueuer.Enqueue(ctx, desc); err != nil {
		return fmt.Errorf("%w: %v", ErrDeferFailed, err)
	}

	log.Info("deferred story operation",
		"action", action,
		"thread_id", threadID,
		"message_id", messageID)
	return nil
}
