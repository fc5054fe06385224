package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/mocks"
	"github.com/fablebot/fable-api/internal/task"
)

type fixture struct {
	threads     *mocks.MockThreadStore
	credentials *mocks.MockCredentialStore
	generator   *mocks.MockGenerator
	messenger   *mocks.MockMessenger
	enqueuer    *mocks.MockEnqueuer
	service     *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		threads:     mocks.NewMockThreadStore(),
		credentials: mocks.NewMockCredentialStore(),
		generator:   mocks.NewMockGenerator(),
		messenger:   mocks.NewMockMessenger(),
		enqueuer:    mocks.NewMockEnqueuer(),
	}
	f.service = NewService(f.threads, f.credentials, f.generator, f.messenger, f.enqueuer, cfg)
	return f
}

func TestResolveAPIKey(t *testing.T) {
	t.Parallel()

	t.Run("returns the user's own key", func(t *testing.T) {
		f := newFixture(Config{})
		f.credentials.Keys["123"] = "sk-user-key"

		key, err := f.service.ResolveAPIKey(context.Background(), "123")
		require.NoError(t, err)
		assert.Equal(t, "sk-user-key", key)
	})

	t.Run("falls back to the shared key when allowed", func(t *testing.T) {
		f := newFixture(Config{AllowSharedFallback: true, FallbackAPIKey: "sk-shared"})

		key, err := f.service.ResolveAPIKey(context.Background(), "123")
		require.NoError(t, err)
		assert.Equal(t, "sk-shared", key)
	})

	t.Run("unprovisioned without fallback", func(t *testing.T) {
		f := newFixture(Config{})

		_, err := f.service.ResolveAPIKey(context.Background(), "123")
		assert.ErrorIs(t, err, ErrUnprovisioned)
	})

	t.Run("store failures are not treated as unprovisioned", func(t *testing.T) {
		f := newFixture(Config{AllowSharedFallback: true, FallbackAPIKey: "sk-shared"})
		f.credentials.GetError = errors.New("connection refused")

		_, err := f.service.ResolveAPIKey(context.Background(), "123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnprovisioned)
	})
}

func TestStoreAPIKey(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	require.NoError(t, f.service.StoreAPIKey(context.Background(), "123", "sk-new-key"))
	assert.Equal(t, "sk-new-key", f.credentials.Keys["123"])
}

func TestActiveStory(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeStory,
	}
	f.threads.Threads["123-789"] = &domain.Thread{
		ID:   "123-789",
		Type: domain.ThreadTypeChat,
	}

	ctx := context.Background()

	active, err := f.service.ActiveStory(ctx, "123-456")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = f.service.ActiveStory(ctx, "123-789")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = f.service.ActiveStory(ctx, "123-000")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = f.service.ActiveStory(ctx, "")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestChatReplyContinuesHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeChat,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "earlier question"},
			{Role: domain.RoleAssistant, Content: "earlier answer"},
		},
	}
	f.generator.CompletionText = "the new answer"

	reply, err := f.service.ChatReply(context.Background(), "sk-key", "123-456", "a new question", "")
	require.NoError(t, err)
	assert.Equal(t, "the new answer", reply)

	// The completion request carried the stored history plus the new turn.
	require.Len(t, f.generator.CompleteCalls, 1)
	sent := f.generator.CompleteCalls[0]
	assert.Equal(t, "sk-key", sent.APIKey)
	require.Len(t, sent.Messages, 3)
	assert.Equal(t, "a new question", sent.Messages[2].Content)

	// The persisted history grew by exactly one exchange.
	stored := f.threads.Threads["123-456"].Messages
	require.Len(t, stored, 4)
	assert.Equal(t, domain.RoleUser, stored[2].Role)
	assert.Equal(t, domain.RoleAssistant, stored[3].Role)
	assert.Equal(t, "the new answer", stored[3].Content)
}

func TestChatReplyWithGuidanceStartsFresh(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeChat,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "old history"},
		},
	}

	_, err := f.service.ChatReply(context.Background(), "sk-key", "123-456", "hello", "You are an esteemed poet")
	require.NoError(t, err)

	// Guidance discards the stored history and seeds a system message.
	sent := f.generator.CompleteCalls[0].Messages
	require.Len(t, sent, 2)
	assert.Equal(t, domain.RoleSystem, sent[0].Role)
	assert.Equal(t, "You are an esteemed poet", sent[0].Content)

	stored := f.threads.Threads["123-456"].Messages
	require.Len(t, stored, 3)
	assert.Equal(t, domain.RoleSystem, stored[0].Role)
}

func TestChatReplyWithoutThreadIsStateless(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	reply, err := f.service.ChatReply(context.Background(), "sk-key", "", "a group question", "")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Empty(t, f.threads.SaveCalls)
}

func TestChatReplyPropagatesGenerationError(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.generator.CompleteError = errors.New("Rate limit reached")

	_, err := f.service.ChatReply(context.Background(), "sk-key", "123-456", "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit reached")
	assert.Empty(t, f.threads.SaveCalls)
}

func TestImageCard(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.generator.ImageURL = "https://img.example/lighthouse.png"
	f.generator.CompletionText = "A Striking Lighthouse"

	msg, err := f.service.ImageCard(context.Background(), "sk-key", "a lighthouse at dusk")
	require.NoError(t, err)

	// The image is generated from the raw prompt; the title from the
	// captioning prompt.
	require.Len(t, f.generator.ImageCalls, 1)
	assert.Equal(t, "a lighthouse at dusk", f.generator.ImageCalls[0].Prompt)

	require.Len(t, f.generator.CompleteCalls, 1)
	titleReq := f.generator.CompleteCalls[0].Messages
	require.Len(t, titleReq, 1)
	assert.True(t, strings.Contains(titleReq[0].Content, "no longer than 8 words"))
	assert.True(t, strings.Contains(titleReq[0].Content, "a lighthouse at dusk"))

	require.Len(t, msg.CardsV2, 1)
	section := msg.CardsV2[0].Card.Sections[0]
	assert.Equal(t, "A Striking Lighthouse", section.Header)
	assert.Equal(t, "https://img.example/lighthouse.png", section.Widgets[0].Image.ImageURL)
}

func TestImageCardPropagatesImageError(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.generator.ImageError = errors.New("content policy violation")

	_, err := f.service.ImageCard(context.Background(), "sk-key", "something disallowed")
	require.Error(t, err)
	assert.Empty(t, f.generator.CompleteCalls, "no title request after a failed image")
}

func TestDeferStoryCreatesPlaceholderThenEnqueues(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	err := f.service.DeferStory(context.Background(), task.ActionHandleStoryCommand, "123-456", "a pirate adventure")
	require.NoError(t, err)

	require.Len(t, f.messenger.CreateCalls, 1)
	assert.Equal(t, "spaces/456", f.messenger.CreateCalls[0].SpaceName)
	assert.Equal(t, "Generating...", f.messenger.CreateCalls[0].Message.Text)

	require.Len(t, f.enqueuer.Enqueued, 1)
	desc := f.enqueuer.Enqueued[0]
	assert.Equal(t, task.ActionHandleStoryCommand, desc.Action)
	assert.Equal(t, "123-456", desc.ThreadID)
	assert.Equal(t, "a pirate adventure", desc.UserText)
	assert.Equal(t, "spaces/456/messages/1", desc.MessageID)
}

func TestDeferStoryFailures(t *testing.T) {
	t.Parallel()

	t.Run("placeholder creation fails", func(t *testing.T) {
		f := newFixture(Config{})
		f.messenger.CreateError = errors.New("chat API down")

		err := f.service.DeferStory(context.Background(), task.ActionHandleStoryCommand, "123-456", "topic")
		assert.ErrorIs(t, err, ErrDeferFailed)
		assert.Empty(t, f.enqueuer.Enqueued)
	})

	t.Run("enqueue fails", func(t *testing.T) {
		f := newFixture(Config{})
		f.enqueuer.EnqueueError = fmt.Errorf("failed to save task: database is down")

		err := f.service.DeferStory(context.Background(), task.ActionProcessStoryMessage, "123-456", "option")
		assert.ErrorIs(t, err, ErrDeferFailed)
	})
}
