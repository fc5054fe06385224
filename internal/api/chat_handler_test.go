package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/mocks"
	"github.com/fablebot/fable-api/internal/platform/googlechat"
	"github.com/fablebot/fable-api/internal/service/conversation"
	"github.com/fablebot/fable-api/internal/task"
)

type handlerFixture struct {
	threads     *mocks.MockThreadStore
	credentials *mocks.MockCredentialStore
	generator   *mocks.MockGenerator
	messenger   *mocks.MockMessenger
	enqueuer    *mocks.MockEnqueuer
	chat        *ChatHandler
	tasks       *TaskHandler
}

func newHandlerFixture(cfg conversation.Config) *handlerFixture {
	f := &handlerFixture{
		threads:     mocks.NewMockThreadStore(),
		credentials: mocks.NewMockCredentialStore(),
		generator:   mocks.NewMockGenerator(),
		messenger:   mocks.NewMockMessenger(),
		enqueuer:    mocks.NewMockEnqueuer(),
	}
	service := conversation.NewService(f.threads, f.credentials, f.generator, f.messenger, f.enqueuer, cfg)
	f.chat = NewChatHandler(service)
	f.tasks = NewTaskHandler(service)
	return f
}

func postEvent(t *testing.T, handler *ChatHandler, event any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat/events", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.HandleEvent(w, req)
	return w
}

func decodeTextResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp TextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Text
}

func dmMessageEvent(text string, commandID int) ChatEvent {
	event := ChatEvent{
		Type:  EventTypeMessage,
		Space: EventSpace{Name: "spaces/456", SpaceType: SpaceTypeDirectMessage},
		User:  EventUser{Name: "users/123", DisplayName: "Dana"},
		Message: &EventMessage{
			ArgumentText: text,
		},
	}
	if commandID != 0 {
		event.Message.SlashCommand = &SlashCommand{CommandID: json.Number(fmt.Sprint(commandID))}
	}
	return event
}

func TestHandleEventMalformedBody(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})

	req := httptest.NewRequest(http.MethodPost, "/chat/events", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	f.chat.HandleEvent(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEventGreetings(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})

	t.Run("room", func(t *testing.T) {
		w := postEvent(t, f.chat, ChatEvent{
			Type:  EventTypeAddedToSpace,
			Space: EventSpace{Name: "spaces/456", Type: SpaceTypeRoom},
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, decodeTextResponse(t, w), "Thanks for adding me to the room")
	})

	t.Run("direct message", func(t *testing.T) {
		w := postEvent(t, f.chat, ChatEvent{
			Type:  EventTypeAddedToSpace,
			Space: EventSpace{Name: "spaces/456", Type: SpaceTypeDM},
			User:  EventUser{Name: "users/123", DisplayName: "Dana"},
		})
		assert.Equal(t, "Hi Dana! I'm here to help whenever you need it.", decodeTextResponse(t, w))
	})

	t.Run("removed from space", func(t *testing.T) {
		w := postEvent(t, f.chat, ChatEvent{Type: EventTypeRemovedFromSpace})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "{}", w.Body.String())
	})
}

func TestHandleEventStoresAPIKey(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})

	w := postEvent(t, f.chat, dmMessageEvent("  sk-my-new-key  ", 5))
	assert.Equal(t, "Your API key has been stored", decodeTextResponse(t, w))
	assert.Equal(t, "sk-my-new-key", f.credentials.Keys["123"])
}

func TestHandleEventUnprovisionedUser(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})

	w := postEvent(t, f.chat, dmMessageEvent("hello", 0))
	assert.Contains(t, decodeTextResponse(t, w), "You must enter your OpenAI API key")
	assert.Empty(t, f.generator.CompleteCalls)
}

func TestHandleEventInlineChat(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"
	f.generator.CompletionText = "a cheerful answer"

	w := postEvent(t, f.chat, dmMessageEvent("what is the capital of France?", 0))
	assert.Equal(t, "a cheerful answer", decodeTextResponse(t, w))

	// DM history is persisted as one exchange.
	stored := f.threads.Threads["123-456"]
	require.NotNil(t, stored)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, stored.Messages[1].Role)
}

func TestHandleEventPersonaCommand(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"

	w := postEvent(t, f.chat, dmMessageEvent("tell me about the sea", 3))
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.generator.CompleteCalls, 1)
	sent := f.generator.CompleteCalls[0].Messages
	require.Len(t, sent, 2)
	assert.Equal(t, domain.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "esteemed poet")
}

func TestHandleEventGroupChatIsStateless(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{AllowSharedFallback: true, FallbackAPIKey: "sk-shared"})

	event := ChatEvent{
		Type:    EventTypeMessage,
		Space:   EventSpace{Name: "spaces/456", SpaceType: "SPACE"},
		User:    EventUser{Name: "users/123"},
		Message: &EventMessage{ArgumentText: "a group question"},
	}

	w := postEvent(t, f.chat, event)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.threads.SaveCalls)
}

func TestHandleEventGenerationErrorReturnedAsText(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"
	f.generator.CompleteError = errors.New("Rate limit reached for requests")

	w := postEvent(t, f.chat, dmMessageEvent("hello", 0))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeTextResponse(t, w), "Rate limit reached")
}

func TestHandleEventImageCommand(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"
	f.generator.ImageURL = "https://img.example/cat.png"
	f.generator.CompletionText = "A Cat of Distinction"

	w := postEvent(t, f.chat, dmMessageEvent("a distinguished cat", 4))
	assert.Equal(t, http.StatusOK, w.Code)

	var card googlechat.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	require.Len(t, card.CardsV2, 1)
	assert.Equal(t, "A Cat of Distinction", card.CardsV2[0].Card.Sections[0].Header)
}

func TestHandleEventStoryCommandDefers(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"

	w := postEvent(t, f.chat, dmMessageEvent("a pirate adventure", 6))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())

	// Placeholder first, then the queue entry pointing at it.
	require.Len(t, f.messenger.CreateCalls, 1)
	assert.Equal(t, "Generating...", f.messenger.CreateCalls[0].Message.Text)

	require.Len(t, f.enqueuer.Enqueued, 1)
	desc := f.enqueuer.Enqueued[0]
	assert.Equal(t, task.ActionHandleStoryCommand, desc.Action)
	assert.Equal(t, "123-456", desc.ThreadID)
	assert.NotEmpty(t, desc.MessageID)

	// Nothing was generated inline.
	assert.Empty(t, f.generator.CompleteCalls)
}

func TestHandleEventStoryContinuationDefers(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeStory,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "story prompt"},
			{Role: domain.RoleAssistant, Content: "chapter one"},
		},
	}

	w := postEvent(t, f.chat, dmMessageEvent("take the left path", 0))
	assert.JSONEq(t, "{}", w.Body.String())

	require.Len(t, f.enqueuer.Enqueued, 1)
	assert.Equal(t, task.ActionProcessStoryMessage, f.enqueuer.Enqueued[0].Action)
	assert.Equal(t, "take the left path", f.enqueuer.Enqueued[0].UserText)
}

func TestHandleEventStoryOutsideDM(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{AllowSharedFallback: true, FallbackAPIKey: "sk-shared"})

	event := ChatEvent{
		Type:  EventTypeMessage,
		Space: EventSpace{Name: "spaces/456", SpaceType: "SPACE"},
		User:  EventUser{Name: "users/123"},
		Message: &EventMessage{
			ArgumentText: "a pirate adventure",
			SlashCommand: &SlashCommand{CommandID: "6"},
		},
	}

	w := postEvent(t, f.chat, event)
	assert.Contains(t, decodeTextResponse(t, w), "direct message")
	assert.Empty(t, f.enqueuer.Enqueued)
}

func TestHandleEventDeferFailure(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(conversation.Config{})
	f.credentials.Keys["123"] = "sk-user-key"
	f.enqueuer.EnqueueError = errors.New("queue backend unreachable")

	w := postEvent(t, f.chat, dmMessageEvent("a pirate adventure", 6))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeTextResponse(t, w), "Something went wrong")
}
