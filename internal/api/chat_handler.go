package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fablebot/fable-api/internal/api/shared"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/service/conversation"
	"github.com/fablebot/fable-api/internal/task"
)

// User-facing reply texts.
const (
	roomGreeting = "Thanks for adding me to the room. " +
		"Mention me in a conversation whenever you need help."

	dmGreetingFormat = "Hi %s! I'm here to help whenever you need it."

	apiKeyStoredReply = "Your API key has been stored"

	unprovisionedReply = "You must enter your OpenAI API key before " +
		"using this bot"

	genericFailureReply = "Something went wrong. Please try again."
)

// ChatHandler serves the chat platform webhook. Authentication against the
// platform trust root happens in middleware before any of this runs.
type ChatHandler struct {
	service *conversation.Service
}

// NewChatHandler creates a ChatHandler backed by the conversation service.
func NewChatHandler(service *conversation.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// HandleEvent processes one webhook event and writes the inline reply.
func (h *ChatHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var event ChatEvent
	if err := shared.DecodeJSON(r, &event); err != nil {
		shared.RespondWithText(w, r, http.StatusBadRequest, "Malformed event payload")
		return
	}

	log.Info("received chat event",
		"event_type", event.Type,
		"space", event.Space.Name,
		"trace_id", shared.GetTraceID(r.Context()))

	switch event.Type {
	case EventTypeAddedToSpace:
		h.handleAddedToSpace(w, r, &event)

	case EventTypeRemovedFromSpace:
		shared.RespondWithEmptyAck(w, r)

	case EventTypeMessage:
		h.handleMessage(w, r, &event)

	default:
		shared.RespondWithEmptyAck(w, r)
	}
}

// handleAddedToSpace greets the space the bot was invited into.
func (h *ChatHandler) handleAddedToSpace(w http.ResponseWriter, r *http.Request, event *ChatEvent) {
	switch event.Space.Type {
	case SpaceTypeRoom:
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: roomGreeting})
	case SpaceTypeDM:
		greeting := fmt.Sprintf(dmGreetingFormat, event.User.DisplayName)
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: greeting})
	default:
		shared.RespondWithEmptyAck(w, r)
	}
}

// handleMessage routes a user message: credential management, deferred
// story work, or an inline generation reply.
func (h *ChatHandler) handleMessage(w http.ResponseWriter, r *http.Request, event *ChatEvent) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	userText := event.ArgumentText()
	userID := event.UserID()
	threadID := event.ThreadID()
	command := event.Command()

	log.Info("processing message",
		"command", command.String(),
		"thread_id", threadID)

	// Credential management never touches the generation API.
	if command == CommandAPIKey {
		if err := h.service.StoreAPIKey(ctx, userID, strings.TrimSpace(userText)); err != nil {
			shared.LogHandlerError(r, "failed to store API key", err)
			shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: genericFailureReply})
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: apiKeyStoredReply})
		return
	}

	apiKey, err := h.service.ResolveAPIKey(ctx, userID)
	if err != nil {
		if errors.Is(err, conversation.ErrUnprovisioned) {
			shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: unprovisionedReply})
			return
		}
		shared.LogHandlerError(r, "failed to resolve credential", err)
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: genericFailureReply})
		return
	}

	// Long-form story work is deferred; the placeholder message carries the
	// visible state until the worker replaces it.
	if command == CommandStory {
		h.deferStory(w, r, task.ActionHandleStoryCommand, threadID, userText)
		return
	}
	if command == CommandNone && threadID != "" {
		active, err := h.service.ActiveStory(ctx, threadID)
		if err != nil {
			shared.LogHandlerError(r, "failed to check story state", err)
			shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: genericFailureReply})
			return
		}
		if active {
			h.deferStory(w, r, task.ActionProcessStoryMessage, threadID, userText)
			return
		}
	}

	if command == CommandImage {
		card, err := h.service.ImageCard(ctx, apiKey, userText)
		if err != nil {
			// Generation errors go back to the user verbatim, matching the
			// inline chat path.
			shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: err.Error()})
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, card)
		return
	}

	reply, err := h.service.ChatReply(ctx, apiKey, threadID, userText, command.Guidance())
	if err != nil {
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: err.Error()})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: reply})
}

// deferStory queues the story action and acknowledges with an empty body;
// the story itself arrives later through the placeholder update.
func (h *ChatHandler) deferStory(
	w http.ResponseWriter,
	r *http.Request,
	action task.Action,
	threadID, userText string,
) {
	if threadID == "" {
		// Stories need a durable thread, which only direct messages have.
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{
			Text: "Stories are only available in a direct message with me.",
		})
		return
	}

	if err := h.service.DeferStory(r.Context(), action, threadID, userText); err != nil {
		shared.LogHandlerError(r, "failed to defer story", err)
		shared.RespondWithJSON(w, r, http.StatusOK, TextResponse{Text: genericFailureReply})
		return
	}
	shared.RespondWithEmptyAck(w, r)
}
