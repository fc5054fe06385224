package api

import (
	"net/http"

	"github.com/fablebot/fable-api/internal/api/shared"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/service/conversation"
	"github.com/fablebot/fable-api/internal/task"
)

// TaskHandler serves the background execution endpoint the queue pushes
// tasks to. Authentication against the queue trust root happens in
// middleware; everything here runs on an already-verified request.
type TaskHandler struct {
	service *conversation.Service
}

// NewTaskHandler creates a TaskHandler backed by the conversation service.
func NewTaskHandler(service *conversation.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

// HandleTask executes one delivered task. Only a malformed payload is
// rejected (400, terminal); handler failures are acknowledged with 200 `{}`
// so the queue never retries on its own schedule — redelivery is tolerated,
// not solicited.
func (h *TaskHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var desc task.Descriptor
	if err := shared.DecodeJSON(r, &desc); err != nil {
		shared.RespondWithText(w, r, http.StatusBadRequest, "Malformed task payload")
		return
	}
	if err := shared.ValidateRequest(desc); err != nil {
		shared.LogHandlerError(r, "rejecting malformed task", err)
		shared.RespondWithText(w, r, http.StatusBadRequest, "Malformed task payload")
		return
	}

	log.Info("executing background task",
		"action", desc.Action,
		"thread_id", desc.ThreadID,
		"trace_id", shared.GetTraceID(ctx))

	apiKey, err := h.service.ResolveAPIKey(ctx, desc.UserID())
	if err != nil {
		// Includes the unprovisioned case: the user revoked their key after
		// the task was queued. There is nobody to reply to but the
		// placeholder, and without a credential nothing can be generated.
		shared.LogHandlerError(r, "failed to resolve credential for task", err)
		shared.RespondWithEmptyAck(w, r)
		return
	}

	switch desc.Action {
	case task.ActionHandleStoryCommand:
		err = h.service.StartStory(ctx, apiKey, desc.ThreadID, desc.UserText, desc.MessageID)
	case task.ActionProcessStoryMessage:
		err = h.service.ContinueStory(ctx, apiKey, desc.ThreadID, desc.UserText, desc.MessageID)
	}
	if err != nil {
		shared.LogHandlerError(r, "background task failed", err)
	}

	shared.RespondWithEmptyAck(w, r)
}
