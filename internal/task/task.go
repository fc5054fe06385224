// Package task implements the durable background queue for long-running
// conversation work. Tasks are persisted before delivery and pushed to the
// worker endpoint over HTTP with a signed identity token, giving at-least-once
// execution across process restarts.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action identifies the background operation a task carries.
type Action string

// Background actions.
const (
	// ActionHandleStoryCommand starts a new story from the user's topic.
	ActionHandleStoryCommand Action = "handle_story_command"

	// ActionProcessStoryMessage continues an existing story with the user's
	// chosen option.
	ActionProcessStoryMessage Action = "process_story_message"
)

// Status represents the lifecycle state of a queued task.
type Status string

// Task statuses.
const (
	// StatusPending indicates the task is waiting for delivery.
	StatusPending Status = "pending"

	// StatusDelivering indicates a worker is pushing the task to the
	// execution endpoint.
	StatusDelivering Status = "delivering"

	// StatusCompleted indicates the execution endpoint acknowledged the task.
	StatusCompleted Status = "completed"

	// StatusFailed indicates delivery was abandoned after repeated attempts.
	StatusFailed Status = "failed"
)

// Error definitions for task validation.
var (
	ErrUnknownAction    = errors.New("unknown task action")
	ErrEmptyThreadID    = errors.New("task thread id cannot be empty")
	ErrMalformedThread  = errors.New("task thread id is not of the form userID-spaceID")
	ErrEmptyMessageID   = errors.New("task message id cannot be empty")
	ErrEmptyUserText    = errors.New("task user text cannot be empty")
)

// Descriptor is the wire payload delivered to the execution endpoint. Field
// names are part of the queue contract and must not change.
type Descriptor struct {
	// Background marks the payload as queue-originated. Always true on
	// payloads this package produces.
	Background bool `json:"background_task"`

	// Action selects the operation to run.
	Action Action `json:"action"`

	// ThreadID identifies the conversation, encoded as "userID-spaceID".
	ThreadID string `json:"thread_id"`

	// UserText is the user input the operation consumes.
	UserText string `json:"user_text"`

	// MessageID is the resource name of the placeholder message the
	// operation updates with its result.
	MessageID string `json:"message_id_to_update"`
}

// NewDescriptor builds a queue payload for the given action.
func NewDescriptor(action Action, threadID, userText, messageID string) Descriptor {
	return Descriptor{
		Background: true,
		Action:     action,
		ThreadID:   threadID,
		UserText:   userText,
		MessageID:  messageID,
	}
}

// Validate checks the descriptor is complete and well-formed. Payloads that
// fail validation are terminal; they must never be retried.
func (d Descriptor) Validate() error {
	switch d.Action {
	case ActionHandleStoryCommand, ActionProcessStoryMessage:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, d.Action)
	}

	if d.ThreadID == "" {
		return ErrEmptyThreadID
	}
	if !strings.Contains(d.ThreadID, "-") {
		return ErrMalformedThread
	}
	if d.UserText == "" {
		return ErrEmptyUserText
	}
	if d.MessageID == "" {
		return ErrEmptyMessageID
	}
	return nil
}

// UserID returns the user portion of the thread id.
func (d Descriptor) UserID() string {
	userID, _, _ := strings.Cut(d.ThreadID, "-")
	return userID
}

// SpaceName returns the full resource name of the thread's space.
func (d Descriptor) SpaceName() string {
	_, spaceID, _ := strings.Cut(d.ThreadID, "-")
	return "spaces/" + spaceID
}

// Record is a task's durable representation.
type Record struct {
	ID           uuid.UUID
	Descriptor   Descriptor
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewRecord creates a pending record for the descriptor.
func NewRecord(d Descriptor) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:         uuid.New(),
		Descriptor: d,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store defines the persistence operations needed by the dispatcher.
type Store interface {
	// SaveTask persists a new task record.
	SaveTask(ctx context.Context, record *Record) error

	// UpdateTaskStatus transitions a task's status. A missing task is a
	// no-op, not an error.
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error

	// GetPendingTasks returns all tasks awaiting delivery, oldest first.
	GetPendingTasks(ctx context.Context) ([]*Record, error)

	// GetDeliveringTasks returns tasks stuck in the delivering state for
	// longer than olderThan, oldest first.
	GetDeliveringTasks(ctx context.Context, olderThan time.Duration) ([]*Record, error)
}

// Enqueuer is the narrow interface handlers use to defer work.
type Enqueuer interface {
	Enqueue(ctx context.Context, d Descriptor) error
}
