package store

import (
	"context"

	"github.com/fablebot/fable-api/internal/domain"
)

// ThreadStore defines the interface for persisting conversation threads.
//
// Concurrent SaveThread calls for the same thread ID are not serialized by
// implementations; the design relies on the chat platform delivering the
// messages of one conversation in order, so at most one writer per thread is
// active at a time. This is an assumption, not an enforced invariant.
type ThreadStore interface {
	// GetThread retrieves the full thread record for the given ID.
	// Returns ErrThreadNotFound if no record exists; the message sequence is
	// always returned whole, never partially.
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)

	// SaveThread stores the complete message history for the thread,
	// creating the record if necessary and otherwise replacing the whole
	// sequence. At most one record exists per thread ID.
	SaveThread(
		ctx context.Context,
		threadID string,
		messages []domain.Message,
		threadType domain.ThreadType,
	) error
}
