package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/store"
)

// PostgresThreadStore implements the store.ThreadStore interface using a
// PostgreSQL database as the storage backend. Messages are stored as a JSONB
// document keyed by thread id; saves replace the whole document.
type PostgresThreadStore struct {
	db store.DBTX
}

// NewPostgresThreadStore creates a new PostgreSQL implementation of the
// ThreadStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresThreadStore(db store.DBTX) *PostgresThreadStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresThreadStore{db: db}
}

// Ensure PostgresThreadStore implements store.ThreadStore
var _ store.ThreadStore = (*PostgresThreadStore)(nil)

// GetThread retrieves a conversation thread by its id.
// Returns store.ErrThreadNotFound if no record exists.
func (s *PostgresThreadStore) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT messages, thread_type, created_at
		FROM threads
		WHERE id = $1
	`

	var (
		rawMessages []byte
		threadType  string
		createdAt   time.Time
	)

	err := s.db.QueryRowContext(ctx, query, threadID).Scan(&rawMessages, &threadType, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrThreadNotFound
		}
		log.Error("failed to get thread",
			"thread_id", threadID,
			"error", err)
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	var messages []domain.Message
	if err := json.Unmarshal(rawMessages, &messages); err != nil {
		log.Error("failed to decode thread messages",
			"thread_id", threadID,
			"error", err)
		return nil, fmt.Errorf("failed to decode thread messages: %w", err)
	}

	return &domain.Thread{
		ID:        threadID,
		Messages:  messages,
		Type:      domain.ThreadType(threadType),
		CreatedAt: createdAt,
	}, nil
}

// SaveThread stores the full message history for a thread, replacing any
// existing record. The write is a single upsert, so concurrent savers
// resolve to one winner rather than a merged history.
func (s *PostgresThreadStore) SaveThread(
	ctx context.Context,
	threadID string,
	messages []domain.Message,
	threadType domain.ThreadType,
) error {
	log := logger.FromContext(ctx)

	if threadID == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrThreadIDEmpty)
	}
	if !threadType.IsValid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrThreadTypeInvalid)
	}
	for i := range messages {
		if err := messages[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}

	rawMessages, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode thread messages: %w", err)
	}

	query := `
		INSERT INTO threads (id, messages, thread_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id)
		DO UPDATE SET messages = $2, thread_type = $3, updated_at = $4
	`

	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, query, threadID, rawMessages, threadType, now); err != nil {
		log.Error("failed to save thread",
			"thread_id", threadID,
			"message_count", len(messages),
			"error", err)
		return fmt.Errorf("failed to save thread: %w", err)
	}

	log.Debug("saved thread",
		"thread_id", threadID,
		"thread_type", threadType,
		"message_count", len(messages))

	return nil
}
