package domain

import (
	"errors"
	"fmt"
	"time"
)

// Thread-specific validation errors
var (
	// ErrThreadIDEmpty is returned when a thread ID is empty.
	ErrThreadIDEmpty = errors.New("thread ID cannot be empty")

	// ErrThreadTypeInvalid is returned when a thread type is not one of the
	// known thread types.
	ErrThreadTypeInvalid = errors.New("thread type must be chat or story")

	// ErrMessageRoleInvalid is returned when a message carries an unknown role.
	ErrMessageRoleInvalid = errors.New("message role must be system, user or assistant")

	// ErrMessageContentEmpty is returned when a message has no content.
	ErrMessageContentEmpty = errors.New("message content cannot be empty")
)

// Role identifies the author of a conversation message.
type Role string

// The three roles the generation API understands.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of a conversation, in the shape the generation API
// consumes directly.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Validate checks if the message has valid data.
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return ErrMessageRoleInvalid
	}
	if m.Content == "" {
		return ErrMessageContentEmpty
	}
	return nil
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ThreadType tags what kind of conversation a thread holds.
type ThreadType string

const (
	// ThreadTypeChat is an ordinary assistant conversation.
	ThreadTypeChat ThreadType = "chat"

	// ThreadTypeStory is a long-form illustrated story conversation whose
	// turns are generated by the background worker.
	ThreadTypeStory ThreadType = "story"
)

// IsValid reports whether the thread type is one of the known types.
func (t ThreadType) IsValid() bool {
	return t == ThreadTypeChat || t == ThreadTypeStory
}

// Thread is a persisted conversation: an ordered message history plus
// metadata. At most one Thread exists per ID; every mutation replaces the
// full message sequence.
type Thread struct {
	ID        string     `json:"id"`
	Messages  []Message  `json:"messages"`
	Type      ThreadType `json:"thread_type"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewThread creates a thread shell for the given ID and type.
// Returns an error if validation fails.
func NewThread(id string, threadType ThreadType) (*Thread, error) {
	t := &Thread{
		ID:        id,
		Type:      threadType,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the thread has valid data.
func (t *Thread) Validate() error {
	if t.ID == "" {
		return ErrThreadIDEmpty
	}
	if !t.Type.IsValid() {
		return ErrThreadTypeInvalid
	}
	for _, m := range t.Messages {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ThreadID derives the deterministic conversation identifier for a direct
// message between a user and the bot. It requires no server-side generator:
// both the synchronous controller and the background worker can reconstruct
// it from the event alone.
func ThreadID(userID, spaceID string) string {
	return fmt.Sprintf("%s-%s", userID, spaceID)
}
