package api

import (
	"encoding/json"
	"strings"

	"github.com/fablebot/fable-api/internal/domain"
)

// Event types sent by the chat platform.
const (
	EventTypeAddedToSpace     = "ADDED_TO_SPACE"
	EventTypeRemovedFromSpace = "REMOVED_FROM_SPACE"
	EventTypeMessage          = "MESSAGE"
)

// Space types as they appear on the wire. Membership events carry the short
// form in space.type; message events carry space.spaceType.
const (
	SpaceTypeRoom          = "ROOM"
	SpaceTypeDM            = "DM"
	SpaceTypeDirectMessage = "DIRECT_MESSAGE"
)

// ChatEvent is the webhook envelope for all chat platform events.
type ChatEvent struct {
	Type    string       `json:"type"`
	Space   EventSpace   `json:"space"`
	User    EventUser    `json:"user"`
	Message *EventMessage `json:"message,omitempty"`
}

// EventSpace describes the space an event occurred in.
type EventSpace struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	SpaceType string `json:"spaceType,omitempty"`
}

// EventUser describes the user behind an event.
type EventUser struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// EventMessage carries the message content of a MESSAGE event.
type EventMessage struct {
	Name         string        `json:"name,omitempty"`
	ArgumentText string        `json:"argumentText,omitempty"`
	SlashCommand *SlashCommand `json:"slashCommand,omitempty"`
}

// SlashCommand identifies an invoked slash command. The platform serializes
// the id as a string; json.Number tolerates both encodings.
type SlashCommand struct {
	CommandID json.Number `json:"commandId"`
}

// UserID returns the bare user id from the resource name "users/123".
func (e *ChatEvent) UserID() string {
	return resourceID(e.User.Name)
}

// SpaceID returns the bare space id from the resource name "spaces/456".
func (e *ChatEvent) SpaceID() string {
	return resourceID(e.Space.Name)
}

// ThreadID returns the conversation identifier for the event, or "" when
// the event is not a direct message. Group spaces stay stateless.
func (e *ChatEvent) ThreadID() string {
	if e.Space.SpaceType != SpaceTypeDirectMessage {
		return ""
	}
	return domain.ThreadID(e.UserID(), e.SpaceID())
}

// Command resolves the slash command invoked by the event, or CommandNone.
func (e *ChatEvent) Command() Command {
	if e.Message == nil || e.Message.SlashCommand == nil {
		return CommandNone
	}
	id, err := e.Message.SlashCommand.CommandID.Int64()
	if err != nil {
		return CommandNone
	}
	return CommandFromID(int(id))
}

// ArgumentText returns the user's text with the bot mention stripped by the
// platform.
func (e *ChatEvent) ArgumentText() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.ArgumentText
}

// resourceID returns the id segment of a "collection/id" resource name.
func resourceID(name string) string {
	if _, id, found := strings.Cut(name, "/"); found {
		return id
	}
	return name
}

// TextResponse is the inline `{text}` webhook reply.
type TextResponse struct {
	Text string `json:"text"`
}
