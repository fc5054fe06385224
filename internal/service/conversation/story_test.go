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
	"github.com/fablebot/fable-api/internal/platform/googlechat"
)

// scriptCompletions makes the generator answer each call in order.
func scriptCompletions(f *fixture, replies ...string) {
	i := 0
	f.generator.CompleteFn = func(_ context.Context, _ string, _ []domain.Message) (string, error) {
		if i >= len(replies) {
			return "", fmt.Errorf("unexpected completion call %d", i)
		}
		reply := replies[i]
		i++
		return reply, nil
	}
}

func TestStartStory(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	scriptCompletions(f, "The Pirate Who Feared Water", "Chapter one text", "a pirate cowering on a beach")
	f.generator.ImageURL = "https://img.example/chapter1.png"

	err := f.service.StartStory(context.Background(), "sk-key", "123-456", "a pirate adventure", "spaces/456/messages/9")
	require.NoError(t, err)

	// Three completions: title, chapter, image prompt derivation.
	require.Len(t, f.generator.CompleteCalls, 3)

	titleReq := f.generator.CompleteCalls[0].Messages
	require.Len(t, titleReq, 1)
	assert.Contains(t, titleReq[0].Content, "witty title for the story")
	assert.Contains(t, titleReq[0].Content, "a pirate adventure")

	chapterReq := f.generator.CompleteCalls[1].Messages
	require.Len(t, chapterReq, 1)
	assert.Contains(t, chapterReq[0].Content, "choose your own adventure book")
	assert.Contains(t, chapterReq[0].Content, "a pirate adventure")

	// Image prompt derivation sees the chapter plus the derivation request,
	// and the derivation turn is not persisted.
	imagePromptReq := f.generator.CompleteCalls[2].Messages
	require.Len(t, imagePromptReq, 3)
	assert.Contains(t, imagePromptReq[2].Content, "maximum of 30 words")

	require.Len(t, f.generator.ImageCalls, 1)
	assert.True(t, strings.HasPrefix(f.generator.ImageCalls[0].Prompt, "a pirate cowering on a beach"))
	assert.Contains(t, f.generator.ImageCalls[0].Prompt, "children's book in the style of an acrylic painting")

	// Stored history: the story prompt and the assistant chapter.
	stored := f.threads.Threads["123-456"]
	require.NotNil(t, stored)
	assert.Equal(t, domain.ThreadTypeStory, stored.Type)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, "Chapter one text", stored.Messages[1].Content)

	// The placeholder was replaced with title, illustration, chapter text.
	require.Len(t, f.messenger.UpdateCalls, 1)
	update := f.messenger.UpdateCalls[0]
	assert.Equal(t, "spaces/456/messages/9", update.MessageName)

	widgets := update.Message.CardsV2[0].Card.Sections[0].Widgets
	require.Len(t, widgets, 3)
	assert.Equal(t, "<b>The Pirate Who Feared Water</b>", widgets[0].DecoratedText.Text)
	assert.Equal(t, "https://img.example/chapter1.png", widgets[1].Image.ImageURL)
	assert.Equal(t, "Chapter one text", widgets[2].TextParagraph.Text)
}

func TestStartStoryPersistsBeforeUpdating(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	var order []string
	f.threads.SaveThreadFn = func(_ context.Context, _ string, _ []domain.Message, _ domain.ThreadType) error {
		order = append(order, "persist")
		return nil
	}
	f.messenger.UpdateMessageFn = func(_ context.Context, _ string, _ googlechat.Message) error {
		order = append(order, "update")
		return nil
	}

	err := f.service.StartStory(context.Background(), "sk-key", "123-456", "topic", "spaces/456/messages/9")
	require.NoError(t, err)
	require.Equal(t, []string{"persist", "update"}, order)
}

func TestStartStoryDoesNotUpdateWhenPersistFails(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.SaveError = errors.New("database is down")

	err := f.service.StartStory(context.Background(), "sk-key", "123-456", "topic", "spaces/456/messages/9")
	require.Error(t, err)
	assert.Empty(t, f.messenger.UpdateCalls, "the visible message must not be updated if persistence failed")
}

func TestContinueStory(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeStory,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "story prompt"},
			{Role: domain.RoleAssistant, Content: "chapter one"},
		},
	}
	scriptCompletions(f, "Chapter two text", "an image prompt")

	err := f.service.ContinueStory(context.Background(), "sk-key", "123-456", "take the left path", "spaces/456/messages/9")
	require.NoError(t, err)

	stored := f.threads.Threads["123-456"].Messages
	require.Len(t, stored, 4)
	assert.Equal(t, "take the left path", stored[2].Content)
	assert.Equal(t, "Chapter two text", stored[3].Content)

	// A mid-story chapter has no ending marker.
	widgets := f.messenger.UpdateCalls[0].Message.CardsV2[0].Card.Sections[0].Widgets
	require.Len(t, widgets, 2)
}

func TestContinueStoryWrapsUpAfterFourChoices(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	// Eight stored messages: the next option must force the ending.
	history := make([]domain.Message, 0, 8)
	for i := 0; i < 4; i++ {
		history = append(history,
			domain.Message{Role: domain.RoleUser, Content: fmt.Sprintf("choice %d", i)},
			domain.Message{Role: domain.RoleAssistant, Content: fmt.Sprintf("chapter %d", i)},
		)
	}
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:       "123-456",
		Type:     domain.ThreadTypeStory,
		Messages: history,
	}
	scriptCompletions(f, "The final chapter", "an image prompt")

	err := f.service.ContinueStory(context.Background(), "sk-key", "123-456", "slay the dragon", "spaces/456/messages/9")
	require.NoError(t, err)

	stored := f.threads.Threads["123-456"].Messages
	require.Len(t, stored, 10)
	assert.Equal(t, "End the story with this option: slay the dragon", stored[8].Content)

	// The ten-message story closes with the ending marker.
	widgets := f.messenger.UpdateCalls[0].Message.CardsV2[0].Card.Sections[0].Widgets
	require.Len(t, widgets, 3)
	assert.Equal(t, "<b>The End</b>", widgets[2].DecoratedText.Text)
}

func TestContinueStoryMissingThread(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})

	err := f.service.ContinueStory(context.Background(), "sk-key", "123-456", "option", "spaces/456/messages/9")
	require.Error(t, err)
	assert.Empty(t, f.messenger.UpdateCalls)
}

func TestContinueStoryRedeliveryKeepsHistoryWellFormed(t *testing.T) {
	t.Parallel()

	f := newFixture(Config{})
	f.threads.Threads["123-456"] = &domain.Thread{
		ID:   "123-456",
		Type: domain.ThreadTypeStory,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "story prompt"},
			{Role: domain.RoleAssistant, Content: "chapter one"},
		},
	}
	scriptCompletions(f, "Chapter two", "prompt", "Chapter two again", "prompt again")

	ctx := context.Background()
	require.NoError(t, f.service.ContinueStory(ctx, "sk-key", "123-456", "left path", "spaces/456/messages/9"))
	require.NoError(t, f.service.ContinueStory(ctx, "sk-key", "123-456", "left path", "spaces/456/messages/9"))

	// Each run appends exactly one exchange; redelivery lengthens the story
	// but never corrupts the role alternation.
	stored := f.threads.Threads["123-456"].Messages
	require.Len(t, stored, 6)
	for i, m := range stored {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role, "message %d", i)
		} else {
			assert.Equal(t, domain.RoleAssistant, m.Role, "message %d", i)
		}
	}
}
