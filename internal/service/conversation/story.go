package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fablebot/fable-api/internal/domain"
	"github.com/fablebot/fable-api/internal/platform/googlechat"
	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/store"
)

// Story generation prompts. The wording is part of the product; change it
// and the stories change character.
const (
	storyTitlePrompt = "The following text was given as the topic of a story. Please " +
		"come up with a witty title for the story. It should be no longer " +
		"than 8 words: %s"

	storyFirstSectionPrompt = "Write the first section of a story in the style of a " +
		"'choose your own adventure book'. Each section should be 3 " +
		"paragraphs, and then offer 3 choices for the reader to continue. " +
		"The story should be based on the following suggestion: %s"

	storyImagePrompt = "Write a prompt with a maximum of 30 words to create an " +
		"illustrated image for this most recent part of the story:\r\n %s"

	storyImageStyleSuffix = ". This should be an illustration " +
		"for a children's book in the style of an acrylic painting."

	storyEndingPrefix = "End the story with this option: %s"
)

// Story length rules, counted in stored messages. After four reader choices
// the next option is forced to end the story, and the chapter generated
// from it closes with the ending marker.
const (
	storyWrapUpLength = 8
	storyFinalLength  = 10
)

// StartStory generates the opening chapter for the user's topic, persists
// the new story thread, and replaces the placeholder message with the
// rendered card.
func (s *Service) StartStory(ctx context.Context, apiKey, threadID, userText, messageID string) error {
	log := logger.FromContext(ctx)

	titleRequest := []domain.Message{
		domain.NewMessage(domain.RoleUser, fmt.Sprintf(storyTitlePrompt, userText)),
	}
	title, err := s.generator.Complete(ctx, apiKey, titleRequest)
	if err != nil {
		return fmt.Errorf("failed to generate story title: %w", err)
	}

	messages := []domain.Message{
		domain.NewMessage(domain.RoleUser, fmt.Sprintf(storyFirstSectionPrompt, userText)),
	}

	chapterWidgets, messages, err := s.storyChapter(ctx, apiKey, messages)
	if err != nil {
		return err
	}

	// Persist before the visible update: a crash between the two leaves a
	// stored story the user has not seen yet, which a redelivery repairs.
	if err := s.threads.SaveThread(ctx, threadID, messages, domain.ThreadTypeStory); err != nil {
		return fmt.Errorf("failed to persist story thread: %w", err)
	}

	widgets := append([]googlechat.Widget{googlechat.StoryTitleWidget(title)}, chapterWidgets...)
	if err := s.messenger.UpdateMessage(ctx, messageID, googlechat.NewStoryCard(widgets)); err != nil {
		return fmt.Errorf("failed to update story message: %w", err)
	}

	log.Info("started story",
		"thread_id", threadID,
		"message_count", len(messages))
	return nil
}

// ContinueStory extends the stored story with the user's chosen option,
// persists the longer history, and replaces the placeholder message with
// the new chapter card.
func (s *Service) ContinueStory(ctx context.Context, apiKey, threadID, userText, messageID string) error {
	log := logger.FromContext(ctx)

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrThreadNotFound) {
			return fmt.Errorf("story thread %s not found: %w", threadID, err)
		}
		return fmt.Errorf("failed to load story thread: %w", err)
	}
	messages := thread.Messages

	// After four choices the next option wraps the story up.
	if len(messages) == storyWrapUpLength {
		userText = fmt.Sprintf(storyEndingPrefix, userText)
	}

	messages = append(messages, domain.NewMessage(domain.RoleUser, userText))

	chapterWidgets, messages, err := s.storyChapter(ctx, apiKey, messages)
	if err != nil {
		return err
	}

	if err := s.threads.SaveThread(ctx, threadID, messages, domain.ThreadTypeStory); err != nil {
		return fmt.Errorf("failed to persist story thread: %w", err)
	}

	if err := s.messenger.UpdateMessage(ctx, messageID, googlechat.NewStoryCard(chapterWidgets)); err != nil {
		return fmt.Errorf("failed to update story message: %w", err)
	}

	log.Info("continued story",
		"thread_id", threadID,
		"message_count", len(messages))
	return nil
}

// storyChapter generates the next chapter from the history, appends the
// assistant turn, and renders the chapter's widgets: an illustration
// followed by the text, closed with the ending marker on the final chapter.
func (s *Service) storyChapter(
	ctx context.Context,
	apiKey string,
	messages []domain.Message,
) ([]googlechat.Widget, []domain.Message, error) {
	log := logger.FromContext(ctx)

	chapterText, err := s.generator.Complete(ctx, apiKey, messages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate story chapter: %w", err)
	}
	messages = append(messages, domain.NewMessage(domain.RoleAssistant, chapterText))

	// The image prompt is derived with the full story as context, but the
	// derivation turn itself is not kept in the history.
	imageRequest := make([]domain.Message, len(messages), len(messages)+1)
	copy(imageRequest, messages)
	imageRequest = append(imageRequest,
		domain.NewMessage(domain.RoleUser, fmt.Sprintf(storyImagePrompt, chapterText)))

	imagePrompt, err := s.generator.Complete(ctx, apiKey, imageRequest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate image prompt: %w", err)
	}
	imagePrompt += storyImageStyleSuffix
	log.Info("story chapter image prompt", "prompt", imagePrompt)

	imageURL, err := s.generator.CreateImage(ctx, apiKey, imagePrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate chapter illustration: %w", err)
	}

	final := len(messages) == storyFinalLength
	return googlechat.StoryChapterWidgets(imageURL, chapterText, final), messages, nil
}
