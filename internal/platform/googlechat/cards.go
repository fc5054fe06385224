package googlechat

import (
	"fmt"
	"math/rand"
)

const cardIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// storyCardID is the fixed card id used for all story messages so that
// successive updates replace the same card.
const storyCardID = "story-card"

// randomCardID returns a 25-character alphanumeric card identifier.
func randomCardID() string {
	b := make([]byte, 25)
	for i := range b {
		b[i] = cardIDAlphabet[rand.Intn(len(cardIDAlphabet))]
	}
	return string(b)
}

// NewTextMessage builds a plain text message.
func NewTextMessage(text string) Message {
	return Message{Text: text}
}

// NewImageCard builds a card presenting a generated image under a titled
// section. Clicking the image opens the full-size URL.
func NewImageCard(title, imageURL string) Message {
	altText := fmt.Sprintf("%s - Generated by DALL-E", title)
	return Message{
		CardsV2: []CardV2{
			{
				CardID: randomCardID(),
				Card: Card{
					Sections: []Section{
						{
							Header: title,
							Widgets: []Widget{
								{
									Image: &Image{
										ImageURL: imageURL,
										OnClick:  &OnClick{OpenLink: &OpenLink{URL: imageURL}},
										AltText:  altText,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// StoryTitleWidget builds the bolded title row that leads the first story
// card.
func StoryTitleWidget(title string) Widget {
	return Widget{
		DecoratedText: &DecoratedText{
			Text:     fmt.Sprintf("<b>%s</b>", title),
			WrapText: true,
		},
	}
}

// StoryChapterWidgets builds the widgets for one story chapter: the
// illustration followed by the chapter text, with a closing marker when the
// story has ended.
func StoryChapterWidgets(imageURL, chapterText string, final bool) []Widget {
	widgets := []Widget{
		{Image: &Image{ImageURL: imageURL}},
		{TextParagraph: &TextParagraph{Text: chapterText}},
	}
	if final {
		widgets = append(widgets, Widget{
			DecoratedText: &DecoratedText{
				Text:      "<b>The End</b>",
				StartIcon: &Icon{KnownIcon: "BOOKMARK"},
			},
		})
	}
	return widgets
}

// NewStoryCard wraps story widgets in a single-section card message.
func NewStoryCard(widgets []Widget) Message {
	return Message{
		CardsV2: []CardV2{
			{
				CardID: storyCardID,
				Card: Card{
					Sections: []Section{{Widgets: widgets}},
				},
			},
		},
	}
}
