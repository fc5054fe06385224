// Package googlechat provides the message types and REST client for sending
// and updating messages in Google Chat spaces.
package googlechat

// Message is the request and response body for the Chat messages API. Name
// is set by the API on create and identifies the message for later updates.
type Message struct {
	Name    string   `json:"name,omitempty"`
	Text    string   `json:"text,omitempty"`
	CardsV2 []CardV2 `json:"cardsV2,omitempty"`
}

// CardV2 wraps a card with its client-side identifier.
type CardV2 struct {
	CardID string `json:"cardId,omitempty"`
	Card   Card   `json:"card"`
}

// Card is a rich message card.
type Card struct {
	Header   *CardHeader `json:"header,omitempty"`
	Name     string      `json:"name,omitempty"`
	Sections []Section   `json:"sections,omitempty"`
}

// CardHeader is the title block at the top of a card.
type CardHeader struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Section groups widgets within a card.
type Section struct {
	Header  string   `json:"header,omitempty"`
	Widgets []Widget `json:"widgets,omitempty"`
}

// Widget is a single card element. Exactly one field is set.
type Widget struct {
	TextParagraph *TextParagraph `json:"textParagraph,omitempty"`
	Image         *Image         `json:"image,omitempty"`
	DecoratedText *DecoratedText `json:"decoratedText,omitempty"`
}

// TextParagraph is a block of text.
type TextParagraph struct {
	Text string `json:"text"`
}

// Image is an embedded image widget.
type Image struct {
	ImageURL string   `json:"imageUrl"`
	OnClick  *OnClick `json:"onClick,omitempty"`
	AltText  string   `json:"altText,omitempty"`
}

// OnClick attaches a click action to a widget.
type OnClick struct {
	OpenLink *OpenLink `json:"openLink,omitempty"`
}

// OpenLink opens a URL when its widget is clicked.
type OpenLink struct {
	URL string `json:"url"`
}

// DecoratedText is a labelled text row with an optional leading icon.
type DecoratedText struct {
	Text      string `json:"text"`
	TopLabel  string `json:"topLabel,omitempty"`
	WrapText  bool   `json:"wrapText,omitempty"`
	StartIcon *Icon  `json:"startIcon,omitempty"`
}

// Icon references a built-in Chat icon by name.
type Icon struct {
	KnownIcon string `json:"knownIcon"`
}
