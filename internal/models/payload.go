package models

// PayloadKind selects the outbound payload variant a channel adapter renders.
type PayloadKind string

const (
	// PayloadText is a plain text message.
	PayloadText PayloadKind = "text"
	// PayloadLink is a message with a single link button.
	PayloadLink PayloadKind = "link"
	// PayloadChoices is a message with multiple buttons (links or postbacks).
	PayloadChoices PayloadKind = "choices"
	// PayloadQuickReplies is a message with tappable reply chips.
	PayloadQuickReplies PayloadKind = "quick_replies"
	// PayloadList is a list/carousel of options.
	PayloadList PayloadKind = "list"
)

// Button is a single selectable button. URL buttons open a link; buttons
// without a URL post Data back as the user's next message.
type Button struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Data  string `json:"data,omitempty"`
}

// ListItem is one entry of a list payload.
type ListItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Payload is a channel-agnostic outbound message. Adapters render the
// richest native widget their platform offers and degrade to formatted text
// otherwise.
type Payload struct {
	Kind         PayloadKind `json:"kind"`
	Text         string      `json:"text"`
	Buttons      []Button    `json:"buttons,omitempty"`
	QuickReplies []string    `json:"quick_replies,omitempty"`
	Items        []ListItem  `json:"items,omitempty"`
}

// TextPayload returns a plain text payload.
func TextPayload(text string) Payload {
	return Payload{Kind: PayloadText, Text: text}
}

// LinkPayload returns a single-button link payload.
func LinkPayload(text, title, url string) Payload {
	return Payload{Kind: PayloadLink, Text: text, Buttons: []Button{{Title: title, URL: url}}}
}

// ChoicesPayload returns a multi-button payload.
func ChoicesPayload(text string, buttons ...Button) Payload {
	return Payload{Kind: PayloadChoices, Text: text, Buttons: buttons}
}

// QuickRepliesPayload returns a quick-reply chip payload.
func QuickRepliesPayload(text string, replies ...string) Payload {
	return Payload{Kind: PayloadQuickReplies, Text: text, QuickReplies: replies}
}

// ListPayload returns a list payload.
func ListPayload(text string, items ...ListItem) Payload {
	return Payload{Kind: PayloadList, Text: text, Items: items}
}
