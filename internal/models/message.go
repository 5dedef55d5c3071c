package models

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	// SenderUser marks a message typed by the person using the widget.
	SenderUser Sender = "user"
	// SenderBot marks an assistant response, including the placeholder that is
	// filled in while a response streams.
	SenderBot Sender = "bot"
	// SenderSystem marks widget-generated notices such as validation and
	// failure messages.
	SenderSystem Sender = "system"
)

// Message is an individual entry in the widget's conversation. The message
// list is owned by the conversation reducer; everything else only reads it.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp time.Time

	StreamingState string
}

const (
	StreamingStateLoading   = "loading"
	StreamingStateStreaming = "streaming"
	StreamingStateEnded     = "ended"
)
