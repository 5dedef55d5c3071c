package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/lionrocklabs/chat-widget/internal/models"
)

// Conversation owns a widget's ordered message list and the per-exchange
// session state. It is the only writer of the list; the UI layer reads
// snapshots through Messages. At most one bot placeholder is open at a time:
// the one most recently appended by Begin, repeatedly overwritten until the
// exchange ends.
//
// Conversation is not safe for concurrent use; the session controller
// serializes access to it.
type Conversation struct {
	messages []models.Message

	// lastBotText mirrors the text currently rendered in the open
	// placeholder. Snapshots only ever supersede it, never regress.
	lastBotText string

	receivedValidResponse bool
	terminal              bool
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Messages returns a copy of the message list.
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ReceivedValidResponse reports whether at least one valid text frame was
// applied in the current exchange.
func (c *Conversation) ReceivedValidResponse() bool {
	return c.receivedValidResponse
}

// Terminal reports whether the current exchange has ended. No further frames
// are applied once it has.
func (c *Conversation) Terminal() bool {
	return c.terminal
}

// Begin opens a new exchange: it appends the user's message followed by
// exactly one empty bot placeholder representing the response in flight, and
// resets the per-exchange flags. The placeholder exists before the first frame
// arrives so the UI can show a pending indicator immediately.
func (c *Conversation) Begin(userText string) {
	c.receivedValidResponse = false
	c.terminal = false
	c.lastBotText = ""
	c.messages = append(c.messages,
		models.Message{
			ID:             uuid.New().String(),
			Sender:         models.SenderUser,
			Text:           userText,
			Timestamp:      time.Now(),
			StreamingState: models.StreamingStateEnded,
		},
		models.Message{
			ID:             uuid.New().String(),
			Sender:         models.SenderBot,
			Timestamp:      time.Now(),
			StreamingState: models.StreamingStateLoading,
		},
	)
}

// AppendSystem appends a widget-generated notice outside of any exchange.
func (c *Conversation) AppendSystem(text string) {
	c.messages = append(c.messages, models.Message{
		ID:             uuid.New().String(),
		Sender:         models.SenderSystem,
		Text:           text,
		Timestamp:      time.Now(),
		StreamingState: models.StreamingStateEnded,
	})
}

// Apply folds one classified frame into the message list and reports whether
// anything changed. Frames arriving after the exchange turned terminal are
// dropped.
func (c *Conversation) Apply(f Frame) bool {
	if c.terminal {
		return false
	}
	switch f.Kind {
	case KindText, KindLegacyText:
		c.setBotText(f.Text)
		c.receivedValidResponse = true
		return true
	case KindError:
		c.fail(f.Text)
		c.terminal = true
		return true
	case KindDone:
		c.terminal = true
		return false
	default:
		return false
	}
}

// setBotText overwrites the open placeholder with the latest full snapshot.
// Overwrite, never concatenate: re-applying the same frame is a no-op, and a
// later snapshot simply supersedes an earlier one.
func (c *Conversation) setBotText(text string) {
	last := len(c.messages) - 1
	if last < 0 || c.messages[last].Sender != models.SenderBot {
		return
	}
	c.messages[last].Text = text
	c.messages[last].StreamingState = models.StreamingStateStreaming
	c.lastBotText = text
}

// fail records an explicit error frame: the open placeholder's text is
// replaced with the message, or a system message is appended when no
// placeholder is open.
func (c *Conversation) fail(msg string) {
	last := len(c.messages) - 1
	if last >= 0 && c.messages[last].Sender == models.SenderBot {
		c.messages[last].Text = msg
		c.messages[last].StreamingState = models.StreamingStateEnded
		c.lastBotText = msg
		return
	}
	c.AppendSystem(msg)
}

// FailTransport records a transport-level failure. Unlike an explicit error
// frame it never discards text that already streamed in: the message goes into
// the placeholder only while it is still empty, otherwise a system message is
// appended. The exchange turns terminal either way.
func (c *Conversation) FailTransport(msg string) {
	c.terminal = true
	last := len(c.messages) - 1
	if last >= 0 && c.messages[last].Sender == models.SenderBot {
		c.messages[last].StreamingState = models.StreamingStateEnded
		if c.messages[last].Text == "" {
			c.messages[last].Text = msg
			c.lastBotText = msg
			return
		}
	}
	c.AppendSystem(msg)
}

// End closes the exchange: the loading indicator stops, and a placeholder that
// never received any text gets the fallback message so it is not left blank.
// An empty fallback leaves the text untouched.
func (c *Conversation) End(fallback string) {
	c.terminal = true
	last := len(c.messages) - 1
	if last < 0 || c.messages[last].Sender != models.SenderBot {
		return
	}
	if c.messages[last].Text == "" && fallback != "" {
		c.messages[last].Text = fallback
		c.lastBotText = fallback
	}
	c.messages[last].StreamingState = models.StreamingStateEnded
}
