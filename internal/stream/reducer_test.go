package stream_test

import (
	"testing"

	"github.com/lionrocklabs/chat-widget/internal/models"
	"github.com/lionrocklabs/chat-widget/internal/stream"
)

func lastMessage(t *testing.T, c *stream.Conversation) models.Message {
	t.Helper()
	msgs := c.Messages()
	if len(msgs) == 0 {
		t.Fatal("conversation is empty")
	}
	return msgs[len(msgs)-1]
}

func TestBeginAppendsSinglePlaceholder(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hello")

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[0].Sender != models.SenderUser || msgs[0].Text != "hello" {
		t.Errorf("first message = %+v, want user %q", msgs[0], "hello")
	}
	if msgs[1].Sender != models.SenderBot || msgs[1].Text != "" {
		t.Errorf("placeholder = %+v, want empty bot message", msgs[1])
	}
	if msgs[1].StreamingState != models.StreamingStateLoading {
		t.Errorf("placeholder state = %q, want %q", msgs[1].StreamingState, models.StreamingStateLoading)
	}

	botCount := 0
	for _, m := range msgs {
		if m.Sender == models.SenderBot {
			botCount++
		}
	}
	if botCount != 1 {
		t.Errorf("open bot placeholders = %d, want 1", botCount)
	}
}

func TestApplyOverwritesSnapshot(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	conv.Apply(stream.Frame{Kind: stream.KindText, Text: "Hi"})
	conv.Apply(stream.Frame{Kind: stream.KindText, Text: "Hi there"})

	if got := lastMessage(t, conv).Text; got != "Hi there" {
		t.Errorf("bot text = %q, want %q", got, "Hi there")
	}
	if len(conv.Messages()) != 2 {
		t.Errorf("len(messages) = %d, want 2 (no duplicate placeholder)", len(conv.Messages()))
	}
	if !conv.ReceivedValidResponse() {
		t.Error("ReceivedValidResponse() = false, want true")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	frame := stream.Frame{Kind: stream.KindText, Text: "Hi there"}
	conv.Apply(frame)
	once := lastMessage(t, conv).Text
	conv.Apply(frame)
	twice := lastMessage(t, conv).Text

	if once != twice || twice != "Hi there" {
		t.Errorf("text after duplicate frame = %q, want %q", twice, once)
	}
}

func TestApplyLegacyText(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	conv.Apply(stream.Frame{Kind: stream.KindLegacyText, Text: "plain text reply"})
	conv.Apply(stream.Frame{Kind: stream.KindDone})

	if got := lastMessage(t, conv).Text; got != "plain text reply" {
		t.Errorf("bot text = %q, want %q", got, "plain text reply")
	}
	if !conv.Terminal() {
		t.Error("Terminal() = false after [DONE]")
	}
}

func TestApplyErrorReplacesPlaceholder(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	conv.Apply(stream.Frame{Kind: stream.KindError, Text: "Daily limit reached"})

	last := lastMessage(t, conv)
	if last.Sender != models.SenderBot || last.Text != "Daily limit reached" {
		t.Errorf("last message = %+v, want bot %q", last, "Daily limit reached")
	}
	if !conv.Terminal() {
		t.Error("Terminal() = false after error frame")
	}
	if conv.ReceivedValidResponse() {
		t.Error("ReceivedValidResponse() = true, want false")
	}
}

func TestApplyErrorWithoutPlaceholderAppendsSystem(t *testing.T) {
	conv := stream.NewConversation()

	conv.Apply(stream.Frame{Kind: stream.KindError, Text: "boom"})

	last := lastMessage(t, conv)
	if last.Sender != models.SenderSystem || last.Text != "boom" {
		t.Errorf("last message = %+v, want system %q", last, "boom")
	}
}

func TestApplyDropsFramesAfterTerminal(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	conv.Apply(stream.Frame{Kind: stream.KindText, Text: "first"})
	conv.Apply(stream.Frame{Kind: stream.KindError, Text: "stop"})
	if conv.Apply(stream.Frame{Kind: stream.KindText, Text: "late"}) {
		t.Error("Apply() after terminal reported a change")
	}

	if got := lastMessage(t, conv).Text; got != "stop" {
		t.Errorf("bot text = %q, want %q", got, "stop")
	}
}

func TestApplyUnrecognizedIsNoop(t *testing.T) {
	conv := stream.NewConversation()
	conv.Begin("hi")

	before := conv.Messages()
	if conv.Apply(stream.Frame{Kind: stream.KindUnrecognized}) {
		t.Error("Apply(unrecognized) reported a change")
	}
	after := conv.Messages()
	if len(before) != len(after) || after[len(after)-1].Text != before[len(before)-1].Text {
		t.Error("unrecognized frame mutated the conversation")
	}
}

func TestFailTransport(t *testing.T) {
	t.Run("empty placeholder is overwritten", func(t *testing.T) {
		conv := stream.NewConversation()
		conv.Begin("hi")

		conv.FailTransport("connection lost")

		last := lastMessage(t, conv)
		if last.Sender != models.SenderBot || last.Text != "connection lost" {
			t.Errorf("last message = %+v, want bot %q", last, "connection lost")
		}
	})

	t.Run("streamed text is preserved", func(t *testing.T) {
		conv := stream.NewConversation()
		conv.Begin("hi")
		conv.Apply(stream.Frame{Kind: stream.KindText, Text: "partial answer"})

		conv.FailTransport("connection lost")

		msgs := conv.Messages()
		if got := msgs[len(msgs)-2].Text; got != "partial answer" {
			t.Errorf("bot text = %q, want %q", got, "partial answer")
		}
		if got := msgs[len(msgs)-2].StreamingState; got != models.StreamingStateEnded {
			t.Errorf("bot state = %q, want %q", got, models.StreamingStateEnded)
		}
		last := msgs[len(msgs)-1]
		if last.Sender != models.SenderSystem || last.Text != "connection lost" {
			t.Errorf("last message = %+v, want system %q", last, "connection lost")
		}
	})
}

func TestEnd(t *testing.T) {
	t.Run("stops the loading indicator", func(t *testing.T) {
		conv := stream.NewConversation()
		conv.Begin("hi")
		conv.Apply(stream.Frame{Kind: stream.KindText, Text: "answer"})

		conv.End("fallback")

		last := lastMessage(t, conv)
		if last.Text != "answer" {
			t.Errorf("bot text = %q, want %q", last.Text, "answer")
		}
		if last.StreamingState != models.StreamingStateEnded {
			t.Errorf("state = %q, want %q", last.StreamingState, models.StreamingStateEnded)
		}
	})

	t.Run("fills a placeholder that stayed empty", func(t *testing.T) {
		conv := stream.NewConversation()
		conv.Begin("hi")

		conv.End("no response")

		if got := lastMessage(t, conv).Text; got != "no response" {
			t.Errorf("bot text = %q, want %q", got, "no response")
		}
	})

	t.Run("empty fallback leaves the text alone", func(t *testing.T) {
		conv := stream.NewConversation()
		conv.Begin("hi")

		conv.End("")

		if got := lastMessage(t, conv).Text; got != "" {
			t.Errorf("bot text = %q, want empty", got)
		}
	})
}
