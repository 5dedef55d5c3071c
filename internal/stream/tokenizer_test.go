package stream_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/lionrocklabs/chat-widget/internal/stream"
)

func feedAll(t *testing.T, chunks []string) []string {
	t.Helper()
	var tok stream.Tokenizer
	var payloads []string
	for _, chunk := range chunks {
		payloads = append(payloads, tok.Feed(chunk)...)
	}
	tok.Close()
	return payloads
}

// splitEvery cuts s into chunks of at most n bytes.
func splitEvery(s string, n int) []string {
	var chunks []string
	for len(s) > n {
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return append(chunks, s)
}

func TestTokenizerSplitInvariance(t *testing.T) {
	raw := "data: {\"full_text\":\"Hi\"}\n" +
		"\n" +
		"data: {\"full_text\":\"Hi there\"}\n" +
		": keep-alive\n" +
		"data: [DONE]\n"
	want := []string{
		`{"full_text":"Hi"}`,
		`{"full_text":"Hi there"}`,
		"[DONE]",
	}

	for _, n := range []int{1, 2, 3, 5, 7, 16, len(raw)} {
		got := feedAll(t, splitEvery(raw, n))
		if !slices.Equal(got, want) {
			t.Errorf("chunk size %d: payloads = %q, want %q", n, got, want)
		}
	}
}

func TestTokenizerFiltering(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "keep-alives and blanks dropped",
			input: "\n: ping\nevent: something\ndata: hello\n",
			want:  []string{"hello"},
		},
		{
			name:  "empty payload dropped",
			input: "data: \ndata:  \ndata: x\n",
			want:  []string{"x"},
		},
		{
			name:  "prefix must match exactly",
			input: "data:no-space\nDATA: caps\ndata: yes\n",
			want:  []string{"yes"},
		},
		{
			name:  "payload trimmed of surrounding whitespace",
			input: "data:   spaced out  \n",
			want:  []string{"spaced out"},
		},
		{
			name:  "carriage return trimmed",
			input: "data: windows\r\n",
			want:  []string{"windows"},
		},
		{
			name:  "multiple frames in one chunk",
			input: "data: a\ndata: b\ndata: c\n",
			want:  []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedAll(t, []string{tt.input})
			if !slices.Equal(got, tt.want) {
				t.Errorf("payloads = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenizerDiscardsUnterminatedTail(t *testing.T) {
	var tok stream.Tokenizer
	if got := tok.Feed(`data: {"full_text":"never finished"}`); got != nil {
		t.Fatalf("incomplete line emitted %q", got)
	}
	tok.Close()
	if got := tok.Feed("\n"); got != nil {
		t.Errorf("payloads after Close = %q, want none", got)
	}
}

func TestFrames(t *testing.T) {
	body := "data: {\"full_text\":\"Hi\"}\ndata: [DONE]\ndata: after\n"

	var frames []stream.Frame
	for frame, err := range stream.Frames(strings.NewReader(body)) {
		if err != nil {
			t.Fatalf("Frames() error = %v", err)
		}
		frames = append(frames, frame)
		if frame.Kind == stream.KindDone {
			break
		}
	}

	want := []stream.Frame{
		{Kind: stream.KindText, Text: "Hi"},
		{Kind: stream.KindDone},
	}
	if !slices.Equal(frames, want) {
		t.Errorf("frames = %+v, want %+v", frames, want)
	}
}
