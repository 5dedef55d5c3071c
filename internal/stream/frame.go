package stream

import (
	"encoding/json"
	"strings"
)

// FrameKind labels one decoded protocol frame.
type FrameKind int

const (
	// KindUnrecognized is a JSON payload carrying none of the known fields.
	// The reducer ignores it.
	KindUnrecognized FrameKind = iota
	// KindDone is the [DONE] termination sentinel.
	KindDone
	// KindText carries the authoritative full text-so-far of the response.
	KindText
	// KindLegacyText is a plain, non-JSON payload from the older protocol
	// version, treated as a full-snapshot text update.
	KindLegacyText
	// KindError is an explicit error frame; the session terminates on it.
	KindError
)

// Frame is one classified payload from the chat-stream response.
type Frame struct {
	Kind FrameKind

	// Text holds the full snapshot for KindText and KindLegacyText, or the
	// error message for KindError. Empty otherwise.
	Text string
}

const doneSentinel = "[DONE]"

// errorMarkers are the fixed substrings the legacy protocol uses to signal
// quota and subscription failures inside otherwise ordinary payloads. They are
// kept for compatibility, not as a model for new error signalling.
var errorMarkers = []string{
	"not a subscribed member",
	"Daily limit reached",
	"Please subscribe",
}

func matchesErrorMarker(s string) bool {
	for _, m := range errorMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

type framePayload struct {
	FullText string `json:"full_text"`
	Error    string `json:"error"`
	Content  string `json:"content"`
}

// Classify assigns one trimmed payload to exactly one frame kind. The checks
// run in a fixed priority order: the [DONE] sentinel, then for JSON objects
// the error field, a marker-carrying content field, and full_text. Payloads
// that do not decode as a JSON object fall through to the marker check and
// finally to the legacy plain-text path.
func Classify(payload string) Frame {
	if payload == doneSentinel {
		return Frame{Kind: KindDone}
	}

	var p framePayload
	if err := json.Unmarshal([]byte(payload), &p); err == nil {
		switch {
		case p.Error != "":
			return Frame{Kind: KindError, Text: p.Error}
		case p.Content != "" && matchesErrorMarker(p.Content):
			return Frame{Kind: KindError, Text: p.Content}
		case p.FullText != "":
			return Frame{Kind: KindText, Text: p.FullText}
		default:
			return Frame{Kind: KindUnrecognized}
		}
	}

	if matchesErrorMarker(payload) {
		return Frame{Kind: KindError, Text: payload}
	}
	return Frame{Kind: KindLegacyText, Text: payload}
}
