package stream

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// framePrefix is the only line prefix the chat-stream protocol carries
// payloads on. Lines without it are keep-alives or blanks and never reach the
// classifier.
const framePrefix = "data: "

// Tokenizer reassembles newline-delimited protocol frames from a chunked text
// stream. Chunk boundaries are arbitrary: a single frame may span several
// chunks and a single chunk may carry several frames. The zero value is ready
// to use.
type Tokenizer struct {
	carry string
}

// Feed appends one chunk and returns the payloads of every frame the chunk
// completed, in arrival order. The trailing partial line is held back until a
// later chunk supplies its newline. Payloads are returned with the "data: "
// prefix stripped and surrounding whitespace trimmed; empty payloads and lines
// without the prefix are dropped.
func (t *Tokenizer) Feed(chunk string) []string {
	lines := strings.Split(t.carry+chunk, "\n")
	t.carry = lines[len(lines)-1]

	var payloads []string
	for _, line := range lines[:len(lines)-1] {
		payload, ok := strings.CutPrefix(line, framePrefix)
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

// Close discards any unterminated tail. A frame that never saw its newline is
// never delivered; completion is signalled by the [DONE] sentinel rather than
// by the stream closing.
func (t *Tokenizer) Close() {
	t.carry = ""
}

// Frames reads r chunk by chunk and yields one classified frame per completed
// protocol line. Reader errors other than io.EOF are yielded with a zero
// frame; io.EOF simply ends the sequence, discarding any unterminated tail.
func Frames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		var tok Tokenizer
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, payload := range tok.Feed(string(buf[:n])) {
					if !yield(Classify(payload), nil) {
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Frame{}, err)
				}
				return
			}
		}
	}
}
