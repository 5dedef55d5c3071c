package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lionrocklabs/chat-widget/internal/models"
)

// State tracks where a widget's send/stream cycle currently is. A new send is
// only reachable from StateIdle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinalizing
)

// ErrBusy is returned by Send while a previous exchange has not yet returned
// to StateIdle.
var ErrBusy = errors.New("a message is already in flight")

// Opener opens the chat stream for one request, returning the raw chunked
// response body. Implementations report non-success HTTP statuses as a
// *StatusError.
type Opener interface {
	StreamChat(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error)
}

// StatusError is a non-success HTTP status from the chat backend. Message
// carries the human-readable text extracted from a JSON error body, when the
// body had one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat backend returned status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("chat backend returned status %d", e.Code)
}

// User-facing fallback messages. The backend's own error text wins whenever it
// supplies any.
const (
	msgQuotaExceeded  = "Daily limit reached. Please try again tomorrow."
	msgSubscribeFirst = "You are not a subscribed member. Please subscribe to use the chatbot."
	msgServerError    = "The assistant is having trouble right now. Please try again in a moment."
	msgGenericFailure = "Something went wrong. Please try again."
	msgTransport      = "Connection lost while receiving the response. Please try again."
	msgStreamTimeout  = "The response timed out. Please try again."
	msgMissingUser    = "Missing user session. Please reload the page and try again."
	msgEmptyMessage   = "Please type a message before sending."
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Timeout bounds one full exchange, from request to terminal frame. Zero
	// disables the bound.
	Timeout time.Duration

	// OnUpdate runs after every conversation mutation, on the session's own
	// goroutine.
	OnUpdate func()

	// OnQuota runs exactly once per terminal outcome in which at least one
	// valid text frame arrived. It carries the user the exchange belonged to.
	OnQuota func(ctx context.Context, userID string)

	Logger *slog.Logger
}

// Session drives one widget's exchanges end to end: it opens the stream,
// pumps tokenizer, classifier and reducer, and finalizes the exchange. A
// Session is single-flight; concurrent sends are rejected with ErrBusy rather
// than interleaved.
type Session struct {
	conv    *Conversation
	opener  Opener
	timeout time.Duration

	onUpdate func()
	onQuota  func(ctx context.Context, userID string)

	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// NewSession creates a session owning conv. The conversation must not be
// mutated by anyone else while the session is in use.
func NewSession(conv *Conversation, opener Opener, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conv:     conv,
		opener:   opener,
		timeout:  opts.Timeout,
		onUpdate: opts.OnUpdate,
		onQuota:  opts.OnQuota,
		logger:   logger.With(slog.String("module", "stream")),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send runs one full exchange and blocks until the session returns to
// StateIdle, so callers that need a responsive UI run it on its own goroutine.
// Invalid input (missing user identifier, blank message) emits a system
// validation message and never opens a request. Cancelling ctx tears the
// stream loop down without surfacing an error to the conversation.
func (s *Session) Send(ctx context.Context, req models.ChatRequest) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}

	req.Message = strings.TrimSpace(req.Message)
	if notice := validate(req); notice != "" {
		s.conv.AppendSystem(notice)
		s.mu.Unlock()
		s.notify()
		return nil
	}

	s.state = StateSending
	s.mu.Unlock()
	defer s.setState(StateIdle)

	s.conv.Begin(req.Message)
	s.notify()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := s.opener.StreamChat(ctx, req)
	if err != nil {
		s.logger.Error("Failed to open chat stream", slog.String("err", err.Error()))
		s.applyOpenError(ctx, err)
		s.finalize(ctx, req.UserID)
		return nil
	}

	s.setState(StateStreaming)
	s.pump(ctx, body)
	s.finalize(ctx, req.UserID)
	return nil
}

func validate(req models.ChatRequest) string {
	if req.UserID == "" {
		return msgMissingUser
	}
	if req.Message == "" {
		return msgEmptyMessage
	}
	return ""
}

// pump feeds the response body through the frame pipeline until a terminal
// frame, a read failure, or the stream's natural close. A terminal frame
// abandons the unread remainder of the stream.
func (s *Session) pump(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	for frame, err := range Frames(body) {
		if err != nil {
			if ctx.Err() != nil {
				// Torn down mid-stream; the widget is going away, so no
				// failure message is surfaced for plain cancellation.
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					s.conv.FailTransport(msgStreamTimeout)
					s.notify()
				}
				return
			}
			s.logger.Error("Stream read failed", slog.String("err", err.Error()))
			s.conv.FailTransport(msgTransport)
			s.notify()
			return
		}
		if s.conv.Apply(frame) {
			s.notify()
		}
		if s.conv.Terminal() {
			return
		}
	}
}

// applyOpenError routes a failed stream open into the conversation. Status
// errors become terminal error frames with the backend's message, or a fixed
// default per status class.
func (s *Session) applyOpenError(ctx context.Context, err error) {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		s.conv.Apply(Frame{Kind: KindError, Text: statusMessage(se)})
	case errors.Is(err, context.DeadlineExceeded):
		s.conv.FailTransport(msgStreamTimeout)
	case errors.Is(err, context.Canceled):
		return
	default:
		s.conv.FailTransport(msgGenericFailure)
	}
	s.notify()
}

func statusMessage(se *StatusError) string {
	if se.Message != "" {
		return se.Message
	}
	switch {
	case se.Code == http.StatusTooManyRequests:
		return msgQuotaExceeded
	case se.Code == http.StatusUnauthorized:
		return msgSubscribeFirst
	case se.Code >= 500:
		return msgServerError
	default:
		return msgGenericFailure
	}
}

// finalize closes out the exchange: the loading indicator stops, a placeholder
// that stayed empty gets a fallback message, and the quota hook fires when the
// exchange produced at least one valid text frame.
func (s *Session) finalize(ctx context.Context, userID string) {
	s.setState(StateFinalizing)

	fallback := msgGenericFailure
	if errors.Is(ctx.Err(), context.Canceled) {
		fallback = ""
	}
	s.conv.End(fallback)
	s.notify()

	if s.conv.ReceivedValidResponse() && !errors.Is(ctx.Err(), context.Canceled) && s.onQuota != nil {
		s.onQuota(context.WithoutCancel(ctx), userID)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
