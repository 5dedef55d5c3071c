package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chatwidget "github.com/lionrocklabs/chat-widget"
	"github.com/lionrocklabs/chat-widget/internal/models"
	"github.com/lionrocklabs/chat-widget/internal/stream"
	"github.com/tmaxmax/go-sse"
)

// Backend is the chat backend collaborator: it opens response streams and
// reports usage quotas. The widget never talks to anything else.
type Backend interface {
	stream.Opener
	Usage(ctx context.Context, userID string) (models.Usage, error)
}

// Catalog lists the prompt templates offered by the widget's template picker.
type Catalog interface {
	Templates(ctx context.Context) ([]models.PromptTemplate, error)
}

// SSE event types for real-time updates.
var (
	messagesSSEType = sse.Type("messages")
	usageSSEType    = sse.Type("usage")
)

const errLoggerKey = "err"

// Main handles the core functionality of the widget host, managing
// server-sent events, HTML templates, and one stream session per widget.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	backend Backend
	catalog Catalog

	widgets *widgetRegistry

	streamTimeout time.Duration

	logger *slog.Logger
}

// NewMain creates a new Main instance with the provided backend and catalog
// implementations. It initializes the SSE server and parses the required HTML
// templates from the embedded filesystem. SSE sessions subscribe to the
// default topic plus the per-widget topic named by the widget_id query
// parameter.
func NewMain(backend Backend, catalog Catalog, streamTimeout time.Duration, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatwidget.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				widgetID := s.Req.URL.Query().Get("widget_id")
				if widgetID != "" {
					topics = append(topics, widgetTopic(widgetID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates:     tmpl,
		backend:       backend,
		catalog:       catalog,
		widgets:       newWidgetRegistry(),
		streamTimeout: streamTimeout,
		logger:        logger.With(slog.String("module", "handlers")),
	}, nil
}

func widgetTopic(widgetID string) string {
	return fmt.Sprintf("widget-%s", widgetID)
}

// HandleSSE serves the widget's server-sent events endpoint.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts
// a close message to all connected clients and waits up to 5 seconds for
// connections to terminate. After the timeout, any remaining connections are
// forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// widget pairs a conversation with the session that drives it.
type widget struct {
	conv    *stream.Conversation
	session *stream.Session
}

type widgetRegistry struct {
	mu      sync.Mutex
	widgets map[string]*widget
}

func newWidgetRegistry() *widgetRegistry {
	return &widgetRegistry{widgets: make(map[string]*widget)}
}

func (r *widgetRegistry) get(id string, build func() *widget) *widget {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[id]
	if !ok {
		w = build()
		r.widgets[id] = w
	}
	return w
}

// widget returns the widget for the given ID, building its conversation and
// session on first use. Conversation mutations publish a fresh chatbox to the
// widget's SSE topic; terminal outcomes with a valid response publish a usage
// update.
func (m Main) widget(widgetID string) *widget {
	return m.widgets.get(widgetID, func() *widget {
		conv := stream.NewConversation()
		wdg := &widget{conv: conv}
		wdg.session = stream.NewSession(conv, m.backend, stream.SessionOptions{
			Timeout: m.streamTimeout,
			OnUpdate: func() {
				m.publishMessages(widgetID, conv.Messages())
			},
			OnQuota: func(ctx context.Context, userID string) {
				m.publishUsage(ctx, widgetID, userID)
			},
			Logger: m.logger,
		})
		return wdg
	})
}

func (m Main) publishMessages(widgetID string, messages []models.Message) {
	msgs, err := viewMessages(messages)
	if err != nil {
		m.logger.Error("Failed to render contents",
			slog.String("widgetID", widgetID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	html, err := m.renderTemplate("chatbox", chatboxData{Messages: msgs})
	if err != nil {
		m.logger.Error("Failed to execute chatbox template",
			slog.String("widgetID", widgetID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: messagesSSEType}
	msg.AppendData(html)
	if err := m.sseSrv.Publish(&msg, widgetTopic(widgetID)); err != nil {
		m.logger.Error("Failed to publish messages",
			slog.String("widgetID", widgetID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) publishUsage(ctx context.Context, widgetID, userID string) {
	usage, err := m.backend.Usage(ctx, userID)
	if err != nil {
		m.logger.Error("Failed to fetch usage",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	html, err := m.renderTemplate("usage", usage)
	if err != nil {
		m.logger.Error("Failed to execute usage template",
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{Type: usageSSEType}
	msg.AppendData(html)
	if err := m.sseSrv.Publish(&msg, widgetTopic(widgetID)); err != nil {
		m.logger.Error("Failed to publish usage",
			slog.String("widgetID", widgetID),
			slog.String(errLoggerKey, err.Error()))
	}
}
