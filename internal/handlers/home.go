package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lionrocklabs/chat-widget/internal/models"
)

// message is the view model the templates render for one conversation entry.
type message struct {
	ID             string
	Sender         string
	Content        template.HTML
	Timestamp      time.Time
	StreamingState string
}

type chatboxData struct {
	Messages []message
}

type homePageData struct {
	WidgetID  string
	UserID    string
	Templates []models.PromptTemplate
	Usage     *models.Usage
	Messages  []message
}

// HandleHome renders the widget page. Each page load gets a fresh widget ID,
// which names the SSE topic the page subscribes to. A user_id query parameter
// prefills the widget's user identity and, when present, the quota card.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	templates, err := m.catalog.Templates(r.Context())
	if err != nil {
		m.logger.Error("Failed to list templates", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		WidgetID:  uuid.New().String(),
		UserID:    r.URL.Query().Get("user_id"),
		Templates: templates,
	}

	// Usage is best effort; the page still renders without a quota card.
	if data.UserID != "" {
		usage, err := m.backend.Usage(r.Context(), data.UserID)
		if err != nil {
			m.logger.Warn("Failed to fetch usage",
				slog.String("userID", data.UserID),
				slog.String(errLoggerKey, err.Error()))
		} else {
			data.Usage = &usage
		}
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) renderTemplate(name string, data any) (string, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// viewMessages converts conversation entries into renderable view models. Bot
// text is markdown-rendered; user and system text is escaped verbatim.
func viewMessages(messages []models.Message) ([]message, error) {
	msgs := make([]message, len(messages))
	for i, msg := range messages {
		var content template.HTML
		if msg.Sender == models.SenderBot {
			rendered, err := models.RenderMarkdown(msg.Text)
			if err != nil {
				return nil, err
			}
			content = rendered
		} else {
			content = template.HTML(template.HTMLEscapeString(msg.Text))
		}
		msgs[i] = message{
			ID:             msg.ID,
			Sender:         string(msg.Sender),
			Content:        content,
			Timestamp:      msg.Timestamp,
			StreamingState: msg.StreamingState,
		}
	}
	return msgs, nil
}
