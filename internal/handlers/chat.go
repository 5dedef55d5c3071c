package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lionrocklabs/chat-widget/internal/models"
	"github.com/lionrocklabs/chat-widget/internal/stream"
)

// HandleSend accepts a user-initiated send through an HTTP POST request. It
// expects "widget_id", "message", "user_id" and an optional "template_label"
// form field, hands the request to the widget's stream session, and returns
// immediately; conversation and quota updates reach the page over SSE.
//
// Input validation beyond the widget ID is the session's job: a blank message
// or missing user ID surfaces as a system notice in the conversation, never as
// an HTTP error. A send arriving while a previous exchange is still in flight
// is rejected with 409; each widget runs at most one exchange at a time.
func (m Main) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	widgetID := r.FormValue("widget_id")
	if widgetID == "" {
		m.logger.Error("Widget ID is required")
		http.Error(w, "Widget ID is required", http.StatusBadRequest)
		return
	}

	req := models.ChatRequest{
		Message: r.FormValue("message"),
		UserID:  r.FormValue("user_id"),
	}
	if label := r.FormValue("template_label"); label != "" {
		req.TemplateLabel = &label
	}

	wdg := m.widget(widgetID)
	if wdg.session.State() != stream.StateIdle {
		http.Error(w, "A message is already being processed", http.StatusConflict)
		return
	}

	go func() {
		if err := wdg.session.Send(context.Background(), req); err != nil {
			m.logger.Info("Send rejected",
				slog.String("widgetID", widgetID),
				slog.String(errLoggerKey, err.Error()))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}
