package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/lionrocklabs/chat-widget/internal/models"
	"github.com/lionrocklabs/chat-widget/internal/stream"
)

// maxErrorBodySize bounds how much of an error response body is read when
// extracting a message from it.
const maxErrorBodySize = 64 * 1024

// Backend is the HTTP client for the chat backend the widget is embedded
// against. It implements stream.Opener for the streaming endpoint and exposes
// the quota-lookup collaborator.
type Backend struct {
	baseURL string

	client *http.Client

	logger *slog.Logger
}

// NewBackend creates a Backend for the given base URL. No client-level timeout
// is set; exchanges are bounded by the caller's context so long streams are
// not cut off mid-response.
func NewBackend(baseURL string, logger *slog.Logger) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "backend")),
	}
}

// StreamChat posts one chat request and returns the raw chunked response body
// for the frame pipeline to consume. Non-success statuses drain the body and
// are returned as a *stream.StatusError carrying any message found in a JSON
// error body.
func (b *Backend) StreamChat(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/chat/stream", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		b.logger.Error("Chat stream request rejected",
			slog.Int("status", resp.StatusCode))
		return nil, &stream.StatusError{
			Code:    resp.StatusCode,
			Message: errorBodyMessage(body),
		}
	}

	return resp.Body, nil
}

// errorBodyMessage pulls a human-readable message out of a JSON error body.
// The backend answers quota and auth failures with {"detail": ...}; a plain
// {"error": ...} shape is accepted as well. Anything else yields "".
func errorBodyMessage(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error
}

// Usage fetches the user's quota snapshot. It is called once per terminal
// stream outcome that carried at least one valid text frame.
func (b *Backend) Usage(ctx context.Context, userID string) (models.Usage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/usage/"+url.PathEscape(userID), nil)
	if err != nil {
		return models.Usage{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return models.Usage{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Usage{}, fmt.Errorf("usage request failed with status %d", resp.StatusCode)
	}

	var usage models.Usage
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return models.Usage{}, fmt.Errorf("error decoding usage response: %w", err)
	}
	return usage, nil
}
