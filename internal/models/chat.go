package models

// ChatRequest is the outbound body of a chat-stream exchange. TemplateLabel is
// nil when the user picked no prompt template; the backend expects an explicit
// null in that case.
type ChatRequest struct {
	Message       string  `json:"message"`
	UserID        string  `json:"user_id"`
	TemplateLabel *string `json:"template_label"`
}

// Usage is the quota snapshot the backend reports per user and day.
type Usage struct {
	UserID         string `json:"user_id"`
	Date           string `json:"date"`
	PromptCount    int    `json:"prompt_count"`
	DailyLimit     int    `json:"daily_limit"`
	RemainingQuota int    `json:"remaining_quota"`
	Plan           string `json:"plan"`
}

// PromptTemplate is one entry of the widget's template picker. Only the label
// travels with a chat request; substitution happens on the backend.
type PromptTemplate struct {
	Label string
	Title string
}
