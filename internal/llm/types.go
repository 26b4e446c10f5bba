package llm

import "context"

// Provider completes a chat conversation. The built-in AI proxy endpoint
// turns every viewer action into one Complete call.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name identifies the backend in logs.
	Name() string
}

// Role of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Images are data URLs
// ("data:image/png;base64,...") sent alongside the text; only the analyze
// action attaches one.
type Message struct {
	Role    Role
	Content string
	Images  []string
}

// DefaultMaxTokens caps a reply when the request leaves MaxTokens at zero.
// Anthropic requires a value, and the others get the same cap so replies
// are comparable across backends.
const DefaultMaxTokens = 2048

// CompletionRequest is a conversation plus sampling settings. Zero values
// leave the provider defaults in place.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

func (r CompletionRequest) model(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

func (r CompletionRequest) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return DefaultMaxTokens
}

// CompletionResponse is the reply text with usage reported by the backend.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
