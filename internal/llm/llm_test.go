package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

const tinyPNG = "data:image/png;base64,iVBORw0KGgo="

func userMessage(text string, images ...string) CompletionRequest {
	return CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "You are a physics tutor."},
		{Role: RoleUser, Content: text, Images: images},
	}}
}

// --- Tests ---

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	for _, p := range []config.ProviderType{config.ProviderAnthropic, config.ProviderOpenAI} {
		if _, err := NewProvider(p, "some-model"); err == nil {
			t.Errorf("expected error for provider %q with missing API key", p)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	if _, err := NewProvider("google", "some-model"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider(config.ProviderOllama, "llava")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFromConfigWrapsRateLimiter(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	ai := config.DefaultConfig().AI
	p, err := FromConfig(ai)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if _, ok := p.(*RateLimitedProvider); !ok {
		t.Errorf("FromConfig = %T, want *RateLimitedProvider", p)
	}
	if p.Name() != "openai" {
		t.Errorf("Name = %q", p.Name())
	}

	ai.RequestsPerMinute = 0
	p, _ = FromConfig(ai)
	if _, ok := p.(*OpenAIProvider); !ok {
		t.Errorf("FromConfig without limit = %T", p)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), userMessage("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, userMessage("hello")); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	if _, err := rl.Complete(ctx, userMessage("hello")); err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
	if mock.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.CallCount())
	}
}

func TestRateLimiterReservations(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	now := start
	rl := NewRateLimitedProvider(NewMockProvider("test"), 30).(*RateLimitedProvider)
	rl.now = func() time.Time { return now }
	rl.last = start

	for i := 0; i < 30; i++ {
		if d := rl.reserve(); d != 0 {
			t.Fatalf("burst request %d waits %v", i, d)
		}
	}
	if d := rl.reserve(); d != 2*time.Second {
		t.Errorf("first over budget waits %v, want 2s", d)
	}
	if d := rl.reserve(); d != 4*time.Second {
		t.Errorf("second over budget waits %v, want 4s", d)
	}

	now = start.Add(10 * time.Second)
	if d := rl.reserve(); d != 0 {
		t.Errorf("after refill waits %v, want 0", d)
	}
}

func TestAnthropicSendsImageBlocks(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "k" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(anthropicResponse{
			Content:    []anthropicContent{{Type: "text", Text: "A block on an incline."}},
			Model:      "claude",
			StopReason: "end_turn",
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", srv.URL, "claude")
	resp, err := p.Complete(context.Background(), userMessage("Describe this page.", tinyPNG))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "A block on an incline." {
		t.Errorf("Content = %q", resp.Content)
	}
	if got.System != "You are a physics tutor." {
		t.Errorf("System = %q", got.System)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("Messages = %+v", got.Messages)
	}
	img := got.Messages[0].Content[0]
	if img.Type != "image" || img.Source == nil || img.Source.MediaType != "image/png" || img.Source.Data != "iVBORw0KGgo=" {
		t.Errorf("image block = %+v", img)
	}
}

func TestOllamaStripsDataURL(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "ok"},
			Model:   "llava",
			Done:    true,
		})
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(srv.URL, "llava").Complete(context.Background(), userMessage("look", tinyPNG))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if len(got.Messages) != 2 || len(got.Messages[1].Images) != 1 || got.Messages[1].Images[0] != "iVBORw0KGgo=" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIProviderAgainstCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Newton's second law."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", srv.URL, "gpt-4o-mini")
	resp, err := p.Complete(context.Background(), userMessage("F = ma?", tinyPNG))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Newton's second law." || resp.FinishReason != "stop" || resp.InputTokens != 5 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSplitDataURL(t *testing.T) {
	mt, data, err := splitDataURL(tinyPNG)
	if err != nil || mt != "image/png" || data != "iVBORw0KGgo=" {
		t.Errorf("splitDataURL = %q, %q, %v", mt, data, err)
	}
	for _, bad := range []string{"https://x/y.png", "data:image/png,raw"} {
		if _, _, err := splitDataURL(bad); err == nil {
			t.Errorf("splitDataURL(%q) should fail", bad)
		}
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" || RoleUser != "user" || RoleAssistant != "assistant" {
		t.Error("role constants changed")
	}
}

func TestPostJSONStatusError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		limited bool
	}{
		{"anthropic overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "Overloaded", true},
		{"ollama missing model", 404, `{"error":"model \"llava\" not found"}`, `model "llava" not found`, false},
		{"plain text", 429, "slow down\n", "slow down", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var out map[string]any
			err := PostJSON(context.Background(), srv.Client(), "test", srv.URL, nil, map[string]string{"q": "x"}, &out)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.Code != tt.status || se.Message != tt.message {
				t.Errorf("StatusError = %+v", se)
			}
			if RateLimited(err) != tt.limited {
				t.Errorf("RateLimited = %v, want %v", RateLimited(err), tt.limited)
			}
		})
	}
}

func TestPostJSONSendsHeaders(t *testing.T) {
	var gotKey, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("x-api-key", "secret")
	var out struct {
		OK bool `json:"ok"`
	}
	if err := PostJSON(context.Background(), srv.Client(), "test", srv.URL, header, struct{}{}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK || gotKey != "secret" || gotType != "application/json" {
		t.Errorf("ok=%v key=%q type=%q", out.OK, gotKey, gotType)
	}
}

func TestRateLimitedIgnoresOtherErrors(t *testing.T) {
	if RateLimited(errors.New("connection refused")) {
		t.Error("plain error reported as rate limited")
	}
	if !RateLimited(fmt.Errorf("complete: %w", &StatusError{Provider: "ollama", Code: 503})) {
		t.Error("wrapped 503 not reported as rate limited")
	}
}

func TestOpenAIMessagesParts(t *testing.T) {
	msgs := openAIMessages([]Message{
		{Role: RoleSystem, Content: "You are a physics tutor."},
		{Role: RoleUser, Content: "Describe this page.", Images: []string{tinyPNG}},
	})
	if msgs[0].Content != "You are a physics tutor." || msgs[0].MultiContent != nil {
		t.Errorf("system turn = %+v", msgs[0])
	}
	parts := msgs[1].MultiContent
	if msgs[1].Content != "" || len(parts) != 2 {
		t.Fatalf("user turn = %+v", msgs[1])
	}
	if parts[0].Text != "Describe this page." || parts[1].ImageURL.URL != tinyPNG {
		t.Errorf("parts = %+v", parts)
	}
}

func TestCompletionRequestDefaults(t *testing.T) {
	var req CompletionRequest
	if req.maxTokens() != DefaultMaxTokens || req.model("llama3") != "llama3" {
		t.Errorf("defaults = %d, %q", req.maxTokens(), req.model("llama3"))
	}
	req = CompletionRequest{Model: "gpt-4o", MaxTokens: 100}
	if req.maxTokens() != 100 || req.model("llama3") != "gpt-4o" {
		t.Errorf("overrides = %d, %q", req.maxTokens(), req.model("llama3"))
	}
}
