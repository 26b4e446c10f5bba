package aiproxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/corpus"
	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
	"github.com/masskarem1/PHYS.101-Ebook/internal/llm"
)

// scriptedProxy answers with the given statuses in order; the last one
// repeats. 200 responses carry body.
type scriptedProxy struct {
	mu       sync.Mutex
	statuses []int
	body     string
	requests []Request
}

func (s *scriptedProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var req Request
	json.NewDecoder(r.Body).Decode(&req)
	s.requests = append(s.requests, req)

	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Write([]byte(s.body))
}

func (s *scriptedProxy) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func newTestClient(t *testing.T, h http.Handler, rec Recorder) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ai := config.DefaultConfig().AI
	ai.ProxyURL = srv.URL
	c := NewClient(ai, rec, zerolog.Nop())
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func TestRetryThenSuccess(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{503, 503, 200}, body: `{"reply":"answer"}`}
	c, waits := newTestClient(t, proxy, nil)

	res, err := c.Do(context.Background(), Request{Action: ActionExplain, Page: 3})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Text != "answer" || res.Attempts != 3 {
		t.Errorf("Result = %+v, want answer after 3 attempts", res)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if diff := cmp.Diff(want, *waits); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}

func TestRetriesExhausted(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{429}}
	c, waits := newTestClient(t, proxy, nil)

	res, err := c.Do(context.Background(), Request{Action: ActionQuiz})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if res.Attempts != 4 || len(*waits) != 3 {
		t.Errorf("attempts = %d, waits = %v; want 4 attempts after 3 retries", res.Attempts, *waits)
	}
}

func TestNonRetryableStatusIsFatal(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{500, 200}, body: `{"reply":"late"}`}
	c, waits := newTestClient(t, proxy, nil)

	res, err := c.Do(context.Background(), Request{Action: ActionRelate})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 500 {
		t.Fatalf("err = %v, want HTTPError 500", err)
	}
	if res.Attempts != 1 || len(*waits) != 0 {
		t.Errorf("attempts = %d, waits = %v", res.Attempts, *waits)
	}
}

// droppingProxy closes the connection without answering for the first
// drops requests, then replies normally.
type droppingProxy struct {
	mu    sync.Mutex
	drops int
}

func (d *droppingProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	drop := d.drops > 0
	if drop {
		d.drops--
	}
	d.mu.Unlock()
	if drop {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}
	w.Write([]byte(`{"reply":"recovered"}`))
}

func TestTransportErrorsAreRetried(t *testing.T) {
	c, waits := newTestClient(t, &droppingProxy{drops: 2}, nil)

	res, err := c.Do(context.Background(), Request{Action: ActionExplain, Page: 1})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Text != "recovered" || res.Attempts != 3 {
		t.Errorf("Result = %+v, want recovered after 3 attempts", res)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if diff := cmp.Diff(want, *waits); diff != "" {
		t.Errorf("backoff mismatch (-want +got):\n%s", diff)
	}
}

func TestTransportErrorsExhaustRetries(t *testing.T) {
	c, _ := newTestClient(t, &droppingProxy{drops: 100}, nil)

	res, err := c.Do(context.Background(), Request{Action: ActionQuiz})
	var netErr *TransportError
	if !errors.Is(err, ErrRetriesExhausted) || !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want ErrRetriesExhausted wrapping a TransportError", err)
	}
	if res.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", res.Attempts)
	}
}

func TestTranslateWithoutReplyKey(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{200}, body: `{}`}
	c, _ := newTestClient(t, proxy, nil)
	h := NewHelper(c, nil, nil, config.DefaultConfig().AI)

	tr, err := h.Translate(context.Background(), "Work is force times distance.")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Text != "No translation"+translatedMark {
		t.Errorf("translation = %q", tr.Text)
	}
}

func TestErrorFieldSurfaces(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{200}, body: `{"error":"quota used up"}`}
	c, _ := newTestClient(t, proxy, nil)

	_, err := c.Do(context.Background(), Request{Action: ActionExplain})
	var pe *ProxyError
	if !errors.As(err, &pe) || pe.Message != "quota used up" {
		t.Errorf("err = %v, want ProxyError", err)
	}
}

func TestNoProxyURL(t *testing.T) {
	c := NewClient(config.AIConfig{}, nil, zerolog.Nop())
	if _, err := c.Do(context.Background(), Request{Action: ActionExplain}); !errors.Is(err, ErrNoProxyURL) {
		t.Errorf("err = %v, want ErrNoProxyURL", err)
	}
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		body string
		want string
		err  bool
	}{
		{`{"reply":"a"}`, "a", false},
		{`{"text":"b"}`, "b", false},
		{`{"output":"c"}`, "c", false},
		{`{"response":"d"}`, "d", false},
		{`{"answer":"e"}`, "e", false},
		{`{"reply":"","answer":"f"}`, "f", false},
		{`{"error":"","text":"g"}`, "g", false},
		{`{"other":1}`, `{"other":1}`, false},
		{`{"error":{"code":7}}`, "", true},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		got, err := ExtractReply([]byte(tt.body))
		if (err != nil) != tt.err {
			t.Errorf("ExtractReply(%s) err = %v", tt.body, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractReply(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	html := RenderMarkdown("**Force** is mass times acceleration.\n<script>alert(1)</script>")
	if !strings.Contains(html, "<strong>Force</strong>") {
		t.Errorf("markdown not rendered: %s", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("raw HTML passed through: %s", html)
	}
}

func TestRequestsAreRecorded(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	rec := NewSQLRecorder(database)

	ok := &scriptedProxy{statuses: []int{503, 200}, body: `{"reply":"fine"}`}
	c, _ := newTestClient(t, ok, rec)
	if _, err := c.Do(context.Background(), Request{Action: ActionExplain, Page: 12}); err != nil {
		t.Fatal(err)
	}
	bad := &scriptedProxy{statuses: []int{404}}
	c, _ = newTestClient(t, bad, rec)
	c.Do(context.Background(), Request{Action: ActionQuiz, Page: 13})

	recent, err := rec.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("records = %d, want 2", len(recent))
	}
	byPage := map[int]Record{}
	for _, r := range recent {
		byPage[r.Page] = r
	}
	if r := byPage[12]; r.Action != ActionExplain || r.Attempts != 2 || r.Err != "" || r.ID == "" {
		t.Errorf("page 12 record = %+v", r)
	}
	if r := byPage[13]; r.Attempts != 1 || !strings.Contains(r.Err, "404") {
		t.Errorf("page 13 record = %+v", r)
	}
}

type fakeImages struct{ page int }

func (f *fakeImages) PNGDataURL(page int) (string, error) {
	f.page = page
	return "data:image/png;base64,AAAA", nil
}

func TestHelperPayloads(t *testing.T) {
	proxy := &scriptedProxy{statuses: []int{200}, body: `{"text":"**ok**"}`}
	c, _ := newTestClient(t, proxy, nil)
	text := corpus.New(map[string]string{"4": "Hooke's law"}, config.IndexingOneBased)
	images := &fakeImages{}
	h := NewHelper(c, text, images, config.DefaultConfig().AI)
	ctx := context.Background()

	reply, err := h.Ask(ctx, ActionExplain, 4)
	if err != nil {
		t.Fatalf("Ask explain: %v", err)
	}
	if !strings.Contains(reply.HTML, "<strong>ok</strong>") {
		t.Errorf("HTML = %q", reply.HTML)
	}
	if _, err := h.Ask(ctx, ActionAnalyze, 4); err != nil {
		t.Fatalf("Ask analyze: %v", err)
	}
	if _, err := h.Translate(ctx, ""); !errors.Is(err, ErrNothingToTranslate) {
		t.Errorf("empty Translate err = %v", err)
	}
	tr, err := h.Translate(ctx, "Energy is conserved.")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Text != "**ok**\n\n*(Translated)*" || !tr.RTL {
		t.Errorf("translation = %+v", tr)
	}

	want := []Request{
		{Action: ActionExplain, Page: 4, Language: "en", Tone: "friendly", Text: "Hooke's law"},
		{Action: ActionAnalyze, Page: 4, Language: "en", Tone: "friendly", Image: "data:image/png;base64,AAAA"},
		{Action: ActionTranslateText, Language: "ar", Text: "Energy is conserved."},
	}
	if diff := cmp.Diff(want, proxy.Requests()); diff != "" {
		t.Errorf("payloads mismatch (-want +got):\n%s", diff)
	}
	if images.page != 4 {
		t.Errorf("image captured for page %d", images.page)
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{
		"explain":        ActionExplain,
		"analyze_page":   ActionAnalyze,
		"translate_page": ActionTranslatePage,
		"translateText":  ActionTranslateText,
	} {
		if got, err := ParseAction(in); err != nil || got != want {
			t.Errorf("ParseAction(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAction("summarize"); err == nil {
		t.Error("unknown action accepted")
	}
}

// stubProvider answers every completion with a fixed reply or error.
type stubProvider struct {
	reply string
	err   error
	got   llm.CompletionRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func newProxyServer(t *testing.T, p llm.Provider) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewProxy(p, zerolog.Nop()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestBuiltInProxyServesClient(t *testing.T) {
	stub := &stubProvider{reply: "Pressure is force per area."}
	srv := newProxyServer(t, stub)

	ai := config.DefaultConfig().AI
	ai.ProxyURL = srv.URL + "/api/ai/proxy"
	c := NewClient(ai, nil, zerolog.Nop())
	res, err := c.Do(context.Background(), Request{Action: ActionExplain, Page: 70, Language: "en", Tone: "academic", Text: "Fluids"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Text != "Pressure is force per area." || res.Attempts != 1 {
		t.Errorf("Result = %+v", res)
	}
	if len(stub.got.Messages) != 2 || !strings.Contains(stub.got.Messages[0].Content, "academic") ||
		!strings.Contains(stub.got.Messages[1].Content, "Fluids") {
		t.Errorf("prompt = %+v", stub.got.Messages)
	}
}

func TestBuiltInProxyErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"unknown action", nil, `{"action":"dance"}`, http.StatusBadRequest},
		{"analyze without image", nil, `{"action":"analyze","page":2}`, http.StatusBadRequest},
		{"provider down", errors.New("connection refused"), `{"action":"quiz","page":2}`, http.StatusBadGateway},
		{"provider rate limited", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, `{"action":"quiz"}`, http.StatusServiceUnavailable},
		{"provider overloaded", &llm.StatusError{Provider: "anthropic", Code: 529, Message: "overloaded"}, `{"action":"quiz"}`, http.StatusServiceUnavailable},
		{"provider rejects key", &llm.StatusError{Provider: "anthropic", Code: 401, Message: "invalid x-api-key"}, `{"action":"quiz"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newProxyServer(t, &stubProvider{err: tt.err})
			resp, err := http.Post(srv.URL+"/api/ai/proxy", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body map[string]string
			json.NewDecoder(resp.Body).Decode(&body)
			if body["error"] == "" {
				t.Error("missing error field")
			}
		})
	}
}

func TestPromptAnalyzeCarriesImage(t *testing.T) {
	msgs, err := Prompt(Request{Action: ActionAnalyze, Page: 9, Image: "data:image/png;base64,AAAA"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs[1].Images) != 1 {
		t.Errorf("images = %v", msgs[1].Images)
	}
	if !strings.Contains(msgs[0].Content, "English") {
		t.Errorf("system prompt = %q", msgs[0].Content)
	}
}
