package aiproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/llm"
)

// Proxy answers the proxy protocol locally using an LLM provider, so the
// viewer works without an external script endpoint.
type Proxy struct {
	provider llm.Provider
	log      zerolog.Logger
}

// NewProxy creates a proxy backed by provider.
func NewProxy(provider llm.Provider, log zerolog.Logger) *Proxy {
	return &Proxy{provider: provider, log: log.With().Str("component", "proxy").Logger()}
}

// RegisterRoutes mounts the proxy endpoint.
func (p *Proxy) RegisterRoutes(r chi.Router) {
	r.Post("/api/ai/proxy", p.handle)
}

func (p *Proxy) handle(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	msgs, err := Prompt(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := p.provider.Complete(r.Context(), llm.CompletionRequest{Messages: msgs, Temperature: 0.4})
	if err != nil {
		// Throttled upstream maps to 503 so the client's retry policy applies.
		status := http.StatusBadGateway
		if llm.RateLimited(err) {
			status = http.StatusServiceUnavailable
		}
		p.log.Warn().Err(err).Str("action", string(req.Action)).Int("status", status).Msg("provider failed")
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": resp.Content})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const tutorPrompt = "You are a helpful tutor for PHYS 101, an introductory physics course. " +
	"Answer in %s with a %s tone. Use Markdown, and LaTeX between $ signs for formulas."

// Prompt turns a proxy request into a conversation for the provider.
func Prompt(req Request) ([]llm.Message, error) {
	lang := languageName(orDefault(req.Language, "en"))
	tone := orDefault(req.Tone, "friendly")
	system := llm.Message{Role: llm.RoleSystem, Content: fmt.Sprintf(tutorPrompt, lang, tone)}

	var user llm.Message
	user.Role = llm.RoleUser
	switch req.Action {
	case ActionExplain:
		user.Content = fmt.Sprintf("Explain the main ideas of page %d of the textbook step by step.\n\n%s", req.Page, req.Text)
	case ActionQuiz:
		user.Content = fmt.Sprintf("Write a short quiz of 3 to 5 questions, with answers at the end, on page %d.\n\n%s", req.Page, req.Text)
	case ActionRelate:
		user.Content = fmt.Sprintf("Relate the concepts on page %d to everyday life and to other physics topics.\n\n%s", req.Page, req.Text)
	case ActionTranslatePage:
		user.Content = fmt.Sprintf("Translate page %d into %s, keeping formulas intact.\n\n%s", req.Page, lang, req.Text)
	case ActionTranslateText:
		if req.Text == "" {
			return nil, errors.New("translateText needs text")
		}
		user.Content = fmt.Sprintf("Translate the following into %s. Keep the Markdown and formulas.\n\n%s", lang, req.Text)
	case ActionAnalyze:
		if req.Image == "" {
			return nil, errors.New("analyze needs an image")
		}
		user.Content = fmt.Sprintf("Analyze this image of page %d: describe its diagrams, equations and key points.", req.Page)
		user.Images = []string{req.Image}
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
	return []llm.Message{system, user}, nil
}

func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "ar":
		return "Arabic"
	}
	return code
}
