package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/masskarem1/PHYS.101-Ebook/internal/llm"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaEmbedder embeds page text with a local Ollama model. Each Embed
// call is one /api/embed request carrying every text.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu         sync.Mutex
	dimensions int
}

// NewOllamaEmbedder creates an embedder for a model such as
// "nomic-embed-text". dimensions may be 0 when unknown; it is learned from
// the first response. baseURL defaults to the local Ollama port.
func NewOllamaEmbedder(model string, dimensions int, baseURL string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{},
	}
}

func (e *OllamaEmbedder) Name() string {
	return "ollama/" + e.model
}

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts}
	if err := llm.PostJSON(ctx, e.client, "ollama", e.baseURL+"/api/embed", nil, req, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}

	e.mu.Lock()
	if e.dimensions == 0 {
		e.dimensions = len(out.Embeddings[0])
	}
	e.mu.Unlock()
	return out.Embeddings, nil
}
