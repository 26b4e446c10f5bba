// Package embeddings turns page text into vectors for the semantic search
// index.
package embeddings

import (
	"context"
	"fmt"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// defaultOllamaModel replaces an OpenAI model name when the provider is
// Ollama.
const defaultOllamaModel = "nomic-embed-text"

// Embedder generates text embeddings.
type Embedder interface {
	// Embed returns one vector per text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length, or 0 while unknown.
	Dimensions() int
	Name() string
}

// New picks an embedder for the configured AI provider. Anthropic has no
// embedding endpoint, so it falls back to OpenAI.
func New(cfg *config.Config) (Embedder, error) {
	model := cfg.Corpus.EmbeddingModel
	switch cfg.AI.Provider {
	case config.ProviderOllama:
		if model == "" || strings.HasPrefix(model, "text-embedding-") {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(model, 0, os.Getenv("OLLAMA_HOST")), nil
	case config.ProviderOpenAI, config.ProviderAnthropic:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		e := NewOpenAIEmbedder(key, os.Getenv("OPENAI_BASE_URL"), OpenAIModel(model))
		return e.WithDimensions(cfg.Corpus.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.AI.Provider)
	}
}

// ToChromemFunc adapts an Embedder to the single-text function chromem-go
// calls while indexing pages and answering queries. Vectors of the wrong
// length are rejected before they reach the collection.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("%s returned no embedding", e.Name())
		}
		if dims := e.Dimensions(); dims > 0 && len(vecs[0]) != dims {
			return nil, fmt.Errorf("%s returned %d dimensions, want %d", e.Name(), len(vecs[0]), dims)
		}
		return vecs[0], nil
	}
}
