package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openAIBatch is the most inputs sent in one embeddings request.
const openAIBatch = 100

// OpenAIModel is an OpenAI embedding model name.
type OpenAIModel string

const (
	ModelTextEmbedding3Small OpenAIModel = "text-embedding-3-small"
	ModelTextEmbedding3Large OpenAIModel = "text-embedding-3-large"
)

// nativeDimensions is the vector length the model returns when no
// shortening is requested.
func (m OpenAIModel) nativeDimensions() int {
	if m == ModelTextEmbedding3Large {
		return 3072
	}
	return 1536
}

// OpenAIEmbedder embeds page text with the OpenAI embeddings API or any
// server speaking it.
type OpenAIEmbedder struct {
	client *openai.Client
	model  OpenAIModel
	// dims, when set, asks the API for shortened vectors.
	dims int
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the public
// API.
func NewOpenAIEmbedder(apiKey, baseURL string, model OpenAIModel) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = ModelTextEmbedding3Small
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

// WithDimensions requests vectors of length n, which the text-embedding-3
// models support natively. n <= 0 restores the model's full length.
func (e *OpenAIEmbedder) WithDimensions(n int) *OpenAIEmbedder {
	if n < 0 || n >= e.model.nativeDimensions() {
		n = 0
	}
	e.dims = n
	return e
}

func (e *OpenAIEmbedder) Name() string { return string(e.model) }

func (e *OpenAIEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return e.model.nativeDimensions()
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += openAIBatch {
		batch := texts[start:min(start+openAIBatch, len(texts))]
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      batch,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dims,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding pages %d-%d: %w", start+1, start+len(batch), err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%s returned %d embeddings for %d texts", e.model, len(resp.Data), len(batch))
		}
		// Data carries its input index; order is not guaranteed.
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("%s returned embedding index %d out of range", e.model, d.Index)
			}
			out[start+d.Index] = d.Embedding
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
