package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/masskarem1/PHYS.101-Ebook/internal/corpus"
	"github.com/masskarem1/PHYS.101-Ebook/internal/embeddings"
)

const collectionName = "pages"

// indexFile is the chromem export written under the data directory.
const indexFile = "pages.gob.gz"

// ErrNoIndex is returned by semantic queries when no index is available.
var ErrNoIndex = errors.New("semantic index not built")

// Index is an embedding index with one document per corpus page.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewIndex creates an empty in-memory index that embeds with embedder.
func NewIndex(embedder embeddings.Embedder) (*Index, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, collection: col, embedFunc: ef}, nil
}

// Build embeds every non-empty page of c.
func (ix *Index) Build(ctx context.Context, c *corpus.Corpus, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	var docs []chromem.Document
	for _, e := range c.Entries() {
		if e.Text == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:       strconv.Itoa(e.Page),
			Content:  e.Text,
			Metadata: map[string]string{"page": strconv.Itoa(e.Page)},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := ix.collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return fmt.Errorf("indexing pages: %w", err)
	}
	return nil
}

// Query returns up to limit pages ranked by similarity to query.
func (ix *Index) Query(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	// chromem-go requires nResults <= collection size.
	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	found, err := ix.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	results := make([]Result, 0, len(found))
	for _, r := range found {
		page, err := strconv.Atoi(r.Metadata["page"])
		if err != nil {
			continue
		}
		results = append(results, Result{Page: page, Snippet: Snippet(r.Content, query), Score: r.Similarity})
	}
	return results, nil
}

func (ix *Index) Count() int {
	return ix.collection.Count()
}

// Persist writes the index to dir.
func (ix *Index) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return ix.db.ExportToFile(filepath.Join(dir, indexFile), true, "")
}

// Load replaces the index with the one persisted in dir.
func (ix *Index) Load(dir string) error {
	if err := ix.db.ImportFromFile(filepath.Join(dir, indexFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	// Re-acquire collection reference after import.
	col := ix.db.GetCollection(collectionName, ix.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	ix.collection = col
	return nil
}

// Service answers searches over one corpus, with an optional semantic index.
type Service struct {
	corpus *corpus.Corpus
	index  *Index
}

// NewService wraps c. index may be nil.
func NewService(c *corpus.Corpus, index *Index) *Service {
	return &Service{corpus: c, index: index}
}

func (s *Service) Corpus() *corpus.Corpus { return s.corpus }

// Search runs a substring search.
func (s *Service) Search(query string) []Result {
	return Substring(s.corpus, query)
}

// Semantic runs an embedding search. Queries shorter than MinQueryLen
// return nothing.
func (s *Service) Semantic(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.index == nil {
		return nil, ErrNoIndex
	}
	if _, ok := Normalize(query); !ok {
		return nil, nil
	}
	return s.index.Query(ctx, query, limit)
}
