package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/corpus"
	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
	"github.com/masskarem1/PHYS.101-Ebook/internal/embeddings"
	"github.com/masskarem1/PHYS.101-Ebook/internal/logging"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// indexConcurrency bounds parallel embedding calls while building the
// semantic index.
const indexConcurrency = 4

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `flipbook init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger on stderr. Stdout stays free for
// command output and the MCP protocol.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, os.Stderr)
}

// openDB opens the local database under the data directory.
func openDB(cfg *config.Config) (*db.DB, error) {
	path := filepath.Join(cfg.DataDir, "flipbook.db")
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return database, nil
}

// assetFS is the directory holding page images and thumbnails.
func assetFS(cfg *config.Config) fs.FS {
	return os.DirFS(cfg.Book.AssetDir)
}

// newLoader builds the page image loader over the asset directory.
func newLoader(cfg *config.Config, log zerolog.Logger) *pages.Loader {
	return pages.NewLoader(assetFS(cfg), pages.NewAssets(cfg.Book), log)
}

// loadCorpus reads the page transcript. A missing file is not an error:
// search and text-based AI actions are then unavailable.
func loadCorpus(cfg *config.Config, log zerolog.Logger) (*corpus.Corpus, error) {
	if cfg.Corpus.Path == "" {
		return nil, nil
	}
	c, err := corpus.Load(cfg.Corpus.Path, cfg.Corpus.Indexing)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", cfg.Corpus.Path).Msg("no page transcript, search disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info().Int("pages", c.Len()).Str("indexing", string(c.Indexing())).Msg("transcript loaded")
	return c, nil
}

// loadSearch builds the search service over c. When semantic search is
// enabled the persisted index is loaded, or built and persisted when absent.
func loadSearch(ctx context.Context, cfg *config.Config, c *corpus.Corpus, log zerolog.Logger) (*search.Service, error) {
	if c == nil {
		return nil, nil
	}
	if !cfg.Corpus.Semantic {
		return search.NewService(c, nil), nil
	}

	embedder, err := embeddings.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	index, err := search.NewIndex(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating semantic index: %w", err)
	}

	dir := filepath.Join(cfg.DataDir, "index")
	if err := index.Load(dir); err == nil && index.Count() > 0 {
		log.Info().Int("pages", index.Count()).Msg("semantic index loaded")
		return search.NewService(c, index), nil
	}

	log.Info().Int("pages", c.Len()).Str("embedder", embedder.Name()).Msg("building semantic index")
	if err := index.Build(ctx, c, indexConcurrency); err != nil {
		return nil, fmt.Errorf("building semantic index: %w", err)
	}
	if err := index.Persist(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("could not persist semantic index")
	}
	return search.NewService(c, index), nil
}

// newHelper wires the AI helper. recorder may be nil.
func newHelper(cfg *config.Config, c *corpus.Corpus, images aiproxy.PageImages, recorder aiproxy.Recorder, log zerolog.Logger) *aiproxy.Helper {
	client := aiproxy.NewClient(cfg.AI, recorder, log)
	return aiproxy.NewHelper(client, c, images, cfg.AI)
}
