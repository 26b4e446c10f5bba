package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: FLIPBOOK_AI__PROXY_URL sets ai.proxy_url.
const EnvPrefix = "FLIPBOOK_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (FLIPBOOK_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Lists from the file replace the defaults instead of being merged index by index.
	if k.Exists("book.chapters") {
		cfg.Book.Chapters = nil
	}
	if k.Exists("book.simulations") {
		cfg.Book.Simulations = nil
	}
	if k.Exists("book.videos") {
		cfg.Book.Videos = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps FLIPBOOK_AI__PROXY_URL to ai.proxy_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validIndexing = map[Indexing]bool{
	IndexingOneBased:  true,
	IndexingZeroBased: true,
	IndexingAuto:      true,
}

var validTools = map[ToolName]bool{
	ToolPen:    true,
	ToolMarker: true,
	ToolEraser: true,
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	b := c.Book
	if b.TotalPages <= 0 {
		return fmt.Errorf("book.total_pages must be positive")
	}
	if b.ImagePath == "" {
		return fmt.Errorf("book.image_path is required")
	}
	if b.PadWidth < 0 {
		return fmt.Errorf("book.pad_width must be non-negative")
	}
	if !extPattern.MatchString(b.Ext) {
		return fmt.Errorf("invalid book.ext %q: must look like .jpg", b.Ext)
	}
	for _, ch := range b.Chapters {
		if ch.Page < 1 || ch.Page > b.TotalPages {
			return fmt.Errorf("chapter %q starts on page %d, outside 1..%d", ch.Title, ch.Page, b.TotalPages)
		}
	}
	for _, m := range append(append([]Media{}, b.Simulations...), b.Videos...) {
		if m.Page < 1 || m.Page > b.TotalPages {
			return fmt.Errorf("media %s is bound to page %d, outside 1..%d", m.URL, m.Page, b.TotalPages)
		}
		if m.URL == "" {
			return fmt.Errorf("media on page %d has no url", m.Page)
		}
	}

	if !validIndexing[c.Corpus.Indexing] {
		return fmt.Errorf("invalid corpus.indexing %q: must be one of one_based, zero_based, auto", c.Corpus.Indexing)
	}
	if c.Corpus.EmbeddingDimensions < 0 {
		return fmt.Errorf("corpus.embedding_dimensions must be non-negative")
	}

	if !validTools[c.Annotate.Tool] {
		return fmt.Errorf("invalid annotate.tool %q: must be one of pen, marker, eraser", c.Annotate.Tool)
	}
	if c.Annotate.BrushSize <= 0 {
		return fmt.Errorf("annotate.brush_size must be positive")
	}

	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must be non-negative")
	}
	if c.AI.RetryBackoffMS < 0 {
		return fmt.Errorf("ai.retry_backoff_ms must be non-negative")
	}
	if c.AI.Provider != "" && !validProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider %q: must be one of openai, anthropic, ollama", c.AI.Provider)
	}

	if c.Login.MinDigits <= 0 || c.Login.MaxDigits < c.Login.MinDigits {
		return fmt.Errorf("login digits range %d..%d is invalid", c.Login.MinDigits, c.Login.MaxDigits)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
