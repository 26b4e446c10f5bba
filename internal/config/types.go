package config

// Indexing says how the keys of the text corpus map to page numbers.
type Indexing string

const (
	// IndexingOneBased means key "1" holds page 1.
	IndexingOneBased Indexing = "one_based"
	// IndexingZeroBased means key "0" holds page 1.
	IndexingZeroBased Indexing = "zero_based"
	// IndexingAuto probes the corpus: zero-based when it has key "0" but not "1".
	IndexingAuto Indexing = "auto"
)

// ToolName identifies an annotation tool.
type ToolName string

const (
	ToolPen    ToolName = "pen"
	ToolMarker ToolName = "marker"
	ToolEraser ToolName = "eraser"
)

// ProviderType identifies the LLM provider behind the built-in AI endpoint.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level flipbook configuration, corresponding to flipbook.yml.
type Config struct {
	Book     BookConfig     `yaml:"book" koanf:"book"`
	Corpus   CorpusConfig   `yaml:"corpus" koanf:"corpus"`
	Annotate AnnotateConfig `yaml:"annotate" koanf:"annotate"`
	AI       AIConfig       `yaml:"ai" koanf:"ai"`
	Login    LoginConfig    `yaml:"login" koanf:"login"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	DataDir  string         `yaml:"data_dir" koanf:"data_dir"`
	LogLevel string         `yaml:"log_level" koanf:"log_level"`
}

// BookConfig describes the page images and the book's navigation aids.
type BookConfig struct {
	Title       string    `yaml:"title" koanf:"title"`
	TotalPages  int       `yaml:"total_pages" koanf:"total_pages"`
	AssetDir    string    `yaml:"asset_dir" koanf:"asset_dir"`
	ImagePath   string    `yaml:"image_path" koanf:"image_path"`
	ThumbPath   string    `yaml:"thumb_path" koanf:"thumb_path"`
	PadWidth    int       `yaml:"pad_width" koanf:"pad_width"`
	Ext         string    `yaml:"ext" koanf:"ext"`
	ThumbWidth  int       `yaml:"thumb_width" koanf:"thumb_width"`
	Chapters    []Chapter `yaml:"chapters" koanf:"chapters"`
	Simulations []Media   `yaml:"simulations" koanf:"simulations"`
	Videos      []Media   `yaml:"videos" koanf:"videos"`
}

// Chapter is one entry of the chapter index.
type Chapter struct {
	Title string `yaml:"title" koanf:"title" json:"title"`
	Page  int    `yaml:"page" koanf:"page" json:"page"`
}

// Media binds an external resource (simulation or video) to a page.
type Media struct {
	Page int    `yaml:"page" koanf:"page" json:"page"`
	URL  string `yaml:"url" koanf:"url" json:"url"`
}

// CorpusConfig locates the page transcript used for search and the AI helper.
type CorpusConfig struct {
	Path     string   `yaml:"path" koanf:"path"`
	Indexing Indexing `yaml:"indexing" koanf:"indexing"`
	// Semantic enables the embedding-backed search index next to the substring search.
	Semantic       bool   `yaml:"semantic" koanf:"semantic"`
	EmbeddingModel string `yaml:"embedding_model" koanf:"embedding_model"`
	// EmbeddingDimensions shortens OpenAI vectors; 0 keeps the model default.
	EmbeddingDimensions int `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
}

// AnnotateConfig holds the initial tool settings of a new viewer session.
type AnnotateConfig struct {
	Tool      ToolName `yaml:"tool" koanf:"tool"`
	Color     string   `yaml:"color" koanf:"color"`
	BrushSize int      `yaml:"brush_size" koanf:"brush_size"`
}

// AIConfig configures the AI helper client and the built-in proxy endpoint.
type AIConfig struct {
	ProxyURL          string       `yaml:"proxy_url" koanf:"proxy_url"`
	Language          string       `yaml:"language" koanf:"language"`
	Tone              string       `yaml:"tone" koanf:"tone"`
	TranslateLanguage string       `yaml:"translate_language" koanf:"translate_language"`
	MaxRetries        int          `yaml:"max_retries" koanf:"max_retries"`
	RetryBackoffMS    int          `yaml:"retry_backoff_ms" koanf:"retry_backoff_ms"`
	TimeoutSeconds    int          `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// LoginConfig controls the optional student login.
type LoginConfig struct {
	Required  bool `yaml:"required" koanf:"required"`
	MinDigits int  `yaml:"min_digits" koanf:"min_digits"`
	MaxDigits int  `yaml:"max_digits" koanf:"max_digits"`
}

// ServerConfig holds HTTP settings for `flipbook serve`.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
