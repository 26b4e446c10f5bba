package config

// phys101Chapters is the chapter index of the PHYS 101 book.
var phys101Chapters = []Chapter{
	{Title: "CHAPTER 1 – Physics and Measurements", Page: 9},
	{Title: "CHAPTER 2 – Solids and Elasticity", Page: 41},
	{Title: "CHAPTER 3 – Fluids", Page: 63},
	{Title: "CHAPTER 4 – Thermal Physics", Page: 135},
	{Title: "CHAPTER 5 – Waves and Sound", Page: 217},
	{Title: "APPENDIX", Page: 279},
}

// DefaultConfig returns a Config for the PHYS 101 book with sensible defaults.
func DefaultConfig() *Config {
	chapters := make([]Chapter, len(phys101Chapters))
	copy(chapters, phys101Chapters)

	return &Config{
		Book: BookConfig{
			Title:      "PHYS 101",
			TotalPages: 292,
			AssetDir:   ".",
			ImagePath:  "images/Book_PHYS101_",
			ThumbPath:  "thumbs/Book_PHYS101_",
			PadWidth:   3,
			Ext:        ".jpg",
			ThumbWidth: 160,
			Chapters:   chapters,
			Simulations: []Media{
				{Page: 9, URL: "https://phet.colorado.edu/sims/html/curve-fitting/latest/curve-fitting_all.html"},
				{Page: 45, URL: "https://phet.colorado.edu/sims/html/masses-and-springs-basics/latest/masses-and-springs-basics_all.html"},
			},
			Videos: []Media{
				{Page: 10, URL: "https://www.youtube.com/watch?v=JieVY0q1Ypg"},
				{Page: 48, URL: "https://youtube.com/shorts/-H4oOfKtPDw?si=Jv94nlu73WhiL7M1"},
			},
		},
		Corpus: CorpusConfig{
			Path:           "book-text.json",
			Indexing:       IndexingOneBased,
			EmbeddingModel: "text-embedding-3-small",
		},
		Annotate: AnnotateConfig{
			Tool:      ToolMarker,
			Color:     "rgba(255,255,0,0.4)",
			BrushSize: 40,
		},
		AI: AIConfig{
			Language:          "en",
			Tone:              "friendly",
			TranslateLanguage: "ar",
			MaxRetries:        3,
			RetryBackoffMS:    1000,
			TimeoutSeconds:    60,
			Provider:          ProviderOpenAI,
			Model:             "gpt-4o-mini",
			RequestsPerMinute: 30,
		},
		Login: LoginConfig{
			MinDigits: 6,
			MaxDigits: 12,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		DataDir:  ".flipbook",
		LogLevel: "info",
	}
}
