package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where the wizard writes the configuration.
const DefaultPath = "flipbook.yml"

// detectImagePrefix looks for page images in the usual places and returns
// the shared prefix of the first match, e.g. "images/Book_PHYS101_".
func detectImagePrefix(ext string) string {
	for _, dir := range []string{"images", "pages"} {
		matches, _ := filepath.Glob(filepath.Join(dir, "*"+ext))
		if len(matches) == 0 {
			continue
		}
		name := filepath.Base(matches[0])
		i := len(name) - len(ext)
		for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
			i--
		}
		return filepath.ToSlash(filepath.Join(dir, name[:i]))
	}
	return ""
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to flipbook.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to flipbook! Let's describe your book.")
	fmt.Println()

	cfg := DefaultConfig()

	titlePrompt := promptui.Prompt{Label: "Book title", Default: cfg.Book.Title}
	title, err := titlePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	cfg.Book.Title = title

	pagesPrompt := promptui.Prompt{
		Label:    "Total pages",
		Default:  strconv.Itoa(cfg.Book.TotalPages),
		Validate: validatePositiveInt,
	}
	pagesStr, err := pagesPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("total pages: %w", err)
	}
	cfg.Book.TotalPages, _ = strconv.Atoi(pagesStr)

	imageDefault := cfg.Book.ImagePath
	if detected := detectImagePrefix(cfg.Book.Ext); detected != "" {
		fmt.Printf("Detected page images: %s*%s\n\n", detected, cfg.Book.Ext)
		imageDefault = detected
	}
	imagePrompt := promptui.Prompt{Label: "Page image prefix", Default: imageDefault}
	if cfg.Book.ImagePath, err = imagePrompt.Run(); err != nil {
		return nil, fmt.Errorf("image prefix: %w", err)
	}

	indexingPrompt := promptui.Select{
		Label: "How are pages keyed in book-text.json?",
		Items: []string{
			"one_based: key \"1\" is page 1",
			"zero_based: key \"0\" is page 1",
			"auto: probe the file for key \"0\"",
		},
	}
	idx, _, err := indexingPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("indexing selection: %w", err)
	}
	cfg.Corpus.Indexing = []Indexing{IndexingOneBased, IndexingZeroBased, IndexingAuto}[idx]

	proxyPrompt := promptui.Prompt{
		Label:   "AI proxy URL (blank to use the built-in endpoint)",
		Default: cfg.AI.ProxyURL,
	}
	if cfg.AI.ProxyURL, err = proxyPrompt.Run(); err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}

	langPrompt := promptui.Select{
		Label: "AI helper language",
		Items: []string{"en", "ar"},
	}
	if _, cfg.AI.Language, err = langPrompt.Run(); err != nil {
		return nil, fmt.Errorf("language selection: %w", err)
	}

	if cfg.AI.ProxyURL == "" {
		if envVar := APIKeyEnvVar(cfg.AI.Provider); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running flipbook serve.\n", envVar)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}
