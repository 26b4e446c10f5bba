package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the book transcript",
	Long:  `Searches the page transcript for a phrase (case-insensitive substring) or, with --semantic, by meaning using the embedding index.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().Bool("semantic", false, "search by meaning with the embedding index")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	limit, _ := cmd.Flags().GetInt("limit")
	semantic, _ := cmd.Flags().GetBool("semantic")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if semantic {
		cfg.Corpus.Semantic = true
	}
	log := newLogger(cfg)

	text, err := loadCorpus(cfg, log)
	if err != nil {
		return err
	}
	if text == nil {
		return fmt.Errorf("no transcript at %s; set corpus.path in %s", cfg.Corpus.Path, cfgFile)
	}
	svc, err := loadSearch(ctx, cfg, text, log)
	if err != nil {
		return err
	}

	var results []search.Result
	if semantic {
		results, err = svc.Semantic(ctx, args[0], limit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	} else {
		results = svc.Search(args[0])
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if jsonOutput {
		if results == nil {
			results = []search.Result{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		if r.Score > 0 {
			fmt.Printf("  %d. [%.1f%%] page %d\n", i+1, r.Score*100, r.Page)
		} else {
			fmt.Printf("  %d. page %d\n", i+1, r.Page)
		}
		fmt.Printf("     %s\n\n", r.Snippet)
	}
	return nil
}
