package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
)

var annotationsCmd = &cobra.Command{
	Use:   "annotations",
	Short: "Manage saved page annotations",
}

var annotationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List annotated pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		_, database, store, err := openAnnotations()
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := store.List(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			if entries == nil {
				entries = []annotate.Entry{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No pages are annotated.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("  page %-4d %dx%d  %6d bytes  %s\n", e.Page, e.Width, e.Height, e.Bytes, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var annotationsClearCmd = &cobra.Command{
	Use:   "clear [page]",
	Short: "Delete the annotations of one page, or of every page with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("give either a page number or --all")
		}
		cfg, database, store, err := openAnnotations()
		if err != nil {
			return err
		}
		defer database.Close()
		ctx := context.Background()

		if !all {
			page, err := parsePage(cfg, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, annotate.Key(page)); err != nil {
				return err
			}
			fmt.Printf("Cleared annotations on page %d\n", page)
			return nil
		}

		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := store.Delete(ctx, e.Key); err != nil {
				return err
			}
		}
		fmt.Printf("Cleared annotations on %d pages\n", len(entries))
		return nil
	},
}

var annotationsExportCmd = &cobra.Command{
	Use:   "export [page]",
	Short: "Write a page's annotation layer to a PNG file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		cfg, database, store, err := openAnnotations()
		if err != nil {
			return err
		}
		defer database.Close()

		page, err := parsePage(cfg, args[0])
		if err != nil {
			return err
		}
		data, err := annotate.NewPersistence(store, newLogger(cfg)).Export(context.Background(), page)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if out == "" {
			out = annotate.Key(page) + ".png"
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	annotationsListCmd.Flags().Bool("json", false, "output as JSON")
	annotationsClearCmd.Flags().Bool("all", false, "clear every page")
	annotationsExportCmd.Flags().StringP("out", "o", "", "output file (default highlights_page_N.png)")
	annotationsCmd.AddCommand(annotationsListCmd, annotationsClearCmd, annotationsExportCmd)
	rootCmd.AddCommand(annotationsCmd)
}

func openAnnotations() (*config.Config, *db.DB, *annotate.SQLStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := openDB(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, database, annotate.NewSQLStore(database, 0), nil
}

func parsePage(cfg *config.Config, s string) (int, error) {
	page, err := strconv.Atoi(s)
	if err != nil || !pages.NewAssets(cfg.Book).Valid(page) {
		return 0, fmt.Errorf("invalid page %q: must be 1..%d", s, cfg.Book.TotalPages)
	}
	return page, nil
}
