package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/progress"
	"github.com/masskarem1/PHYS.101-Ebook/internal/thumbs"
)

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Generate thumbnails from the page images",
	Long:  `Scales every page image found under book.asset_dir to book.thumb_width and writes it to the thumbnail path. Existing thumbnails are kept unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		gen := thumbs.New(assetFS(cfg), pages.NewAssets(cfg.Book), cfg.Book.AssetDir, cfg.Book.ThumbWidth, log)
		gen.Force = force

		report, err := gen.Generate(context.Background(), progress.NewReporter("Generating thumbnails"))
		if err != nil {
			return err
		}
		fmt.Printf("Thumbnails: %d written, %d kept\n", report.Written, report.Skipped)
		return nil
	},
}

func init() {
	thumbsCmd.Flags().Bool("force", false, "rewrite existing thumbnails")
	rootCmd.AddCommand(thumbsCmd)
}
