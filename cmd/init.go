package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize flipbook configuration with an interactive wizard",
	Long:  `Runs an interactive wizard describing the book (page count, image paths, AI proxy, language) and writes flipbook.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		fmt.Printf("\nConfigured %q with %d pages. Run `flipbook thumbs` then `flipbook serve`.\n", cfg.Book.Title, cfg.Book.TotalPages)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
