package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "flipbook",
	Short: "Page-flip viewer for the PHYS 101 e-book",
	Long: `flipbook serves the PHYS 101 page images as an interactive e-book:
page flipping, thumbnails and chapters, pen/marker/eraser annotations saved
per page, zoom and pan, transcript search and an AI study helper.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
