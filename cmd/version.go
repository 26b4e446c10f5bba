package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/masskarem1/PHYS.101-Ebook/internal/mcp"
)

// Version is set via ldflags at build time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of flipbook",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flipbook %s\n", Version)
	},
}

func init() {
	mcpserver.Version = Version
	rootCmd.AddCommand(versionCmd)
}
