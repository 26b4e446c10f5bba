package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	mcpserver "github.com/masskarem1/PHYS.101-Ebook/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing book search, page text, chapters and annotated pages to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		text, err := loadCorpus(cfg, log)
		if err != nil {
			return err
		}
		svc, err := loadSearch(context.Background(), cfg, text, log)
		if err != nil {
			return err
		}

		var store annotate.Store
		database, err := openDB(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("annotations unavailable")
		} else {
			defer database.Close()
			store = annotate.NewSQLStore(database, 0)
		}

		pagesWithText := 0
		if text != nil {
			pagesWithText = text.Len()
		}
		fmt.Fprintf(os.Stderr, "flipbook MCP server started on stdio (book=%q, pages with text=%d)\n", cfg.Book.Title, pagesWithText)

		return mcpserver.NewServer(cfg.Book, svc, store).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
