package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// handleSearchBook searches the transcript.
func (s *Server) handleSearchBook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	if s.search == nil {
		return mcp.NewToolResultError("No transcript loaded. Set corpus.path in flipbook.yml."), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 || limit > search.MaxResults {
		limit = 10
	}

	var results []search.Result
	if request.GetString("mode", "substring") == "semantic" {
		results, err = s.search.Semantic(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("semantic search failed: %v", err)), nil
		}
	} else {
		results = s.search.Search(query)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found."), nil
	}
	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

// handleGetPageText returns one page's transcript.
func (s *Server) handleGetPageText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := request.GetInt("page", 0)
	if page < 1 || page > s.book.TotalPages {
		return mcp.NewToolResultError(fmt.Sprintf("page must be between 1 and %d", s.book.TotalPages)), nil
	}
	if s.search == nil {
		return mcp.NewToolResultError("No transcript loaded. Set corpus.path in flipbook.yml."), nil
	}
	text, ok := s.search.Corpus().Text(page)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("No transcript for page %d.", page)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Page %d\n\n%s", page, text)), nil
}

// handleListChapters lists the chapter index.
func (s *Server) handleListChapters(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if len(s.book.Chapters) == 0 {
		return mcp.NewToolResultText("No chapters configured."), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d pages\n", s.book.Title, s.book.TotalPages)
	for _, c := range s.book.Chapters {
		fmt.Fprintf(&sb, "- %s (page %d)\n", c.Title, c.Page)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListAnnotations lists the pages with saved annotation layers.
func (s *Server) handleListAnnotations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.annotations.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing annotations failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No pages are annotated."), nil
	}
	return mcp.NewToolResultText(formatAnnotations(entries)), nil
}

// formatSearchResults renders results for AI agent consumption.
func formatSearchResults(results []search.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "\n--- Result %d ---\nPage: %d\n", i+1, r.Page)
		if r.Score > 0 {
			fmt.Fprintf(&sb, "Similarity: %.1f%%\n", r.Score*100)
		}
		sb.WriteString(r.Snippet)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatAnnotations(entries []annotate.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d annotated page(s):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "- page %d (%dx%d, updated %s)\n", e.Page, e.Width, e.Height, e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}
