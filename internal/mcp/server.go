// Package mcp exposes the book to AI agents over the Model Context
// Protocol: search, page text, chapters and annotated pages.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes book tools.
type Server struct {
	book        config.BookConfig
	search      *search.Service
	annotations annotate.Store
	mcp         *server.MCPServer
}

// NewServer creates a new MCP server. annotations may be nil.
func NewServer(book config.BookConfig, svc *search.Service, annotations annotate.Store) *Server {
	s := &Server{
		book:        book,
		search:      svc,
		annotations: annotations,
	}

	s.mcp = server.NewMCPServer(
		"flipbook",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchBookTool, s.handleSearchBook)
	s.mcp.AddTool(getPageTextTool, s.handleGetPageText)
	s.mcp.AddTool(listChaptersTool, s.handleListChapters)
	if s.annotations != nil {
		s.mcp.AddTool(listAnnotationsTool, s.handleListAnnotations)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
