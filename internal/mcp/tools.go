package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchBookTool defines the search_book MCP tool.
var searchBookTool = mcp.NewTool("search_book",
	mcp.WithDescription("Search the textbook transcript. Returns matching pages with a snippet around the match."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Text to look for (at least 2 characters)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10, at most 50)"),
	),
	mcp.WithString("mode",
		mcp.Description("substring matches the exact text; semantic ranks pages by meaning when an index is built"),
		mcp.Enum("substring", "semantic"),
	),
)

// getPageTextTool defines the get_page_text MCP tool.
var getPageTextTool = mcp.NewTool("get_page_text",
	mcp.WithDescription("Get the transcript of one textbook page."),
	mcp.WithNumber("page",
		mcp.Required(),
		mcp.Description("Page number, starting at 1"),
	),
)

// listChaptersTool defines the list_chapters MCP tool.
var listChaptersTool = mcp.NewTool("list_chapters",
	mcp.WithDescription("List the chapters of the textbook with their first page."),
)

// listAnnotationsTool defines the list_annotations MCP tool.
var listAnnotationsTool = mcp.NewTool("list_annotations",
	mcp.WithDescription("List the pages the reader has highlighted or drawn on."),
)
