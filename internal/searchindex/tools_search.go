package searchindex

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

// maxExcerptRunes bounds the description excerpt printed per result.
const maxExcerptRunes = 200

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query string `json:"query" jsonschema:"Text to look for in page titles, tags and content"`
	Mode  string `json:"mode,omitempty" jsonschema:"Search mode: substring (case-insensitive, title matches first) or fulltext (analyzed, scored)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results"`
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is disabled: %s", notReadyReason(h.service)), nil, nil
	}

	settings := h.service.GetSettings()
	mode := args.Mode
	if mode == "" {
		mode = settings.DefaultMode
	}
	limit := args.Limit
	if limit <= 0 || limit > settings.MaxResults {
		limit = settings.MaxResults
	}

	switch mode {
	case config.SearchModeSubstring:
		matches, err := h.service.Query(args.Query)
		if err != nil {
			return errorResult("Search failed: %s", err), nil, nil
		}
		return formatMatches(matches, args.Query, limit), nil, nil

	case config.SearchModeFullText:
		if strings.TrimSpace(args.Query) == "" {
			return errorResult("Query cannot be empty in fulltext mode"), nil, nil
		}
		results, err := h.service.Search(args.Query, limit)
		if err != nil {
			return errorResult("Search failed: %s", err), nil, nil
		}
		return formatFullText(results, args.Query), nil, nil

	default:
		return errorResult("Unknown search mode %q (expected %s or %s)", mode, config.SearchModeSubstring, config.SearchModeFullText), nil, nil
	}
}

func notReadyReason(s *Service) string {
	if err := s.LastError(); err != nil {
		return err.Error()
	}
	return ErrNotReady.Error()
}

// formatMatches formats substring matches for MCP response.
func formatMatches(matches []Match, queryStr string, limit int) *mcp.CallToolResult {
	if len(matches) == 0 {
		return textResult(fmt.Sprintf("No pages found for query: %s", queryStr))
	}

	var sb strings.Builder
	if strings.TrimSpace(queryStr) == "" {
		fmt.Fprintf(&sb, "Index contains %d pages:\n\n", len(matches))
	} else {
		fmt.Fprintf(&sb, "Found %d pages for '%s':\n\n", len(matches), queryStr)
	}

	shown := min(limit, len(matches))
	for i, m := range matches[:shown] {
		writePage(&sb, i+1, m.Record)
		if m.Relevance != RelevanceNone {
			fmt.Fprintf(&sb, "**Matched**: %s\n", m.Relevance)
		}
		sb.WriteString("\n")
	}

	if len(matches) > shown {
		fmt.Fprintf(&sb, "... and %d more pages\n", len(matches)-shown)
	}
	return textResult(sb.String())
}

// formatFullText formats Bleve hits for MCP response.
func formatFullText(results *FullTextResult, queryStr string) *mcp.CallToolResult {
	if results.Total == 0 {
		return textResult(fmt.Sprintf("No pages found for query: %s", queryStr))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d pages for '%s':\n\n", results.Total, queryStr)

	for i, hit := range results.Hits {
		writePage(&sb, i+1, hit.Record)
		fmt.Fprintf(&sb, "**Score**: %.4f\n", hit.Score)
		if len(hit.Fragments) > 0 {
			sb.WriteString("```\n")
			for _, fragment := range hit.Fragments {
				sb.WriteString(fragment)
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		}
		sb.WriteString("\n")
	}

	if results.Total > uint64(len(results.Hits)) {
		fmt.Fprintf(&sb, "... and %d more pages\n", results.Total-uint64(len(results.Hits)))
	}
	return textResult(sb.String())
}

func writePage(sb *strings.Builder, n int, rec domain.PageRecord) {
	fmt.Fprintf(sb, "### %d. %s\n", n, rec.Title)
	fmt.Fprintf(sb, "**URI**: %s\n", rec.URI)
	if rec.Breadcrumb != "" {
		fmt.Fprintf(sb, "**Breadcrumb**: %s\n", rec.Breadcrumb)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(sb, "**Tags**: %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Description != "" {
		fmt.Fprintf(sb, "> %s\n", excerpt(rec.Description, maxExcerptRunes))
	}
}

// excerpt shortens s to at most n runes on a single line.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_pages",
		Description: "Search the pages of the documentation site by title, tags and content",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

