package searchindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadArgument defines read parameters.
type ReadArgument struct {
	URI string `json:"uri" jsonschema:"Page URI as listed in search results (e.g., /tags/index.html)"`
}

// ReadHandler handles the get_page MCP tool.
type ReadHandler struct {
	service *Service
}

// NewReadHandler creates a new read handler.
func NewReadHandler(service *Service) *ReadHandler {
	return &ReadHandler{
		service: service,
	}
}

// Handle looks up a page by URI and returns its full record.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Page lookup is disabled: %s", notReadyReason(h.service)), nil, nil
	}

	uri := strings.TrimSpace(args.URI)
	if uri == "" {
		return errorResult("URI cannot be empty"), nil, nil
	}

	rec, ok, err := h.service.Get(uri)
	if err != nil {
		return errorResult("Page lookup failed: %s", err), nil, nil
	}
	if !ok {
		return errorResult("Page not found: %s", uri), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", rec.Title)
	fmt.Fprintf(&sb, "**URI**: %s\n", rec.URI)
	if rec.Breadcrumb != "" {
		fmt.Fprintf(&sb, "**Breadcrumb**: %s\n", rec.Breadcrumb)
	}
	if len(rec.Tags) > 0 {
		fmt.Fprintf(&sb, "**Tags**: %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Description != "" {
		fmt.Fprintf(&sb, "**Description**: %s\n", rec.Description)
	}
	sb.WriteString("\n")
	if rec.Content == "" {
		sb.WriteString("(this page has no content)\n")
	} else {
		sb.WriteString(rec.Content)
		sb.WriteString("\n")
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_page",
		Description: "Get the full indexed record of a documentation page by its URI",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, service *Service) {
	handler := NewReadHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
