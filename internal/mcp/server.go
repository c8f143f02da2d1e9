package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name      string
	Version   string
	SearchSvc *searchindex.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	// Without a search service the server only answers protocol requests
	if cfg.SearchSvc != nil {
		searchindex.RegisterSearchTool(s, cfg.SearchSvc)
		searchindex.RegisterReadTool(s, cfg.SearchSvc)
	}

	return s
}
