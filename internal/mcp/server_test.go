package mcp

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
)

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	server := CreateServer(ServerConfig{})
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("Server connect failed: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Client connect failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func listToolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	return names
}

func TestCreateServer_WithoutSearchService(t *testing.T) {
	session := connect(t, CreateServer(ServerConfig{Name: "test-server", Version: "1.0.0"}))

	if err := session.Ping(context.Background(), nil); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateServer_ToolsRegistered(t *testing.T) {
	svc := searchindex.NewTestService(t, searchindex.SamplePages())
	session := connect(t, CreateServer(ServerConfig{
		Name:      "sitesearch-mcp",
		Version:   "2.0.0",
		SearchSvc: svc,
	}))

	names := listToolNames(t, session)
	want := []string{"get_page", "search_pages"}
	if !slices.Equal(names, want) {
		t.Errorf("Expected tools %v, got %v", want, names)
	}
}

func TestCreateServer_CallSearchTool(t *testing.T) {
	svc := searchindex.NewTestService(t, searchindex.SamplePages())
	session := connect(t, CreateServer(ServerConfig{Name: "sitesearch-mcp", SearchSvc: svc}))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_pages",
		Arguments: map[string]any{"query": "tag"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("Expected success, got error result: %v", res.Content)
	}

	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "/tags/index.html") {
		t.Errorf("Expected /tags/index.html in results, got: %s", text)
	}
}

func TestCreateServer_CallReadTool(t *testing.T) {
	svc := searchindex.NewTestService(t, searchindex.SamplePages())
	session := connect(t, CreateServer(ServerConfig{Name: "sitesearch-mcp", SearchSvc: svc}))

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_page",
		Arguments: map[string]any{"uri": "/index.html"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("Expected success, got error result: %v", res.Content)
	}

	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "# APIOps with Kong Konnect and Insomnia") {
		t.Errorf("Unexpected page output: %s", text)
	}
}
