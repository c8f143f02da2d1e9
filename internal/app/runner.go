package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	mcputil "github.com/sha1n/mcp-sitesearch-server/internal/mcp"
	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
	"github.com/spf13/pflag"
)

// Instance bundles the MCP server with the components the HTTP surface serves
type Instance struct {
	MCP      *mcp.Server
	Search   *searchindex.Service
	Registry *prometheus.Registry
}

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*Instance, *config.Settings) error
	CreateServer      func(*config.Settings) (*Instance, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// stderr keeps stdout free for the stdio transport
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting site search MCP server", "version", version)
	config.Log(settings)

	instance, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return instance.MCP.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(instance, settings)
}

// CreateMCPServer loads the search index and creates the MCP server with its tools.
// A payload that fails to load leaves the tools registered but disabled.
func CreateMCPServer(settings *config.Settings) (*Instance, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := searchindex.NewService(&settings.SearchIndex, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create search index service: %w", err)
	}

	if err := svc.Initialize(context.Background()); err != nil {
		slog.Error("Search index initialization failed, search is disabled until a valid payload is loaded", "error", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if settings.SearchIndex.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Watch(watchCtx); err != nil {
				slog.Error("Search index watcher stopped", "error", err)
			}
		}()
	}

	cleanup := func() {
		cancel()
		wg.Wait()
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close search index service", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:      "sitesearch-mcp",
		Version:   "1.0.0",
		SearchSvc: svc,
	})

	return &Instance{MCP: server, Search: svc, Registry: registry}, cleanup, nil
}
