package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sha1n/mcp-sitesearch-server/internal/auth"
	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
)

// StartSSEServer starts the SSE server with authentication
func StartSSEServer(instance *Instance, settings *config.Settings) error {
	srv, err := NewSSEServer(instance, settings)
	if err != nil {
		return err
	}

	slog.Info("Server listening (HTTP)", "addr", srv.Addr, "auth_type", settings.Auth.Type)
	return srv.ListenAndServe()
}

// NewSSEServer creates the HTTP server: MCP over SSE, health, metrics and the
// search index endpoints, behind the authentication middleware
func NewSSEServer(instance *Instance, settings *config.Settings) (*http.Server, error) {
	// Factory function returns the server instance for each request
	sseHandler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return instance.MCP
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(instance.Search))
	mux.Handle("/sse", sseHandler)

	if instance.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(instance.Registry, promhttp.HandlerOpts{}))
	}
	if instance.Search != nil {
		mux.Handle("/searchindex.js", searchindex.PayloadHandler(instance.Search))
		mux.Handle("/api/search", searchindex.SearchAPIHandler(instance.Search))
	}

	authMiddleware, err := auth.NewMiddleware(settings.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}

	handler := authMiddleware(mux)
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}, nil
}

// healthHandler always answers ok; search readiness is reported in the
// X-Search-Index header
func healthHandler(svc *searchindex.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if svc != nil {
			status := "ready"
			if !svc.IsReady() {
				status = "disabled"
			}
			w.Header().Set("X-Search-Index", status)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
