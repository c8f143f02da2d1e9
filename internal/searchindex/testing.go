package searchindex

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

// SamplePages returns a small workshop site index.
// This is exported for use in integration tests.
func SamplePages() []domain.PageRecord {
	return []domain.PageRecord{
		{
			Breadcrumb:  "",
			Content:     "Learning Objectives. Get an architectural overview of the Kong Konnect platform. Deploy a sample microservice and apply proxy caching and rate limiting.",
			Description: "Learning Objectives. Get an architectural overview of the Kong Konnect platform.",
			Tags:        []string{},
			Title:       "APIOps with Kong Konnect and Insomnia",
			URI:         "/index.html",
		},
		{
			Breadcrumb:  "APIOps with Kong Konnect and Insomnia",
			Content:     "Configure the rate limiting plugin on a route to protect upstream services.",
			Description: "Configure the rate limiting plugin.",
			Tags:        []string{"plugins", "traffic"},
			Title:       "Rate Limiting",
			URI:         "/plugins/rate-limiting/index.html",
		},
		{
			Breadcrumb:  "APIOps with Kong Konnect and Insomnia",
			Content:     "",
			Description: "",
			Tags:        []string{},
			Title:       "Categories",
			URI:         "/categories/index.html",
		},
		{
			Breadcrumb:  "APIOps with Kong Konnect and Insomnia",
			Content:     "",
			Description: "",
			Tags:        []string{},
			Title:       "Tags",
			URI:         "/tags/index.html",
		},
	}
}

// WriteTestPayload writes records as a payload file in dir and returns its path.
func WriteTestPayload(t testing.TB, dir string, records []domain.PageRecord) string {
	t.Helper()
	path := filepath.Join(dir, "searchindex.en.js")
	var buf bytes.Buffer
	if err := Encode(&buf, DefaultVarName, records); err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}
	return path
}

// TestSettings returns search index settings pointing at path.
func TestSettings(path string) *config.SearchIndexSettings {
	return &config.SearchIndexSettings{
		Path:          path,
		VarName:       DefaultVarName,
		WatchDebounce: 20 * time.Millisecond,
		MaxResults:    20,
		DefaultMode:   config.SearchModeSubstring,
	}
}

// NewTestService creates a service over records and loads it, closing it on cleanup.
func NewTestService(t testing.TB, records []domain.PageRecord) *Service {
	t.Helper()
	path := WriteTestPayload(t, t.TempDir(), records)
	svc, err := NewService(TestSettings(path), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	if err := svc.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return svc
}
