package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sha1n/mcp-sitesearch-server/internal/searchindex"
	"github.com/spf13/cobra"
)

func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommand_Substring(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewQueryCommand(), "--index", path, "RATE LIMITING")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 result lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "1. Rate Limiting\t/plugins/rate-limiting/index.html\ttitle") {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "/index.html\tcontent") {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
}

func TestQueryCommand_NoTextListsAll(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewQueryCommand(), "-i", path, "--limit", "2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "1. APIOps with Kong Konnect and Insomnia") {
		t.Errorf("Expected first page in load order, got: %q", out)
	}
	if !strings.Contains(out, "... and 2 more pages") {
		t.Errorf("Expected truncation notice, got: %q", out)
	}
}

func TestQueryCommand_JSON(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewQueryCommand(), "-i", path, "--json", "tag")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records, err := searchindex.Load(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Output is not a valid payload: %v", err)
	}
	if len(records) != 1 || records[0].URI != "/tags/index.html" {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestQueryCommand_FullText(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewQueryCommand(), "-i", path, "--mode", "fulltext", "upstream")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "/plugins/rate-limiting/index.html") {
		t.Errorf("Expected rate limiting page, got: %q", out)
	}
}

func TestQueryCommand_NoResults(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewQueryCommand(), "-i", path, "kubernetes")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "No pages found" {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestQueryCommand_Errors(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"-i", path, "--mode", "regex", "kong"}},
		{"fulltext without text", []string{"-i", path, "--mode", "fulltext"}},
		{"missing file", []string{"-i", filepath.Join(t.TempDir(), "missing.js"), "kong"}},
		{"too many args", []string{"-i", path, "kong", "konnect"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, NewQueryCommand(), tt.args...); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestValidateCommand_Valid(t *testing.T) {
	path := searchindex.WriteTestPayload(t, t.TempDir(), searchindex.SamplePages())

	out, err := executeCommand(t, NewValidateCommand(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := path + ": 4 pages, 1 tagged, variable relearn_searchindex\n"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestValidateCommand_Print(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create payload: %v", err)
	}
	if err := searchindex.EncodeJSON(f, searchindex.SamplePages()); err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	_ = f.Close()

	out, err := executeCommand(t, NewValidateCommand(), "--index", path, "--index-var", "site_index", "--print")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "var site_index = [\n") {
		t.Errorf("Expected generator format, got: %q", out[:min(len(out), 40)])
	}

	p, err := searchindex.Parse([]byte(out))
	if err != nil {
		t.Fatalf("Printed payload does not parse: %v", err)
	}
	if len(p.Records) != len(searchindex.SamplePages()) {
		t.Errorf("Expected %d records, got %d", len(searchindex.SamplePages()), len(p.Records))
	}
}

func TestValidateCommand_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchindex.en.js")
	src := `var relearn_searchindex = [{"breadcrumb":"","content":"","description":"","tags":"x","title":"T","uri":"/"}]`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}

	_, err := executeCommand(t, NewValidateCommand(), path)
	if err == nil {
		t.Fatal("Expected error for malformed payload")
	}

	var fe *searchindex.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FormatError, got %T: %v", err, err)
	}
	if fe.Record != 0 || fe.Field != "tags" {
		t.Errorf("Expected record 0 field tags, got record %d field %q", fe.Record, fe.Field)
	}
}
