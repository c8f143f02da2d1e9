package searchindex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

// DefaultVarName is the variable the site generator assigns the payload to.
const DefaultVarName = "relearn_searchindex"

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// Matches: var relearn_searchindex = [...]
	assignmentPattern = regexp.MustCompile(`^(?:var|let|const)\s+([A-Za-z_$][\w$]*)\s*=\s*`)

	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// Payload is a decoded search index source.
type Payload struct {
	// VarName is the assigned variable name, empty for a bare JSON array.
	VarName string
	// Records holds the page records in source order.
	Records []domain.PageRecord
}

// Load parses a payload from r and returns its records.
func Load(r io.Reader) ([]domain.PageRecord, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	p, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return p.Records, nil
}

// LoadFile reads and parses the payload file at path.
// I/O failures are returned as-is; malformed content yields a *FormatError.
func LoadFile(path string) (*Payload, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}
	return Parse(src)
}

// Parse decodes either `var NAME = [...]` or a bare JSON array.
func Parse(src []byte) (*Payload, error) {
	body, varName, err := extractArray(src)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		if first, ok := seen[records[i].URI]; ok {
			return nil, &FormatError{
				Reason: fmt.Sprintf("duplicate uri %q (first seen at record %d)", records[i].URI, first),
				Record: i,
				Field:  domain.PageFieldURI,
			}
		}
		seen[records[i].URI] = i
	}

	return &Payload{VarName: varName, Records: records}, nil
}

// extractArray strips the variable assignment around the JSON array, if any.
func extractArray(src []byte) (body []byte, varName string, err error) {
	src = bytes.TrimPrefix(src, utf8BOM)
	src = bytes.TrimSpace(src)

	if m := assignmentPattern.FindSubmatchIndex(src); m != nil {
		varName = string(src[m[2]:m[3]])
		src = src[m[1]:]
		src = bytes.TrimSpace(bytes.TrimSuffix(bytes.TrimSpace(src), []byte(";")))
	}

	if len(src) == 0 {
		return nil, "", newFormatError("empty payload", nil)
	}
	if src[0] != '[' || src[len(src)-1] != ']' {
		return nil, "", newFormatError("payload is not an array of records", nil)
	}
	return src, varName, nil
}

// Encode writes records in the generator's format: `var NAME = [...]`.
// An empty name writes a bare JSON array.
func Encode(w io.Writer, varName string, records []domain.PageRecord) error {
	bw := bufio.NewWriter(w)
	if varName != "" {
		if !identifierPattern.MatchString(varName) {
			return fmt.Errorf("invalid variable name %q", varName)
		}
		if _, err := fmt.Fprintf(bw, "var %s = ", varName); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalize(records)); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return bw.Flush()
}

// EncodeJSON writes records as a bare JSON array.
func EncodeJSON(w io.Writer, records []domain.PageRecord) error {
	return Encode(w, "", records)
}

// normalize guarantees arrays are emitted as [] rather than null.
func normalize(records []domain.PageRecord) []domain.PageRecord {
	out := make([]domain.PageRecord, len(records))
	for i, r := range records {
		if r.Tags == nil {
			r.Tags = []string{}
		}
		out[i] = r
	}
	return out
}
