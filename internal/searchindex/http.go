package searchindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

// SearchResponse is the JSON body of the search API.
type SearchResponse struct {
	Query   string       `json:"query"`
	Mode    string       `json:"mode"`
	Total   int          `json:"total"`
	Results []SearchItem `json:"results"`
}

// SearchItem is one result of the search API.
type SearchItem struct {
	domain.PageRecord
	Matched string  `json:"matched,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// PayloadHandler serves the current index in the generator's format.
func PayloadHandler(svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, release, err := svc.Acquire()
		if err != nil {
			http.Error(w, "search index not available", http.StatusServiceUnavailable)
			return
		}
		records, varName := snap.Store.Records(), snap.VarName
		release()

		var buf bytes.Buffer
		if err := Encode(&buf, varName, records); err != nil {
			slog.Error("Failed to encode search index", "error", err)
			http.Error(w, "failed to encode search index", http.StatusInternalServerError)
			return
		}

		sum := sha256.Sum256(buf.Bytes())
		etag := `"` + hex.EncodeToString(sum[:]) + `"`
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
}

// etagMatches applies the weak comparison of If-None-Match against etag.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// SearchAPIHandler serves GET /api/search?q=&mode=&limit= as JSON.
func SearchAPIHandler(svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		settings := svc.GetSettings()
		q := r.URL.Query()
		text := q.Get("q")
		mode := q.Get("mode")
		if mode == "" {
			mode = settings.DefaultMode
		}
		limit := settings.MaxResults
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, settings.MaxResults)
		}

		resp := SearchResponse{Query: text, Mode: mode, Results: []SearchItem{}}
		switch mode {
		case config.SearchModeSubstring:
			matches, err := svc.Query(text)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp.Total = len(matches)
			for _, m := range matches[:min(limit, len(matches))] {
				item := SearchItem{PageRecord: m.Record}
				if m.Relevance != RelevanceNone {
					item.Matched = m.Relevance.String()
				}
				resp.Results = append(resp.Results, item)
			}

		case config.SearchModeFullText:
			if strings.TrimSpace(text) == "" {
				http.Error(w, "q is required in fulltext mode", http.StatusBadRequest)
				return
			}
			results, err := svc.Search(text, limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			resp.Total = int(results.Total)
			for _, hit := range results.Hits {
				resp.Results = append(resp.Results, SearchItem{PageRecord: hit.Record, Score: hit.Score})
			}

		default:
			http.Error(w, "unknown mode: "+mode, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("Failed to write search response", "error", err)
		}
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotReady) {
		http.Error(w, "search index not available", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
