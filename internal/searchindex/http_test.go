package searchindex

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadHandler(t *testing.T) {
	svc := NewTestService(t, SamplePages())
	handler := PayloadHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchindex.js", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	p, err := Parse(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, DefaultVarName, p.VarName)
	require.Len(t, p.Records, len(SamplePages()))
	for i, want := range SamplePages() {
		assert.True(t, want.Equal(p.Records[i]))
	}

	// conditional request
	req := httptest.NewRequest(http.MethodGet, "/searchindex.js", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestPayloadHandler_ETagCoversServedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	var bare bytes.Buffer
	require.NoError(t, EncodeJSON(&bare, SamplePages()))
	require.NoError(t, os.WriteFile(path, bare.Bytes(), 0o644))

	svc, err := NewService(TestSettings(path), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })

	rec := httptest.NewRecorder()
	PayloadHandler(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchindex.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	sum := sha256.Sum256(rec.Body.Bytes())
	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, rec.Header().Get("ETag"))
	assert.NotEqual(t, `"`+svc.current.Load().Checksum+`"`, rec.Header().Get("ETag"))
}

func TestPayloadHandler_IfNoneMatch(t *testing.T) {
	svc := NewTestService(t, SamplePages())
	handler := PayloadHandler(svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchindex.js", nil))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"exact", etag, http.StatusNotModified},
		{"weak", "W/" + etag, http.StatusNotModified},
		{"in list", `"stale", ` + etag, http.StatusNotModified},
		{"wildcard", "*", http.StatusNotModified},
		{"stale", `"stale"`, http.StatusOK},
		{"unquoted", strings.Trim(etag, `"`), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/searchindex.js", nil)
			req.Header.Set("If-None-Match", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, etag, rec.Header().Get("ETag"))
		})
	}
}

func TestPayloadHandler_NotReady(t *testing.T) {
	svc, err := NewService(TestSettings(filepath.Join(t.TempDir(), "missing.js")), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	PayloadHandler(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchindex.js", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func decodeSearchResponse(t *testing.T, rec *httptest.ResponseRecorder) SearchResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSearchAPIHandler_Substring(t *testing.T) {
	handler := SearchAPIHandler(NewTestService(t, SamplePages()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=rate+limiting&limit=1", nil))

	resp := decodeSearchResponse(t, rec)
	assert.Equal(t, "rate limiting", resp.Query)
	assert.Equal(t, "substring", resp.Mode)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/plugins/rate-limiting/index.html", resp.Results[0].URI)
	assert.Equal(t, "title", resp.Results[0].Matched)
	assert.Equal(t, []string{"plugins", "traffic"}, resp.Results[0].Tags)
}

func TestSearchAPIHandler_EmptyQuery(t *testing.T) {
	handler := SearchAPIHandler(NewTestService(t, SamplePages()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	resp := decodeSearchResponse(t, rec)
	assert.Equal(t, len(SamplePages()), resp.Total)
	require.Len(t, resp.Results, len(SamplePages()))
	for i, want := range SamplePages() {
		assert.Equal(t, want.URI, resp.Results[i].URI)
		assert.Empty(t, resp.Results[i].Matched)
	}
}

func TestSearchAPIHandler_FullText(t *testing.T) {
	handler := SearchAPIHandler(NewTestService(t, SamplePages()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=insomnia&mode=fulltext", nil))

	resp := decodeSearchResponse(t, rec)
	assert.Equal(t, "fulltext", resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "/index.html", resp.Results[0].URI)
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestSearchAPIHandler_BadRequests(t *testing.T) {
	handler := SearchAPIHandler(NewTestService(t, SamplePages()))

	tests := []struct {
		name     string
		method   string
		target   string
		wantCode int
	}{
		{"post", http.MethodPost, "/api/search?q=kong", http.StatusMethodNotAllowed},
		{"negative limit", http.MethodGet, "/api/search?q=kong&limit=-1", http.StatusBadRequest},
		{"non-numeric limit", http.MethodGet, "/api/search?q=kong&limit=ten", http.StatusBadRequest},
		{"unknown mode", http.MethodGet, "/api/search?q=kong&mode=regex", http.StatusBadRequest},
		{"fulltext without query", http.MethodGet, "/api/search?mode=fulltext", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestSearchAPIHandler_NotReady(t *testing.T) {
	svc, err := NewService(TestSettings(filepath.Join(t.TempDir(), "missing.js")), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	SearchAPIHandler(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=kong", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
