package searchindex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

const (
	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	titleBoost = 3.0
	tagsBoost  = 2.0
)

// ErrEmptyQuery is returned by full-text searches with blank query text.
var ErrEmptyQuery = errors.New("query cannot be empty")

// FullTextHit is one scored full-text search hit.
type FullTextHit struct {
	Record    domain.PageRecord
	Score     float64
	Fragments []string
}

// FullTextResult holds the hits of a full-text search.
type FullTextResult struct {
	Hits  []FullTextHit
	Total uint64
}

// FullTextIndex is an in-memory Bleve index over a Store.
type FullTextIndex struct {
	index bleve.Index
	store *Store
}

// CreateIndexMapping creates the Bleve index mapping for page records.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Title and content are stemmed for English prose
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = en.AnalyzerName
	titleField.Store = true
	docMapping.AddFieldMappingsAt(domain.PageFieldTitle, titleField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = en.AnalyzerName
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.PageFieldContent, contentField)

	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = en.AnalyzerName
	docMapping.AddFieldMappingsAt(domain.PageFieldDescription, descField)

	// Tags match whole
	tagsField := bleve.NewTextFieldMapping()
	tagsField.Analyzer = keyword.Name
	tagsField.Store = true
	docMapping.AddFieldMappingsAt(domain.PageFieldTags, tagsField)

	breadcrumbField := bleve.NewTextFieldMapping()
	breadcrumbField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(domain.PageFieldBreadcrumb, breadcrumbField)

	// URI is the document ID
	uriField := bleve.NewTextFieldMapping()
	uriField.Index = false
	uriField.Store = true
	docMapping.AddFieldMappingsAt(domain.PageFieldURI, uriField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// NewFullTextIndex indexes every record of store in memory.
func NewFullTextIndex(store *Store) (*FullTextIndex, error) {
	index, err := bleve.NewMemOnly(CreateIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := index.NewBatch()
	for _, rec := range store.records {
		if err := batch.Index(rec.URI, rec); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", rec.URI, err)
		}

		if batch.Size() >= MaxBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("final batch index failed: %w", err)
		}
	}

	return &FullTextIndex{index: index, store: store}, nil
}

// DocCount returns the number of indexed records.
func (f *FullTextIndex) DocCount() (uint64, error) {
	return f.index.DocCount()
}

// Search runs an analyzed query over title, tags, description and content.
func (f *FullTextIndex) Search(text string, limit int) (*FullTextResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(buildQuery(text), limit, 0, false)
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.PageFieldContent)

	res, err := f.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := &FullTextResult{Total: res.Total, Hits: make([]FullTextHit, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		rec, ok := f.store.Get(hit.ID)
		if !ok {
			continue
		}
		out.Hits = append(out.Hits, FullTextHit{
			Record:    rec,
			Score:     hit.Score,
			Fragments: hit.Fragments[domain.PageFieldContent],
		})
	}
	return out, nil
}

// buildQuery ORs field match queries, boosting title and tags.
func buildQuery(text string) query.Query {
	titleQuery := bleve.NewMatchQuery(text)
	titleQuery.SetField(domain.PageFieldTitle)
	titleQuery.SetBoost(titleBoost)

	tagsQuery := bleve.NewMatchQuery(text)
	tagsQuery.SetField(domain.PageFieldTags)
	tagsQuery.SetBoost(tagsBoost)

	descQuery := bleve.NewMatchQuery(text)
	descQuery.SetField(domain.PageFieldDescription)

	contentQuery := bleve.NewMatchQuery(text)
	contentQuery.SetField(domain.PageFieldContent)

	return bleve.NewDisjunctionQuery(titleQuery, tagsQuery, descQuery, contentQuery)
}

// Close releases the index.
func (f *FullTextIndex) Close() error {
	return f.index.Close()
}
