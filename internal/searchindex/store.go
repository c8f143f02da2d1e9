package searchindex

import (
	"slices"
	"strings"

	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
	"golang.org/x/text/cases"
)

// Relevance ranks how a record matched a query. Higher is better.
type Relevance int

const (
	// RelevanceNone marks a record returned by an empty query.
	RelevanceNone Relevance = iota
	// RelevanceContent marks a match in the page body only.
	RelevanceContent
	// RelevanceTags marks a match in one of the page tags.
	RelevanceTags
	// RelevanceTitle marks a match in the page title.
	RelevanceTitle
)

func (r Relevance) String() string {
	switch r {
	case RelevanceTitle:
		return domain.PageFieldTitle
	case RelevanceTags:
		return domain.PageFieldTags
	case RelevanceContent:
		return domain.PageFieldContent
	default:
		return "none"
	}
}

// Match is a query hit with the strongest field it matched.
type Match struct {
	Record    domain.PageRecord
	Relevance Relevance
	// Position is the record's index in the loaded sequence.
	Position int
}

type foldedPage struct {
	title   string
	content string
	tags    []string
}

// Store is an immutable, ordered sequence of page records.
// It is safe for concurrent use.
type Store struct {
	records []domain.PageRecord
	folded  []foldedPage
	byURI   map[string]int
}

// NewStore builds a store over a copy of records.
// Records are expected to have unique URIs, as Parse guarantees; on
// duplicates Get returns the first.
func NewStore(records []domain.PageRecord) *Store {
	// Casers are stateful, so each store build uses its own.
	fold := cases.Fold()

	s := &Store{
		records: make([]domain.PageRecord, len(records)),
		folded:  make([]foldedPage, len(records)),
		byURI:   make(map[string]int, len(records)),
	}
	for i, r := range records {
		r = r.Clone()
		s.records[i] = r

		fp := foldedPage{
			title:   fold.String(r.Title),
			content: fold.String(r.Content),
			tags:    make([]string, len(r.Tags)),
		}
		for j, tag := range r.Tags {
			fp.tags[j] = fold.String(tag)
		}
		s.folded[i] = fp

		if _, ok := s.byURI[r.URI]; !ok {
			s.byURI[r.URI] = i
		}
	}
	return s
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a copy of all records in load order.
func (s *Store) Records() []domain.PageRecord {
	out := make([]domain.PageRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the record with the given URI.
func (s *Store) Get(uri string) (domain.PageRecord, bool) {
	i, ok := s.byURI[uri]
	if !ok {
		return domain.PageRecord{}, false
	}
	return s.records[i].Clone(), true
}

// Query returns the records whose title, tags or content contain text,
// case-insensitively. Title matches rank above tag matches, which rank above
// content-only matches; ties keep load order. Blank text returns everything.
func (s *Store) Query(text string) []domain.PageRecord {
	matches := s.QueryMatches(text)
	out := make([]domain.PageRecord, len(matches))
	for i, m := range matches {
		out[i] = m.Record
	}
	return out
}

// QueryMatches is Query with the matched relevance of each record.
func (s *Store) QueryMatches(text string) []Match {
	// Whitespace only decides blankness; otherwise the text is matched as given.
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	needle := cases.Fold().String(text)

	matches := make([]Match, 0)
	for i := range s.records {
		rel, ok := s.match(i, needle)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Record:    s.records[i].Clone(),
			Relevance: rel,
			Position:  i,
		})
	}

	// Stable sort keeps load order within a relevance tier.
	slices.SortStableFunc(matches, func(a, b Match) int {
		return int(b.Relevance) - int(a.Relevance)
	})
	return matches
}

func (s *Store) match(i int, needle string) (Relevance, bool) {
	if needle == "" {
		return RelevanceNone, true
	}

	fp := s.folded[i]
	if strings.Contains(fp.title, needle) {
		return RelevanceTitle, true
	}
	for _, tag := range fp.tags {
		if strings.Contains(tag, needle) {
			return RelevanceTags, true
		}
	}
	if strings.Contains(fp.content, needle) {
		return RelevanceContent, true
	}
	return RelevanceNone, false
}
