package domain

// PageRecord represents one indexed page of a generated static site.
// It is the unit stored in the search payload and in the Bleve index.
type PageRecord struct {
	// Breadcrumb is the path of ancestor page titles, possibly empty.
	// Example: "APIOps with Kong Konnect and Insomnia"
	Breadcrumb string `json:"breadcrumb"`

	// Content is the plain-text body of the page. Listing pages have none.
	Content string `json:"content"`

	// Description is a short excerpt of the page, possibly empty.
	Description string `json:"description"`

	// Tags is the set of tags attached to the page. Never nil once loaded.
	Tags []string `json:"tags"`

	// Title is the display name of the page.
	Title string `json:"title"`

	// URI is the site path of the page and the record key.
	// Example: "/tags/index.html"
	URI string `json:"uri"`
}

// Clone returns a deep copy of the record.
func (p PageRecord) Clone() PageRecord {
	c := p
	c.Tags = make([]string, len(p.Tags))
	copy(c.Tags, p.Tags)
	return c
}

// Equal reports whether two records carry the same field values.
// A nil and an empty tag set are equal.
func (p PageRecord) Equal(o PageRecord) bool {
	if p.Breadcrumb != o.Breadcrumb || p.Content != o.Content || p.Description != o.Description ||
		p.Title != o.Title || p.URI != o.URI || len(p.Tags) != len(o.Tags) {
		return false
	}
	for i := range p.Tags {
		if p.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// Field names shared by the payload schema, the Bleve mapping and queries.
const (
	PageFieldBreadcrumb  = "breadcrumb"
	PageFieldContent     = "content"
	PageFieldDescription = "description"
	PageFieldTags        = "tags"
	PageFieldTitle       = "title"
	PageFieldURI         = "uri"
)

// PageFields lists every field a payload record must carry, in payload order.
var PageFields = []string{
	PageFieldBreadcrumb,
	PageFieldContent,
	PageFieldDescription,
	PageFieldTags,
	PageFieldTitle,
	PageFieldURI,
}
