package models

import "time"

// PageSize is the fixed window the search provider returns per page.
const PageSize = 100

// NewsItem is a single search hit, optionally enriched with the article body.
// Link is the identity key: two items with the same Link are the same article.
type NewsItem struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	OriginalLink string    `json:"originallink"`
	Description  string    `json:"description"`
	PublishedAt  time.Time `json:"pubDate"`
	FetchedRank  int       `json:"rank"`
	Content      *string   `json:"content,omitempty"`
}

// SeenLinkSet holds links observed by a previous crawl of the same query.
type SeenLinkSet map[string]struct{}

// NewSeenLinkSet builds a set from a list of links.
func NewSeenLinkSet(links ...string) SeenLinkSet {
	set := make(SeenLinkSet, len(links))
	for _, link := range links {
		set[link] = struct{}{}
	}
	return set
}

// Has reports whether link was seen before. A nil set has seen nothing.
func (s SeenLinkSet) Has(link string) bool {
	_, ok := s[link]
	return ok
}

// PageWindow addresses one provider page. Offset is 1-based.
type PageWindow struct {
	Query    string
	Offset   int
	PageSize int
}

// Next returns the window directly after w.
func (w PageWindow) Next() PageWindow {
	w.Offset += w.PageSize
	return w
}

// CrawlMode selects how the crawler walks provider pages.
type CrawlMode int

const (
	ModeFull CrawlMode = iota
	ModeIncremental
)

func (m CrawlMode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// Digest is the ranked article list packaged for delivery.
type Digest struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Items       []NewsItem `json:"items"`
	GeneratedAt time.Time  `json:"generated_at"`
	Subject     string     `json:"subject"`
	HTML        string     `json:"html"`
}
