// Package search fetches result pages from an external news search provider.
package search

import (
	"context"
	"time"
)

// MaxOffset is the last 1-based offset providers serve (page 10 of 100).
const MaxOffset = 1000

// Hit is one raw search result as returned by a provider.
type Hit struct {
	Title        string
	Link         string
	OriginalLink string
	Description  string
	PublishedAt  time.Time
}

// Provider returns up to pageSize hits starting at the 1-based offset, newest first.
// Transport failures are returned as errors; an exhausted result set is an empty slice.
type Provider interface {
	FetchPage(ctx context.Context, query string, offset, pageSize int) ([]Hit, error)
	Name() string
}
