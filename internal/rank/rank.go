// Package rank merges fetched batches into one ranked, duplicate-free list.
package rank

import (
	"slices"

	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/processing"
)

// MaxItems caps the ranked list.
const MaxItems = 100

// Reduce drops items without an http(s) link, keeps one item per link,
// orders by PublishedAt descending (stable for equal timestamps) and keeps
// the first MaxItems. The input slice is not modified.
func Reduce(items []models.NewsItem) []models.NewsItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.NewsItem, 0, min(len(items), MaxItems))
	for _, item := range items {
		if !processing.IsHTTPLink(item.Link) {
			continue
		}
		if _, dup := seen[item.Link]; dup {
			continue
		}
		seen[item.Link] = struct{}{}
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b models.NewsItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})

	if len(out) > MaxItems {
		out = out[:MaxItems]
	}
	return out
}
