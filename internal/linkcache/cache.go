// Package linkcache tracks which article links were already seen per query.
//
// Links are stored per (namespace, query). The crawl pipeline only reads through
// Cache; writes happen after delivery and during retention, through Store.
package linkcache

import (
	"context"
	"errors"

	"github.com/DeafMist/news-digest/internal/models"
)

// ErrUnavailable marks a backend failure as opposed to a missing entry.
var ErrUnavailable = errors.New("link cache unavailable")

// Cache is the read-only view used while crawling. Implementations must be
// safe for concurrent use. A query with no stored links yields an empty set.
type Cache interface {
	Seen(ctx context.Context, namespace, query string) (models.SeenLinkSet, error)
}

// Store extends Cache with the write operations owned by delivery and retention.
type Store interface {
	Cache
	// Remember appends links not stored yet, keeping insertion order.
	Remember(ctx context.Context, namespace, query string, links []string) error
	// Trim keeps the newest maxLinks links of every query in namespace and
	// returns how many links were dropped.
	Trim(ctx context.Context, namespace string, maxLinks int) (int, error)
}

// mergeLinks appends the links from add that existing does not contain.
func mergeLinks(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, link := range list {
			if link == "" {
				continue
			}
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			out = append(out, link)
		}
	}
	return out
}

func keepNewest(links []string, maxLinks int) ([]string, int) {
	if maxLinks <= 0 || len(links) <= maxLinks {
		return links, 0
	}
	dropped := len(links) - maxLinks
	return links[dropped:], dropped
}
