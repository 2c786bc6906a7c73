// Package enrich fills NewsItem.Content by fetching each article in parallel.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/processing"
)

// ErrFatal marks a fetch failure that must abort the whole batch. Per-article
// failures that do not wrap ErrFatal are swallowed.
var ErrFatal = errors.New("fatal enrichment error")

// ContentFetcher returns the body text of the article at link.
type ContentFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// Enricher runs one fetch per item with at most limit in flight.
type Enricher struct {
	fetcher ContentFetcher
	limit   int
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds an Enricher. limit <= 0 means unbounded.
func New(fetcher ContentFetcher, limit int, m *metrics.Metrics, log *slog.Logger) *Enricher {
	return &Enricher{fetcher: fetcher, limit: limit, metrics: m, log: logger.OrDiscard(log)}
}

// Enrich sets Content on every item whose article could be fetched and
// returns once all fetches finished. Items are mutated in place; each task
// only touches its own element. Failed items keep a nil Content.
func (e *Enricher) Enrich(ctx context.Context, items []models.NewsItem) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}

	for i := range items {
		if !processing.IsHTTPLink(items[i].Link) {
			continue
		}
		g.Go(func() error {
			item := &items[i]
			content, err := e.fetcher.Fetch(gctx, item.Link)
			if err != nil {
				if errors.Is(err, ErrFatal) {
					return fmt.Errorf("enrich %s: %w", item.Link, err)
				}
				e.metrics.Enriched(false)
				e.log.Debug("article fetch failed",
					slog.String("link", item.Link),
					slog.Any("err", err),
				)
				return nil
			}
			e.metrics.Enriched(true)
			item.Content = &content
			return nil
		})
	}

	return g.Wait()
}
