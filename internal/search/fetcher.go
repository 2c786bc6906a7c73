package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/processing"
)

const generatedTitleWords = 12

// PageFetcher turns provider hits for one PageWindow into NewsItems.
type PageFetcher struct {
	provider Provider
	timeout  time.Duration
	log      *slog.Logger
}

// NewPageFetcher wraps provider. A zero timeout leaves the context deadline alone.
func NewPageFetcher(provider Provider, timeout time.Duration, log *slog.Logger) *PageFetcher {
	return &PageFetcher{provider: provider, timeout: timeout, log: logger.OrDiscard(log)}
}

// Fetch loads the page addressed by w. Items carry their provider rank
// (offset + position) and cleaned title and description.
func (f *PageFetcher) Fetch(ctx context.Context, w models.PageWindow) ([]models.NewsItem, error) {
	if w.Offset < 1 || w.Offset > MaxOffset {
		return nil, fmt.Errorf("offset %d outside 1..%d", w.Offset, MaxOffset)
	}
	if w.PageSize <= 0 {
		w.PageSize = models.PageSize
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	started := time.Now()
	hits, err := f.provider.FetchPage(ctx, w.Query, w.Offset, w.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%s fetch offset %d: %w", f.provider.Name(), w.Offset, err)
	}

	items := make([]models.NewsItem, 0, len(hits))
	for i, hit := range hits {
		items = append(items, toItem(hit, w.Offset+i))
	}

	f.log.Debug("page fetched",
		slog.String("provider", f.provider.Name()),
		slog.String("query", w.Query),
		slog.Int("offset", w.Offset),
		slog.Int("count", len(items)),
		slog.Duration("took", time.Since(started)),
	)
	return items, nil
}

func toItem(hit Hit, rank int) models.NewsItem {
	title := processing.CleanText(hit.Title)
	description := processing.CleanText(hit.Description)
	if title == "" {
		title = processing.GenerateTitleFromText(description, generatedTitleWords)
	}
	return models.NewsItem{
		Title:        title,
		Link:         hit.Link,
		OriginalLink: hit.OriginalLink,
		Description:  description,
		PublishedAt:  hit.PublishedAt,
		FetchedRank:  rank,
	}
}
