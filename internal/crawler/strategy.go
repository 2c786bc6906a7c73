package crawler

import (
	"time"

	"github.com/DeafMist/news-digest/internal/models"
)

// NoveltyThreshold is the minimum number of unseen items the first page must
// hold for the filtered page to be used. Below it the unfiltered page is used.
const NoveltyThreshold = 50

// Strategy names which version of the first page a FULL crawl kept.
type Strategy string

const (
	StrategyNovel    Strategy = "novel"
	StrategyFallback Strategy = "fallback"
)

// ChooseFirstPage applies the two-step first-page strategy to one fetched page.
func ChooseFirstPage(page []models.NewsItem, seen models.SeenLinkSet) ([]models.NewsItem, Strategy) {
	novel := Unseen(page, seen)
	if len(novel) >= NoveltyThreshold {
		return novel, StrategyNovel
	}
	return page, StrategyFallback
}

// Unseen returns the items whose link is not in seen, preserving order.
func Unseen(items []models.NewsItem, seen models.SeenLinkSet) []models.NewsItem {
	out := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if !seen.Has(item.Link) {
			out = append(out, item)
		}
	}
	return out
}

// oldest returns the earliest known PublishedAt in items. Items without a
// timestamp are ignored; ok is false when none has one.
func oldest(items []models.NewsItem) (ts time.Time, ok bool) {
	for _, item := range items {
		if item.PublishedAt.IsZero() {
			continue
		}
		if !ok || item.PublishedAt.Before(ts) {
			ts, ok = item.PublishedAt, true
		}
	}
	return ts, ok
}
