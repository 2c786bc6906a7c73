package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-digest/internal/crawler"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/models"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type page struct {
	items []models.NewsItem
	err   error
}

type stubFetcher struct {
	mu      sync.Mutex
	pages   map[int]page
	offsets []int
}

func (s *stubFetcher) Fetch(_ context.Context, w models.PageWindow) ([]models.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, w.Offset)
	p := s.pages[w.Offset]
	return p.items, p.err
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(context.Context) error {
	p.waits++
	return nil
}

type failingCache struct{}

func (failingCache) Seen(context.Context, string, string) (models.SeenLinkSet, error) {
	return nil, linkcache.ErrUnavailable
}

// batch builds n items for offset whose timestamps step back one minute from newest.
func batch(offset, n int, newest time.Time) []models.NewsItem {
	out := make([]models.NewsItem, 0, n)
	for i := range n {
		out = append(out, models.NewsItem{
			Title:       fmt.Sprintf("item %d", offset+i),
			Link:        fmt.Sprintf("https://news.example/%d", offset+i),
			PublishedAt: newest.Add(-time.Duration(i) * time.Minute),
			FetchedRank: offset + i,
		})
	}
	return out
}

func links(items []models.NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Link)
	}
	return out
}

func newCrawler(f crawler.PageFetcher, cache linkcache.Cache) (*crawler.Crawler, *countingPacer) {
	pacer := &countingPacer{}
	c := crawler.New(f, cache, crawler.Options{Namespace: "keyword"}, nil, nil).
		WithPacer(func() crawler.Pacer { return pacer }).
		WithClock(func() time.Time { return now })
	return c, pacer
}

func TestFullCrawlSinglePage(t *testing.T) {
	f := &stubFetcher{pages: map[int]page{1: {items: batch(1, 100, now)}}}
	c, _ := newCrawler(f, linkcache.NewMemory(1000, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "테스트", MaxPages: 1})
	require.NoError(t, err)
	require.Len(t, items, 100)
	require.Equal(t, []int{1}, f.offsets)
}

func TestFullCrawlStopsOnEmptyPage(t *testing.T) {
	f := &stubFetcher{pages: map[int]page{
		1:   {items: batch(1, 100, now)},
		101: {items: batch(101, 100, now.Add(-2*time.Hour))},
		201: {},
		301: {items: batch(301, 100, now.Add(-4*time.Hour))},
	}}
	c, pacer := newCrawler(f, linkcache.NewMemory(1000, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", MaxPages: 3})
	require.NoError(t, err)
	require.Len(t, items, 200)
	require.Equal(t, []int{1, 101, 201}, f.offsets)
	require.Equal(t, 3, pacer.waits)
}

func TestFullCrawlNeverExceedsMaxPages(t *testing.T) {
	for maxPages := 1; maxPages <= crawler.MaxPages; maxPages++ {
		pages := map[int]page{}
		for off := 1; off <= 1000; off += 100 {
			pages[off] = page{items: batch(off, 100, now)}
		}
		f := &stubFetcher{pages: pages}
		c, _ := newCrawler(f, linkcache.NewMemory(1000, time.Hour))

		_, err := c.Crawl(context.Background(), crawler.Request{Query: "q", MaxPages: maxPages})
		require.NoError(t, err)
		require.Len(t, f.offsets, maxPages)
	}
}

func TestFullCrawlRejectsOverPage(t *testing.T) {
	f := &stubFetcher{}
	c, _ := newCrawler(f, failingCache{})

	_, err := c.Crawl(context.Background(), crawler.Request{Query: "테스트", MaxPages: 11})
	require.ErrorIs(t, err, crawler.ErrOverPage)
	require.ErrorIs(t, err, crawler.ErrValidation)
	require.Empty(t, f.offsets)
}

func TestCrawlRejectsEmptyQuery(t *testing.T) {
	c, _ := newCrawler(&stubFetcher{}, linkcache.NewMemory(1, time.Hour))

	_, err := c.Crawl(context.Background(), crawler.Request{Query: "  "})
	require.ErrorIs(t, err, crawler.ErrEmptyQuery)
}

func TestFullCrawlFirstPageFailureIsFatal(t *testing.T) {
	boom := errors.New("dial tcp: refused")
	f := &stubFetcher{pages: map[int]page{1: {err: boom}}}
	c, _ := newCrawler(f, linkcache.NewMemory(1, time.Hour))

	_, err := c.Crawl(context.Background(), crawler.Request{Query: "q", MaxPages: 3})
	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 1, fetchErr.Offset)
	require.ErrorIs(t, err, boom)
}

func TestFullCrawlLaterFailureKeepsCollected(t *testing.T) {
	f := &stubFetcher{pages: map[int]page{
		1:   {items: batch(1, 100, now)},
		101: {err: errors.New("timeout")},
	}}
	c, _ := newCrawler(f, linkcache.NewMemory(1, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", MaxPages: 3})
	require.NoError(t, err)
	require.Len(t, items, 100)
	require.Equal(t, []int{1, 101}, f.offsets)
}

func TestCacheFailureIsFatal(t *testing.T) {
	f := &stubFetcher{pages: map[int]page{1: {items: batch(1, 10, now)}}}
	c, _ := newCrawler(f, failingCache{})

	for _, mode := range []models.CrawlMode{models.ModeFull, models.ModeIncremental} {
		_, err := c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: mode})
		var cacheErr *crawler.CacheError
		require.ErrorAs(t, err, &cacheErr)
		require.ErrorIs(t, err, linkcache.ErrUnavailable)
	}
}

func TestFullCrawlFirstPageStrategy(t *testing.T) {
	first := batch(1, 100, now)
	tests := []struct {
		name      string
		seenCount int
		wantLen   int
	}{
		{name: "mostly new uses filtered page", seenCount: 40, wantLen: 60},
		{name: "exactly threshold uses filtered page", seenCount: 50, wantLen: 50},
		{name: "too few new falls back to full page", seenCount: 51, wantLen: 100},
		{name: "nothing seen", seenCount: 0, wantLen: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := linkcache.NewMemory(1000, time.Hour)
			require.NoError(t, cache.Remember(context.Background(), "keyword", "q", links(first[:tt.seenCount])))

			f := &stubFetcher{pages: map[int]page{1: {items: first}}}
			c, _ := newCrawler(f, cache)

			items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", MaxPages: 1})
			require.NoError(t, err)
			require.Len(t, items, tt.wantLen)
			require.Equal(t, []int{1}, f.offsets)
		})
	}
}

func TestChooseFirstPage(t *testing.T) {
	page := batch(1, 60, now)
	seen := models.NewSeenLinkSet(links(page[:20])...)

	got, strategy := crawler.ChooseFirstPage(page, seen)
	require.Equal(t, crawler.StrategyFallback, strategy)
	require.Len(t, got, 60)

	got, strategy = crawler.ChooseFirstPage(page, models.NewSeenLinkSet(links(page[:10])...))
	require.Equal(t, crawler.StrategyNovel, strategy)
	require.Len(t, got, 50)
	require.Equal(t, page[10].Link, got[0].Link)
}

func TestIncrementalStopsAtBoundaryAfterFirstBatch(t *testing.T) {
	// Oldest item of the first batch is already older than the boundary.
	f := &stubFetcher{pages: map[int]page{
		1:   {items: batch(1, 100, now.Add(-time.Minute))},
		101: {items: batch(101, 100, now.Add(-3*time.Hour))},
	}}
	c, pacer := newCrawler(f, linkcache.NewMemory(1000, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: models.ModeIncremental})
	require.NoError(t, err)
	require.Len(t, items, 100)
	require.Equal(t, []int{1}, f.offsets)
	require.Equal(t, 1, pacer.waits)
}

func TestIncrementalContinuesWhileNewerThanBoundary(t *testing.T) {
	since := now.Add(-6 * time.Hour)
	f := &stubFetcher{pages: map[int]page{
		1:   {items: batch(1, 100, now)},
		101: {items: batch(101, 100, now.Add(-2*time.Hour))},
		201: {items: batch(201, 100, now.Add(-5*time.Hour))},
		301: {items: batch(301, 100, now.Add(-7*time.Hour))},
	}}
	c, _ := newCrawler(f, linkcache.NewMemory(1000, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: models.ModeIncremental, Since: since})
	require.NoError(t, err)
	// Offset 201's oldest item (5h - 99m) is past the 6h boundary, so 301 is never fetched.
	require.Equal(t, []int{1, 101, 201}, f.offsets)
	require.Len(t, items, 300)
}

func TestIncrementalFiltersSeenAndStopsWhenNothingNew(t *testing.T) {
	since := now.Add(-24 * time.Hour)
	first := batch(1, 100, now)
	second := batch(101, 100, now.Add(-2*time.Hour))

	cache := linkcache.NewMemory(1000, time.Hour)
	require.NoError(t, cache.Remember(context.Background(), "keyword", "q", links(first[30:])))
	require.NoError(t, cache.Remember(context.Background(), "keyword", "q", links(second)))

	f := &stubFetcher{pages: map[int]page{1: {items: first}, 101: {items: second}}}
	c, _ := newCrawler(f, cache)

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: models.ModeIncremental, Since: since})
	require.NoError(t, err)
	require.Equal(t, links(first[:30]), links(items))
	require.Equal(t, []int{1, 101}, f.offsets)
}

func TestIncrementalStartsAtGivenOffset(t *testing.T) {
	f := &stubFetcher{pages: map[int]page{501: {items: batch(501, 10, now.Add(-time.Hour))}}}
	c, _ := newCrawler(f, linkcache.NewMemory(1, time.Hour))

	items, err := c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: models.ModeIncremental, Start: 501})
	require.NoError(t, err)
	require.Len(t, items, 10)
	require.Equal(t, []int{501}, f.offsets)

	_, err = c.Crawl(context.Background(), crawler.Request{Query: "q", Mode: models.ModeIncremental, Start: 1001})
	require.ErrorIs(t, err, crawler.ErrInvalidStart)
}

func TestNewPacerDelaysSecondWait(t *testing.T) {
	pacer := crawler.NewPacer(30 * time.Millisecond)
	ctx := context.Background()

	started := time.Now()
	require.NoError(t, pacer.Wait(ctx))
	require.Less(t, time.Since(started), 20*time.Millisecond)

	require.NoError(t, pacer.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(started), 25*time.Millisecond)

	unpaced := crawler.NewPacer(0)
	require.NoError(t, unpaced.Wait(ctx))
	require.NoError(t, unpaced.Wait(ctx))
}

type timedFetcher struct {
	stubFetcher
	calls []time.Time
}

func (f *timedFetcher) Fetch(ctx context.Context, w models.PageWindow) ([]models.NewsItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	f.mu.Unlock()
	return f.stubFetcher.Fetch(ctx, w)
}

func TestPageDelayAppliesFromSecondPage(t *testing.T) {
	const delay = 60 * time.Millisecond

	for _, mode := range []models.CrawlMode{models.ModeFull, models.ModeIncremental} {
		t.Run(mode.String(), func(t *testing.T) {
			f := &timedFetcher{stubFetcher: stubFetcher{pages: map[int]page{
				1:   {items: batch(1, 100, now)},
				101: {items: batch(101, 100, now.Add(-2*time.Hour))},
				201: {items: batch(201, 100, now.Add(-4*time.Hour))},
			}}}
			c := crawler.New(f, linkcache.NewMemory(1000, time.Hour), crawler.Options{PageDelay: delay}, nil, nil).
				WithClock(func() time.Time { return now })

			_, err := c.Crawl(context.Background(), crawler.Request{
				Query:    "q",
				MaxPages: 3,
				Mode:     mode,
				Since:    now.Add(-24 * time.Hour),
			})
			require.NoError(t, err)
			require.Len(t, f.calls, 3)

			for i := 1; i < len(f.calls); i++ {
				gap := f.calls[i].Sub(f.calls[i-1])
				require.GreaterOrEqual(t, gap, delay*9/10, "gap before page %d", i+1)
			}
		})
	}
}
