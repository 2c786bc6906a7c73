// Package crawler walks provider pages for a query and collects the items a
// digest is built from.
//
// FULL mode scans pages from offset 1 and stops at the first empty page.
// INCREMENTAL mode keeps only links missing from the seen-link cache and
// stops once a batch reaches back past the staleness boundary.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/search"
)

// MaxPages is the largest page count a single crawl may request.
const MaxPages = search.MaxOffset / models.PageSize

// PageFetcher loads one window of results.
type PageFetcher interface {
	Fetch(ctx context.Context, w models.PageWindow) ([]models.NewsItem, error)
}

// Request describes one crawl invocation.
type Request struct {
	Query string
	// MaxPages bounds the number of page fetches. Zero means 1 for FULL and
	// MaxPages for INCREMENTAL.
	MaxPages int
	Mode     models.CrawlMode
	// Start is the first 1-based offset for INCREMENTAL crawls. Zero means 1.
	Start int
	// Since is the staleness boundary for INCREMENTAL crawls. Zero means the
	// invocation time minus the configured lookback.
	Since time.Time
}

// Options tune a Crawler.
type Options struct {
	Namespace string
	PageDelay time.Duration
	Lookback  time.Duration
}

// Crawler is safe for concurrent use; every Crawl call owns its own state.
type Crawler struct {
	fetcher   PageFetcher
	cache     linkcache.Cache
	namespace string
	lookback  time.Duration
	newPacer  func() Pacer
	now       func() time.Time
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New builds a Crawler over fetcher and the read-only seen-link cache.
func New(fetcher PageFetcher, cache linkcache.Cache, opts Options, m *metrics.Metrics, log *slog.Logger) *Crawler {
	if opts.Namespace == "" {
		opts.Namespace = "keyword"
	}
	delay := opts.PageDelay
	return &Crawler{
		fetcher:   fetcher,
		cache:     cache,
		namespace: opts.Namespace,
		lookback:  opts.Lookback,
		newPacer:  func() Pacer { return NewPacer(delay) },
		now:       time.Now,
		metrics:   m,
		log:       logger.OrDiscard(log),
	}
}

// WithPacer replaces the per-crawl pacer factory.
func (c *Crawler) WithPacer(newPacer func() Pacer) *Crawler {
	c.newPacer = newPacer
	return c
}

// WithClock replaces the clock used for the default staleness boundary.
func (c *Crawler) WithClock(now func() time.Time) *Crawler {
	c.now = now
	return c
}

// Namespace is the seen-link namespace this crawler reads.
func (c *Crawler) Namespace() string { return c.namespace }

// Crawl runs req and returns the collected items in fetch order.
// Validation errors wrap ErrValidation. A failing first page returns a
// *FetchError and a failing cache read a *CacheError; later page failures
// end the crawl with what was collected so far.
func (c *Crawler) Crawl(ctx context.Context, req Request) ([]models.NewsItem, error) {
	req, err := c.normalize(req)
	if err != nil {
		return nil, err
	}

	started := c.now()
	var items []models.NewsItem
	switch req.Mode {
	case models.ModeIncremental:
		items, err = c.crawlIncremental(ctx, req)
	default:
		items, err = c.crawlFull(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	c.metrics.Crawled(req.Mode.String(), len(items), c.now().Sub(started).Seconds())
	c.log.Info("crawl finished",
		slog.String("query", req.Query),
		slog.String("mode", req.Mode.String()),
		slog.Int("items", len(items)),
	)
	return items, nil
}

func (c *Crawler) normalize(req Request) (Request, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, ErrEmptyQuery
	}

	if req.MaxPages == 0 {
		req.MaxPages = 1
		if req.Mode == models.ModeIncremental {
			req.MaxPages = MaxPages
		}
	}
	if req.MaxPages < 1 || req.MaxPages > MaxPages {
		return req, fmt.Errorf("%w: %d pages requested, limit is %d", ErrOverPage, req.MaxPages, MaxPages)
	}

	if req.Start == 0 {
		req.Start = 1
	}
	if req.Start < 1 || req.Start > search.MaxOffset {
		return req, fmt.Errorf("%w: %d", ErrInvalidStart, req.Start)
	}

	if req.Since.IsZero() {
		req.Since = c.now().Add(-c.lookback)
	}
	return req, nil
}

func (c *Crawler) seen(ctx context.Context, query string) (models.SeenLinkSet, error) {
	seen, err := c.cache.Seen(ctx, c.namespace, query)
	if err != nil {
		return nil, &CacheError{Query: query, Err: err}
	}
	return seen, nil
}

// fetchPage fetches w. ok is false when the crawl must stop; err is only set
// for failures of the first page or of the pacer.
func (c *Crawler) fetchPage(ctx context.Context, pacer Pacer, mode string, w models.PageWindow, first bool) (items []models.NewsItem, ok bool, err error) {
	// The first page spends the limiter's initial token; later pages wait.
	if err := pacer.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("wait before offset %d: %w", w.Offset, err)
	}

	items, err = c.fetcher.Fetch(ctx, w)
	if err != nil {
		c.metrics.PageFailed(mode)
		if first {
			return nil, false, &FetchError{Offset: w.Offset, Err: err}
		}
		c.log.Warn("page fetch failed, ending crawl early",
			slog.String("query", w.Query),
			slog.Int("offset", w.Offset),
			slog.Any("err", err),
		)
		return nil, false, nil
	}

	c.metrics.PageFetched(mode)
	return items, len(items) > 0, nil
}

func (c *Crawler) crawlFull(ctx context.Context, req Request) ([]models.NewsItem, error) {
	seen, err := c.seen(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	pacer := c.newPacer()
	mode := req.Mode.String()
	w := models.PageWindow{Query: req.Query, Offset: 1, PageSize: models.PageSize}

	var out []models.NewsItem
	for page := 0; page < req.MaxPages; page++ {
		first := page == 0
		batch, ok, err := c.fetchPage(ctx, pacer, mode, w, first)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if first {
			var strategy Strategy
			batch, strategy = ChooseFirstPage(batch, seen)
			c.log.Debug("first page strategy",
				slog.String("query", req.Query),
				slog.String("strategy", string(strategy)),
				slog.Int("items", len(batch)),
			)
		}

		out = append(out, batch...)
		w = w.Next()
	}
	return out, nil
}

func (c *Crawler) crawlIncremental(ctx context.Context, req Request) ([]models.NewsItem, error) {
	seen, err := c.seen(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	pacer := c.newPacer()
	mode := req.Mode.String()
	w := models.PageWindow{Query: req.Query, Offset: req.Start, PageSize: models.PageSize}

	var out []models.NewsItem
	for page := 0; page < req.MaxPages && w.Offset <= search.MaxOffset; page++ {
		batch, ok, err := c.fetchPage(ctx, pacer, mode, w, page == 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		fresh := Unseen(batch, seen)
		if len(fresh) == 0 {
			c.log.Debug("no unseen links, stopping", slog.String("query", req.Query), slog.Int("offset", w.Offset))
			break
		}
		out = append(out, fresh...)

		boundary, known := oldest(fresh)
		if !known || !boundary.After(req.Since) {
			c.log.Debug("reached staleness boundary",
				slog.String("query", req.Query),
				slog.Int("offset", w.Offset),
				slog.Time("since", req.Since),
			)
			break
		}
		w = w.Next()
	}
	return out, nil
}
