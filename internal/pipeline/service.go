// Package pipeline runs a crawl through ranking, enrichment and digest delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DeafMist/news-digest/internal/crawler"
	"github.com/DeafMist/news-digest/internal/digest"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/rank"
)

// Crawler is satisfied by *crawler.Crawler.
type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) ([]models.NewsItem, error)
}

// Enricher is satisfied by *enrich.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, items []models.NewsItem) error
}

// Service owns no state between calls apart from its collaborators.
type Service struct {
	crawler   Crawler
	enricher  Enricher
	sender    digest.Sender
	writeBack linkcache.Store
	namespace string
	now       func() time.Time
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New builds a Service. namespace is where delivered links are written back
// when write-back is enabled.
func New(c Crawler, e Enricher, sender digest.Sender, namespace string, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		crawler:   c,
		enricher:  e,
		sender:    sender,
		namespace: namespace,
		now:       time.Now,
		metrics:   m,
		log:       logger.OrDiscard(log),
	}
}

// WithWriteBack records delivered links in store after each successful delivery.
func (s *Service) WithWriteBack(store linkcache.Store) *Service {
	s.writeBack = store
	return s
}

// WithClock replaces the clock used to stamp digests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search runs a FULL crawl over the first pages pages and returns the ranked,
// enriched items.
func (s *Service) Search(ctx context.Context, query string, pages int) ([]models.NewsItem, error) {
	items, err := s.crawler.Crawl(ctx, crawler.Request{Query: query, MaxPages: pages, Mode: models.ModeFull})
	if err != nil {
		return nil, err
	}
	return s.rankAndEnrich(ctx, items)
}

// DigestRequest parameterises an INCREMENTAL digest run.
type DigestRequest struct {
	Query string
	Start int
	Since time.Time
}

// Outcome is what a digest run produced.
type Outcome struct {
	Items     []models.NewsItem
	Digest    models.Digest
	Delivered bool
}

// Digest crawls what is new for the query, ranks and enriches it and hands a
// non-empty digest to the sender.
func (s *Service) Digest(ctx context.Context, req DigestRequest) (Outcome, error) {
	items, err := s.crawler.Crawl(ctx, crawler.Request{
		Query: req.Query,
		Mode:  models.ModeIncremental,
		Start: req.Start,
		Since: req.Since,
	})
	if err != nil {
		return Outcome{}, err
	}

	ranked, err := s.rankAndEnrich(ctx, items)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Items: ranked}
	d, ok, err := digest.Assemble(req.Query, ranked, s.now())
	if err != nil {
		return out, err
	}
	if !ok {
		s.log.Info("nothing new, digest skipped", slog.String("query", req.Query))
		return out, nil
	}
	out.Digest = d

	delivered, err := digest.Deliver(ctx, s.sender, d)
	out.Delivered = delivered && err == nil
	if err != nil {
		s.metrics.DigestSent("failed")
		return out, err
	}
	s.metrics.DigestSent("sent")
	s.log.Info("digest delivered",
		slog.String("query", req.Query),
		slog.String("digest_id", d.ID),
		slog.Int("items", len(d.Items)),
	)

	if s.writeBack != nil {
		links := make([]string, 0, len(ranked))
		for _, item := range ranked {
			links = append(links, item.Link)
		}
		if err := s.writeBack.Remember(ctx, s.namespace, req.Query, links); err != nil {
			return out, fmt.Errorf("record delivered links: %w", err)
		}
	}
	return out, nil
}

func (s *Service) rankAndEnrich(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, error) {
	ranked := rank.Reduce(items)
	if len(ranked) == 0 {
		return ranked, nil
	}
	if err := s.enricher.Enrich(ctx, ranked); err != nil {
		return nil, fmt.Errorf("enrich articles: %w", err)
	}
	return ranked, nil
}

// Transfer maps a pipeline result onto the response envelope.
func Transfer(items []models.NewsItem, err error) models.Transfer {
	switch {
	case err == nil:
		return models.Success(items)
	case errors.Is(err, crawler.ErrOverPage):
		return models.Failure(http.StatusBadRequest, "Over Page")
	case errors.Is(err, crawler.ErrValidation):
		return models.Failure(http.StatusBadRequest, err.Error())
	default:
		return models.Failure(http.StatusInternalServerError, err.Error())
	}
}
