// Package app assembles the pipeline from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/news-digest/internal/config"
	"github.com/DeafMist/news-digest/internal/crawler"
	"github.com/DeafMist/news-digest/internal/digest"
	"github.com/DeafMist/news-digest/internal/elasticsearch"
	"github.com/DeafMist/news-digest/internal/enrich"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/pipeline"
	"github.com/DeafMist/news-digest/internal/search"
)

const (
	maxConnectRetries = 10
	maxRetryDelay     = 30 * time.Second
)

// ConnectRedis dials Redis, retrying with exponential backoff until ctx ends
// or the retries run out.
func ConnectRedis(ctx context.Context, cfg config.Common, log *slog.Logger) (*redis.Client, error) {
	retryDelay := 2 * time.Second
	var lastErr error

	for i := 0; i < maxConnectRetries; i++ {
		client, err := linkcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			return client, nil
		}
		lastErr = err
		log.Warn("redis not reachable, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxConnectRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", maxConnectRetries, lastErr)
}

// NewProvider picks the configured search provider.
func NewProvider(cfg config.Common, log *slog.Logger) (search.Provider, error) {
	switch cfg.SearchProvider {
	case "elasticsearch":
		client, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch: %w", err)
		}
		return client, nil
	case "naver":
		if cfg.NaverClientID == "" || cfg.NaverClientSecret == "" {
			return nil, fmt.Errorf("NAVER_CLIENT_ID and NAVER_CLIENT_SECRET are required")
		}
		return search.NewNaver(cfg.NaverBaseURL, cfg.NaverClientID, cfg.NaverClientSecret, nil), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
}

// Closer releases resources created during wiring.
type Closer func() error

// NewSender picks the configured digest sender.
func NewSender(cfg config.Delivery, log *slog.Logger) (digest.Sender, Closer) {
	if cfg.Sender == "log" {
		return digest.NewLogSender(log), func() error { return nil }
	}
	writer := digest.NewKafkaWriter(cfg.KafkaBrokers, cfg.DigestTopic)
	return digest.NewKafkaSender(writer, cfg.DigestTopic), writer.Close
}

// NewService wires crawler, enricher and sender into a pipeline.
func NewService(
	common config.Common,
	crawl config.Crawl,
	provider search.Provider,
	cache linkcache.Cache,
	sender digest.Sender,
	m *metrics.Metrics,
	log *slog.Logger,
) *pipeline.Service {
	fetcher := search.NewPageFetcher(provider, crawl.SearchTimeout, log)
	c := crawler.New(fetcher, cache, crawler.Options{
		Namespace: common.SeenNamespace,
		PageDelay: crawl.PageDelay,
		Lookback:  crawl.Lookback,
	}, m, log)
	e := enrich.New(enrich.NewHTTPFetcher(crawl.EnrichTimeout), crawl.EnrichConcurrency, m, log)
	return pipeline.New(c, e, sender, common.SeenNamespace, m, log)
}
