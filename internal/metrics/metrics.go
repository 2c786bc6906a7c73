// Package metrics exports Prometheus counters for the digest pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_digest"

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched    *prometheus.CounterVec
	PageFailures    *prometheus.CounterVec
	ItemsCrawled    *prometheus.CounterVec
	EnrichFailures  prometheus.Counter
	EnrichSucceeded prometheus.Counter
	DigestsSent     *prometheus.CounterVec
	PeerFailures    prometheus.Counter
	CrawlDuration   *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Provider pages fetched, by crawl mode.",
		}, []string{"mode"}),
		PageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_failures_total",
			Help:      "Provider page fetches that failed, by crawl mode.",
		}, []string{"mode"}),
		ItemsCrawled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_crawled_total",
			Help:      "Items accepted by the crawler, by crawl mode.",
		}, []string{"mode"}),
		EnrichFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_failures_total",
			Help:      "Articles whose content could not be fetched.",
		}),
		EnrichSucceeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_success_total",
			Help:      "Articles enriched with content.",
		}),
		DigestsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_sent_total",
			Help:      "Digest deliveries by outcome.",
		}, []string{"outcome"}),
		PeerFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_sync_failures_total",
			Help:      "Peer sync probes that failed.",
		}),
		CrawlDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Wall time of one crawl invocation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PageFetched(mode string) {
	if m != nil {
		m.PagesFetched.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) PageFailed(mode string) {
	if m != nil {
		m.PageFailures.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) Crawled(mode string, n int, seconds float64) {
	if m != nil {
		m.ItemsCrawled.WithLabelValues(mode).Add(float64(n))
		m.CrawlDuration.WithLabelValues(mode).Observe(seconds)
	}
}

func (m *Metrics) Enriched(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.EnrichSucceeded.Inc()
	} else {
		m.EnrichFailures.Inc()
	}
}

func (m *Metrics) DigestSent(outcome string) {
	if m != nil {
		m.DigestsSent.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PeersFailed(n int) {
	if m != nil && n > 0 {
		m.PeerFailures.Add(float64(n))
	}
}
