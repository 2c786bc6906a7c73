package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains the collaborators shared by every service.
type Common struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SeenNamespace string

	SearchProvider     string
	NaverBaseURL       string
	NaverClientID      string
	NaverClientSecret  string
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Crawl tunes the crawl pipeline.
type Crawl struct {
	PageDelay         time.Duration
	Lookback          time.Duration
	EnrichConcurrency int
	EnrichTimeout     time.Duration
	SearchTimeout     time.Duration
}

// Delivery selects where digests go.
type Delivery struct {
	Sender       string
	KafkaBrokers []string
	DigestTopic  string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Crawl
	Delivery
	BindAddr     string
	SyncPeers    []string
	SyncTimeout  time.Duration
	RequestLimit time.Duration
}

// Worker holds configuration for the Kafka digest-job worker.
type Worker struct {
	Common
	Crawl
	Delivery
	KafkaTopic    string
	KafkaConsumer string
	BatchSize     int
}

// Retention configures the seen-link trimming loop.
type Retention struct {
	Common
	Interval time.Duration
	MaxLinks int
}

func loadCommon() (Common, error) {
	c := Common{
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		SeenNamespace:      getEnv("SEEN_NAMESPACE", "keyword"),
		SearchProvider:     strings.ToLower(getEnv("SEARCH_PROVIDER", "naver")),
		NaverBaseURL:       getEnv("NAVER_BASE_URL", "https://openapi.naver.com/v1/search/news.json"),
		NaverClientID:      os.Getenv("NAVER_CLIENT_ID"),
		NaverClientSecret:  os.Getenv("NAVER_CLIENT_SECRET"),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "news"),
	}

	switch c.SearchProvider {
	case "naver", "elasticsearch":
	default:
		return c, fmt.Errorf("SEARCH_PROVIDER must be naver or elasticsearch, got %q", c.SearchProvider)
	}
	if c.RedisDB < 0 {
		return c, fmt.Errorf("REDIS_DB cannot be negative")
	}
	return c, nil
}

func loadCrawl() (Crawl, error) {
	c := Crawl{
		PageDelay:         getDuration("CRAWL_PAGE_DELAY", "100ms"),
		Lookback:          getDuration("CRAWL_LOOKBACK", "0s"),
		EnrichConcurrency: getInt("ENRICH_CONCURRENCY", 16),
		EnrichTimeout:     getDuration("ENRICH_TIMEOUT", "10s"),
		SearchTimeout:     getDuration("SEARCH_TIMEOUT", "10s"),
	}

	if c.PageDelay < 0 {
		return c, fmt.Errorf("CRAWL_PAGE_DELAY cannot be negative")
	}
	if c.Lookback < 0 {
		return c, fmt.Errorf("CRAWL_LOOKBACK cannot be negative")
	}
	if c.EnrichConcurrency <= 0 {
		return c, fmt.Errorf("ENRICH_CONCURRENCY must be positive")
	}
	return c, nil
}

func loadDelivery() (Delivery, error) {
	d := Delivery{
		Sender:       strings.ToLower(getEnv("DIGEST_SENDER", "kafka")),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		DigestTopic:  getEnv("DIGEST_TOPIC", "news_digest"),
	}

	switch d.Sender {
	case "kafka":
		if len(d.KafkaBrokers) == 0 {
			return d, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
		}
	case "log":
	default:
		return d, fmt.Errorf("DIGEST_SENDER must be kafka or log, got %q", d.Sender)
	}
	return d, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	crawl, err := loadCrawl()
	if err != nil {
		return nil, err
	}
	delivery, err := loadDelivery()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:       common,
		Crawl:        crawl,
		Delivery:     delivery,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		SyncPeers:    splitAndTrim(os.Getenv("SYNC_PEERS")),
		SyncTimeout:  getDuration("SYNC_TIMEOUT", "3s"),
		RequestLimit: getDuration("API_REQUEST_TIMEOUT", "2m"),
	}

	if c.RequestLimit <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}
	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	crawl, err := loadCrawl()
	if err != nil {
		return nil, err
	}
	delivery, err := loadDelivery()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:        common,
		Crawl:         crawl,
		Delivery:      delivery,
		KafkaTopic:    getEnv("KAFKA_TOPIC", "digest_jobs"),
		KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "digest-worker"),
		BatchSize:     getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Retention{
		Common:   common,
		Interval: getDuration("RETENTION_CRON", "24h"),
		MaxLinks: getInt("RETENTION_MAX_LINKS", 1000),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.MaxLinks <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_LINKS must be positive")
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
