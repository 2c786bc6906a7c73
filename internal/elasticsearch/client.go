package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/search"
)

// Client serves news search pages from an Elasticsearch index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// ArticleDocument is the indexed article shape this provider reads.
type ArticleDocument struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	OriginalLink string    `json:"originallink"`
	Description  string    `json:"description"`
	PublishedAt  time.Time `json:"published_at"`
}

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger) (*Client, error) {
	return NewWithTransport(addr, index, nil, log)
}

// NewWithTransport allows replacing the HTTP transport, mainly for tests.
func NewWithTransport(addr, index string, transport http.RoundTripper, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
		Transport: transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{es: es, index: index, log: logger.OrDiscard(log)}, nil
}

func (c *Client) Name() string { return "elasticsearch" }

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// FetchPage runs a multi_match query over title and description and returns
// the page starting at the 1-based offset, newest first.
func (c *Client) FetchPage(ctx context.Context, query string, offset, pageSize int) ([]search.Hit, error) {
	if offset < 1 {
		offset = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	boolQuery := map[string]any{}
	if strings.TrimSpace(query) != "" {
		boolQuery["must"] = []map[string]any{{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "description"},
			},
		}}
	} else {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}
	boolQuery["filter"] = []map[string]any{{
		"prefix": map[string]any{"link": "http"},
	}}

	body := map[string]any{
		"from":  offset - 1,
		"size":  pageSize,
		"query": map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source ArticleDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]search.Hit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		hits = append(hits, search.Hit{
			Title:        doc.Title,
			Link:         doc.Link,
			OriginalLink: doc.OriginalLink,
			Description:  doc.Description,
			PublishedAt:  doc.PublishedAt,
		})
	}

	c.log.Debug("elasticsearch page",
		slog.String("index", c.index),
		slog.Int("from", offset-1),
		slog.Int("hits", len(hits)),
	)
	return hits, nil
}
