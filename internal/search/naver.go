package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/news-digest/internal/processing"
)

// Naver queries the Naver news search Open API.
type Naver struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewNaver builds a provider. A nil httpClient uses a client with a 10s timeout.
func NewNaver(baseURL, clientID, clientSecret string, httpClient *http.Client) *Naver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Naver{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpClient,
	}
}

func (n *Naver) Name() string { return "naver" }

type naverResponse struct {
	Total int64 `json:"total"`
	Start int   `json:"start"`
	Items []struct {
		Title        string `json:"title"`
		OriginalLink string `json:"originallink"`
		Link         string `json:"link"`
		Description  string `json:"description"`
		PubDate      string `json:"pubDate"`
	} `json:"items"`
}

// FetchPage requests one page sorted by date. Naver's start parameter is the
// 1-based offset itself.
func (n *Naver) FetchPage(ctx context.Context, query string, offset, pageSize int) ([]Hit, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(pageSize))
	params.Set("start", strconv.Itoa(offset))
	params.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.clientID)
	req.Header.Set("X-Naver-Client-Secret", n.clientSecret)
	req.Header.Set("Accept", "application/json")

	res, err := n.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("naver search failed: %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	var parsed naverResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		hits = append(hits, Hit{
			Title:        item.Title,
			Link:         item.Link,
			OriginalLink: item.OriginalLink,
			Description:  item.Description,
			PublishedAt:  processing.ParsePublished(item.PubDate),
		})
	}
	return hits, nil
}
