package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/DeafMist/news-digest/internal/processing"
)

const maxBodyBytes = 4 << 20

// articleSelectors are tried in order before falling back to <article> and <body>.
// The first two are Naver News article containers.
var articleSelectors = []string{"#dic_area", "#articleBodyContents", "#articeBody", ".article_body"}

// nonContentSelectors lists elements to strip before extracting body text.
const nonContentSelectors = "script, style, nav, header, footer, iframe, noscript"

// HTTPFetcher downloads an article page and extracts its text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (compatible; news-digest/1.0)",
	}
}

// WithClient swaps the HTTP client, mainly for tests.
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// Fetch returns the article text. Context cancellation is reported as ErrFatal
// since no sibling fetch can make progress either.
func (f *HTTPFetcher) Fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	res, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrFatal, ctxErr)
		}
		return "", fmt.Errorf("get article: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get article: %s", res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read article: %w", err)
	}

	text, err := ExtractText(body, link)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ErrNoContent is returned when neither extractor found article text.
var ErrNoContent = errors.New("no article content")

// ExtractText pulls the article text out of an HTML document, trying known
// containers first and readability last.
func ExtractText(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	if text := selectorText(doc); text != "" {
		return text, nil
	}

	if text := readabilityText(body, pageURL); text != "" {
		return text, nil
	}

	page := doc.Find("body").First()
	if page.Length() > 0 {
		page.Find(nonContentSelectors).Remove()
		if text := processing.CleanText(page.Text()); text != "" {
			return text, nil
		}
	}

	return "", ErrNoContent
}

func selectorText(doc *goquery.Document) string {
	for _, sel := range articleSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		node.Find(nonContentSelectors).Remove()
		if text := processing.CleanText(node.Text()); text != "" {
			return text
		}
	}

	article := doc.Find("article").First()
	if article.Length() > 0 {
		article.Find(nonContentSelectors).Remove()
		if text := processing.CleanText(article.Text()); text != "" {
			return text
		}
	}
	return ""
}

func readabilityText(body []byte, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return ""
	}
	return processing.CleanText(strings.TrimSpace(article.TextContent))
}
