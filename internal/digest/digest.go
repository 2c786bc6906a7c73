// Package digest packages ranked articles for delivery.
package digest

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/processing"
)

const snippetRunes = 160

//go:embed templates/digest.html.tmpl
var templateFS embed.FS

var digestTemplate = template.Must(template.New("digest.html.tmpl").Funcs(template.FuncMap{
	"snippet": func(item models.NewsItem) string {
		text := item.Description
		if text == "" && item.Content != nil {
			text = *item.Content
		}
		return processing.Truncate(text, snippetRunes)
	},
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
}).ParseFS(templateFS, "templates/digest.html.tmpl"))

// Sender delivers a digest to a notification sink.
type Sender interface {
	Send(ctx context.Context, d models.Digest) error
}

// Subject is the delivery subject line for query.
func Subject(query string) string {
	return fmt.Sprintf("오늘의 뉴스(#%s)", query)
}

// Assemble builds the digest for already ranked items. It performs no I/O and
// reports false when items is empty, in which case nothing must be delivered.
// The ID is derived from query and generatedAt so the same input yields the same digest.
func Assemble(query string, items []models.NewsItem, generatedAt time.Time) (models.Digest, bool, error) {
	if len(items) == 0 {
		return models.Digest{}, false, nil
	}

	generatedAt = generatedAt.UTC()
	d := models.Digest{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(query+"|"+generatedAt.Format(time.RFC3339Nano))).String(),
		Query:       query,
		Items:       items,
		GeneratedAt: generatedAt,
		Subject:     Subject(query),
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, d); err != nil {
		return models.Digest{}, false, fmt.Errorf("render digest: %w", err)
	}
	d.HTML = buf.String()
	return d, true, nil
}

// Deliver sends d unless it is empty. It reports whether Send was called.
func Deliver(ctx context.Context, sender Sender, d models.Digest) (bool, error) {
	if len(d.Items) == 0 {
		return false, nil
	}
	if err := sender.Send(ctx, d); err != nil {
		return true, fmt.Errorf("send digest %s: %w", d.ID, err)
	}
	return true, nil
}
