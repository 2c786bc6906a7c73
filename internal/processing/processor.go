package processing

import (
	"html"
	"regexp"
	"strings"
	"time"
)

var (
	tagRegex   = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// IsHTTPLink reports whether link is an absolute http(s) URL.
func IsHTTPLink(link string) bool {
	lower := strings.ToLower(strings.TrimSpace(link))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// CleanText strips markup and HTML entities and squeezes whitespace.
// Search providers wrap matched terms in <b> tags; those are removed too.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	stripped := tagRegex.ReplaceAllString(input, "")
	decoded := html.UnescapeString(stripped)
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// Truncate shortens text to at most maxRunes runes, appending an ellipsis when cut.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// ParsePublished parses the timestamp formats seen in provider responses.
// It returns the zero time when nothing matches.
func ParsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts
		}
	}

	return time.Time{}
}

// GenerateTitleFromText creates a title from the first sentence or first N words of text.
// Returns empty string if text is empty.
func GenerateTitleFromText(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	sentenceEnd := strings.IndexAny(text, ".!?")
	var firstSentence string
	if sentenceEnd > 0 {
		firstSentence = strings.TrimSpace(text[:sentenceEnd])
	} else {
		firstSentence = text
	}

	words := strings.Fields(firstSentence)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}

	return strings.Join(words, " ")
}
