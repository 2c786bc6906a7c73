package processing_test

import (
	"testing"
	"time"

	"github.com/DeafMist/news-digest/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "bold markup", input: "<b>테스트</b> 기사", want: "테스트 기사"},
		{name: "entities", input: "&quot;속보&quot; &amp; 단독", want: `"속보" & 단독`},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.CleanText(tt.input); got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsHTTPLink(t *testing.T) {
	require.True(t, processing.IsHTTPLink("https://n.news.naver.com/article/001/0001"))
	require.True(t, processing.IsHTTPLink("HTTP://example.com"))
	require.False(t, processing.IsHTTPLink(""))
	require.False(t, processing.IsHTTPLink("/relative/path"))
	require.False(t, processing.IsHTTPLink("ftp://example.com"))
	require.False(t, processing.IsHTTPLink("mailto:http://x"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "가나다", processing.Truncate("가나다", 5))
	require.Equal(t, "가나...", processing.Truncate("가나다라", 2))
	require.Equal(t, "abc", processing.Truncate("abc", 0))
}

func TestParsePublished(t *testing.T) {
	ts := processing.ParsePublished("Mon, 19 Oct 2026 10:15:00 +0900")
	require.False(t, ts.IsZero())
	require.Equal(t, time.Date(2026, 10, 19, 1, 15, 0, 0, time.UTC), ts.UTC())

	rfc := processing.ParsePublished("2024-02-03T04:05:06Z")
	require.Equal(t, 2024, rfc.Year())
	require.Equal(t, 6, rfc.Second())

	legacy := processing.ParsePublished("2024-02-03 04:05:06")
	require.Equal(t, 3, legacy.Day())

	require.True(t, processing.ParsePublished("invalid").IsZero())
}

func TestGenerateTitleFromText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     string
	}{
		{name: "empty", text: "", maxWords: 10, want: ""},
		{name: "single sentence", text: "오늘의 주요 뉴스.", maxWords: 10, want: "오늘의 주요 뉴스"},
		{name: "truncated", text: "one two three four five six", maxWords: 3, want: "one two three..."},
		{name: "no sentence end", text: "속보 시장 동향", maxWords: 10, want: "속보 시장 동향"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, processing.GenerateTitleFromText(tt.text, tt.maxWords))
		})
	}
}
