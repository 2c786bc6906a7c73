package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-digest/internal/config"
	"github.com/DeafMist/news-digest/internal/crawler"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/peersync"
	"github.com/DeafMist/news-digest/internal/pipeline"
)

type stubPipeline struct {
	pages   []int
	digests []pipeline.DigestRequest
	items   []models.NewsItem
	err     error
}

func (s *stubPipeline) Search(_ context.Context, _ string, pages int) ([]models.NewsItem, error) {
	s.pages = append(s.pages, pages)
	if pages > crawler.MaxPages {
		return nil, crawler.ErrOverPage
	}
	return s.items, s.err
}

func (s *stubPipeline) Digest(_ context.Context, req pipeline.DigestRequest) (pipeline.Outcome, error) {
	s.digests = append(s.digests, req)
	return pipeline.Outcome{Items: s.items}, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubProbe map[string]error

func (s stubProbe) Ping(_ context.Context, peer string) error { return s[peer] }

func newTestServer(p *stubPipeline) *server {
	return &server{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg:      &config.API{SyncPeers: []string{"a", "b"}, RequestLimit: time.Minute},
		pipeline: p,
		health:   []pinger{stubPinger{}},
		probe:    stubProbe{"b": errors.New("down")},
		tally:    &peersync.Tally{},
	}
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearchReturnsEnvelope(t *testing.T) {
	p := &stubPipeline{items: []models.NewsItem{{Title: "a", Link: "https://a"}, {Title: "b", Link: "https://b"}}}
	h := newTestServer(p).routes()

	rec, body := get(t, h, "/search?query=%ED%85%8C%EC%8A%A4%ED%8A%B8&page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "SUCCESS", body["result"])
	require.EqualValues(t, 2, body["list_count"])
	require.Len(t, body["data"], 2)
	require.Equal(t, []int{1}, p.pages)
}

func TestSearchOverPage(t *testing.T) {
	p := &stubPipeline{}
	h := newTestServer(p).routes()

	rec, body := get(t, h, "/search?query=q&page=11")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "FAIL", body["result"])
	require.EqualValues(t, 400, body["code"])
	require.Equal(t, "Over Page", body["message"])
}

func TestSearchInvalidPage(t *testing.T) {
	p := &stubPipeline{}
	rec, _ := get(t, newTestServer(p).routes(), "/search?query=q&page=abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, p.pages)
}

func TestSearchFatalError(t *testing.T) {
	p := &stubPipeline{err: &crawler.FetchError{Offset: 1, Err: errors.New("unreachable")}}
	rec, body := get(t, newTestServer(p).routes(), "/search?query=q")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "FAIL", body["result"])
}

func TestSearchNewPassesParams(t *testing.T) {
	p := &stubPipeline{}
	rec, body := get(t, newTestServer(p).routes(), "/search2?query=q&start=101&since=2026-10-19T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 0, body["list_count"])
	require.Contains(t, body, "data")
	require.Equal(t, []any{}, body["data"])
	require.Len(t, p.digests, 1)
	require.Equal(t, 101, p.digests[0].Start)
	require.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), p.digests[0].Since)

	rec, _ = get(t, newTestServer(p).routes(), "/search2?query=q&since=yesterday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveSyncAccumulates(t *testing.T) {
	h := newTestServer(&stubPipeline{}).routes()

	_, body := get(t, h, "/active_sync")
	require.EqualValues(t, 1, body["err"])
	_, body = get(t, h, "/active_sync")
	require.EqualValues(t, 2, body["err"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubPipeline{})
	rec, _ := get(t, s.routes(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	s.health = []pinger{stubPinger{}, stubPinger{err: errors.New("search provider down")}}
	rec, body := get(t, s.routes(), "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "search provider down", body["error"])
}

func TestParseInt(t *testing.T) {
	v, ok := parseInt("", 1)
	require.True(t, ok)
	require.Equal(t, 1, v)

	v, ok = parseInt(" 7 ", 1)
	require.True(t, ok)
	require.Equal(t, 7, v)

	_, ok = parseInt("x", 1)
	require.False(t, ok)
}
