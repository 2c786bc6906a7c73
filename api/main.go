package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/news-digest/internal/app"
	"github.com/DeafMist/news-digest/internal/config"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/peersync"
	"github.com/DeafMist/news-digest/internal/pipeline"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	redisClient, err := app.ConnectRedis(ctx, cfg.Common, log)
	if err != nil {
		log.Error("connect redis", slog.Any("err", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	cache := linkcache.NewRedis(redisClient, log)

	provider, err := app.NewProvider(cfg.Common, log)
	if err != nil {
		log.Error("init search provider", slog.Any("err", err))
		os.Exit(1)
	}

	sender, closeSender := app.NewSender(cfg.Delivery, log)
	defer func() {
		if err := closeSender(); err != nil {
			log.Warn("close digest sender", slog.Any("err", err))
		}
	}()

	health := []pinger{cache}
	if p, ok := provider.(pinger); ok {
		health = append(health, p)
	}

	m := metrics.New()
	srv := &server{
		log:      log,
		cfg:      cfg,
		pipeline: app.NewService(cfg.Common, cfg.Crawl, provider, cache, sender, m, log),
		health:   health,
		probe:    peersync.NewHTTPProbe(cfg.SyncTimeout),
		tally:    &peersync.Tally{},
		metrics:  m,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestLimit + 5*time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("provider", provider.Name()),
			slog.Int("peers", len(cfg.SyncPeers)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type newsPipeline interface {
	Search(ctx context.Context, query string, pages int) ([]models.NewsItem, error)
	Digest(ctx context.Context, req pipeline.DigestRequest) (pipeline.Outcome, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	pipeline newsPipeline
	health   []pinger
	probe    peersync.Probe
	tally    *peersync.Tally
	metrics  *metrics.Metrics
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/active_sync", s.handleActiveSync)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestLimit))
		r.Get("/search", s.handleSearch)
		r.Get("/search2", s.handleSearchNew)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range s.health {
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	page, ok := parseInt(r.URL.Query().Get("page"), 1)
	if !ok {
		writeTransfer(w, models.Failure(http.StatusBadRequest, "invalid page"))
		return
	}

	items, err := s.pipeline.Search(r.Context(), query, page)
	if err != nil {
		s.log.Warn("search failed", slog.String("query", query), slog.Int("page", page), slog.Any("err", err))
	}
	writeTransfer(w, pipeline.Transfer(items, err))
}

func (s *server) handleSearchNew(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	start, ok := parseInt(r.URL.Query().Get("start"), 1)
	if !ok {
		writeTransfer(w, models.Failure(http.StatusBadRequest, "invalid start"))
		return
	}
	since, ok := parseTime(r.URL.Query().Get("since"))
	if !ok {
		writeTransfer(w, models.Failure(http.StatusBadRequest, "invalid since"))
		return
	}

	out, err := s.pipeline.Digest(r.Context(), pipeline.DigestRequest{Query: query, Start: start, Since: since})
	if err != nil {
		s.log.Warn("digest run failed", slog.String("query", query), slog.Any("err", err))
	}
	writeTransfer(w, pipeline.Transfer(out.Items, err))
}

func (s *server) handleActiveSync(w http.ResponseWriter, r *http.Request) {
	report := peersync.Sync(r.Context(), s.probe, s.cfg.SyncPeers)
	s.metrics.PeersFailed(report.Failures)
	total := s.tally.Add(report)
	if report.Failures > 0 {
		s.log.Warn("peer sync failures",
			slog.Int("failed", report.Failures),
			slog.Int64("total", total),
		)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"err": total})
}

func parseInt(raw string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func writeTransfer(w http.ResponseWriter, t models.Transfer) {
	writeJSON(w, t.Code, t)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
