package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/news-digest/internal/app"
	"github.com/DeafMist/news-digest/internal/config"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/logger"
)

type trimmer interface {
	Trim(ctx context.Context, namespace string, maxLinks int) (int, error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	redisClient, err := app.ConnectRedis(ctx, cfg.Common, log)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("connect redis", slog.Any("err", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	store := linkcache.NewRedis(redisClient, log)

	log.Info("connected to redis")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.String("namespace", cfg.SeenNamespace),
		slog.Int("max_links", cfg.MaxLinks),
	)

	runOnce(ctx, log, store, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, store, cfg)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, store trimmer, cfg *config.Retention) int {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dropped, err := store.Trim(subCtx, cfg.SeenNamespace, cfg.MaxLinks)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return dropped
	}

	if dropped > 0 {
		log.Info("retention run completed", slog.Int("dropped", dropped))
	} else {
		log.Debug("retention run completed, nothing to trim")
	}
	return dropped
}
