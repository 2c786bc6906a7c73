package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/news-digest/internal/app"
	"github.com/DeafMist/news-digest/internal/config"
	"github.com/DeafMist/news-digest/internal/linkcache"
	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/metrics"
	"github.com/DeafMist/news-digest/internal/models"
	"github.com/DeafMist/news-digest/internal/pipeline"
)

type digestRunner interface {
	Digest(ctx context.Context, req pipeline.DigestRequest) (pipeline.Outcome, error)
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
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
	store := linkcache.NewRedis(redisClient, log)

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

	service := app.NewService(cfg.Common, cfg.Crawl, provider, store, sender, metrics.New(), log).
		WithWriteBack(store)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1,
		MaxBytes:       1e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.String("provider", provider.Name()),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, service, msg); err != nil {
			log.Warn("digest job failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				// Leave uncommitted so the job is redelivered on restart.
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ retries the dead-letter write with exponential backoff and
// reports whether it landed.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}

	log.Error("DLQ write exhausted retries",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return false
}

func processMessage(ctx context.Context, log *slog.Logger, runner digestRunner, msg kafka.Message) error {
	var job models.DigestJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return fmt.Errorf("decode digest job: %w", err)
	}

	job.Query = strings.TrimSpace(job.Query)
	if job.Query == "" {
		return errors.New("empty query")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	since, err := parseSince(job.Since)
	if err != nil {
		return err
	}

	out, err := runner.Digest(ctx, pipeline.DigestRequest{
		Query: job.Query,
		Start: job.Start,
		Since: since,
	})
	if err != nil {
		return fmt.Errorf("run digest job %s: %w", job.ID, err)
	}

	log.Info("digest job done",
		slog.String("job_id", job.ID),
		slog.String("query", job.Query),
		slog.Int("items", len(out.Items)),
		slog.Bool("delivered", out.Delivered),
	)
	return nil
}

// parseSince accepts an empty value, which lets the crawler fall back to its
// lookback window.
func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid since %q", raw)
}
