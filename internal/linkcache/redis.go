package linkcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DeafMist/news-digest/internal/logger"
	"github.com/DeafMist/news-digest/internal/models"
)

const (
	connectionTimeout = 5 * time.Second
	maxWatchRetries   = 5
)

var errMalformed = errors.New("malformed seen links")

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Redis stores each namespace as a hash: field = query, value = JSON array of links.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	return &Redis{client: client, log: logger.OrDiscard(log)}
}

// Ping checks that the backend is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Seen reads the stored links for query.
func (r *Redis) Seen(ctx context.Context, namespace, query string) (models.SeenLinkSet, error) {
	links, err := r.load(ctx, r.client, namespace, query)
	if err != nil {
		return nil, err
	}
	r.log.Debug("seen links loaded",
		slog.String("namespace", namespace),
		slog.String("query", query),
		slog.Int("count", len(links)),
	)
	return models.NewSeenLinkSet(links...), nil
}

// Remember merges links into the stored list under an optimistic WATCH.
func (r *Redis) Remember(ctx context.Context, namespace, query string, links []string) error {
	if len(links) == 0 {
		return nil
	}

	txf := func(tx *redis.Tx) error {
		existing, err := r.load(ctx, tx, namespace, query)
		if err != nil {
			return err
		}
		return r.store(ctx, tx, namespace, query, mergeLinks(existing, links))
	}

	if err := r.watch(ctx, txf, namespace); err != nil {
		return fmt.Errorf("remember links: %w", err)
	}
	return nil
}

// Trim caps every list in namespace to its newest maxLinks entries. Each list
// is rewritten under WATCH so a concurrent Remember is never overwritten.
func (r *Redis) Trim(ctx context.Context, namespace string, maxLinks int) (int, error) {
	queries, err := r.client.HKeys(ctx, namespace).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: hkeys %s: %w", ErrUnavailable, namespace, err)
	}

	total := 0
	for _, query := range queries {
		dropped, err := r.trimQuery(ctx, namespace, query, maxLinks)
		if err != nil {
			return total, fmt.Errorf("trim %s/%s: %w", namespace, query, err)
		}
		total += dropped
	}
	return total, nil
}

func (r *Redis) trimQuery(ctx context.Context, namespace, query string, maxLinks int) (int, error) {
	var dropped int
	txf := func(tx *redis.Tx) error {
		dropped = 0
		links, err := r.load(ctx, tx, namespace, query)
		if errors.Is(err, errMalformed) {
			r.log.Warn("skip malformed seen-link entry",
				slog.String("namespace", namespace),
				slog.String("query", query),
				slog.Any("err", err),
			)
			return nil
		}
		if err != nil {
			return err
		}

		kept, n := keepNewest(links, maxLinks)
		if n == 0 {
			return nil
		}
		if err := r.store(ctx, tx, namespace, query, kept); err != nil {
			return err
		}
		dropped = n
		return nil
	}

	if err := r.watch(ctx, txf, namespace); err != nil {
		return 0, err
	}
	return dropped, nil
}

// watch runs txf under WATCH key, retrying when another client modified it.
func (r *Redis) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	for range maxWatchRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (r *Redis) store(ctx context.Context, tx *redis.Tx, namespace, query string, links []string) error {
	payload, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, namespace, query, payload)
		return nil
	})
	return err
}

func (r *Redis) load(ctx context.Context, c redis.Cmdable, namespace, query string) ([]string, error) {
	raw, err := c.HGet(ctx, namespace, query).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: hget %s/%s: %w", ErrUnavailable, namespace, query, err)
	}

	var links []string
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil, fmt.Errorf("%w %s/%s: %w", errMalformed, namespace, query, err)
	}
	return links, nil
}
