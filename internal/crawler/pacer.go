package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive page requests of one crawl.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a pacer that lets the first Wait through immediately and
// delays each later one until delay has passed since the previous.
// A non-positive delay disables pacing.
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
