// Package peersync asks every known peer server to resynchronise and tallies
// the peers that could not be reached.
package peersync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the outcome recorded for one peer.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "err"
)

// Probe pings one peer.
type Probe interface {
	Ping(ctx context.Context, peer string) error
}

// Result is the outcome of pinging a single peer.
type Result struct {
	Peer   string `json:"peer"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report lists per-peer results in the order peers were given.
type Report struct {
	Results  []Result `json:"results"`
	Failures int      `json:"failures"`
}

// Sync pings all peers concurrently. A failing peer is recorded as
// StatusFailed and never aborts the others.
func Sync(ctx context.Context, probe Probe, peers []string) Report {
	results := make([]Result, len(peers))

	var wg sync.WaitGroup
	for i, peer := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := probe.Ping(ctx, peer); err != nil {
				results[i] = Result{Peer: peer, Status: StatusFailed, Error: err.Error()}
				return
			}
			results[i] = Result{Peer: peer, Status: StatusOK}
		}()
	}
	wg.Wait()

	report := Report{Results: results}
	for _, r := range results {
		if r.Status == StatusFailed {
			report.Failures++
		}
	}
	return report
}

// Tally accumulates failures across Sync calls. The owner decides its lifetime.
type Tally struct {
	failures atomic.Int64
}

// Add folds a report into the tally and returns the new total.
func (t *Tally) Add(r Report) int64 {
	return t.failures.Add(int64(r.Failures))
}

// Total returns the accumulated failure count.
func (t *Tally) Total() int64 {
	return t.failures.Load()
}

// HTTPProbe calls GET http://{peer}{path} and treats any non-2xx as failure.
type HTTPProbe struct {
	client *http.Client
	path   string
}

// NewHTTPProbe builds a probe hitting the peer sync endpoint.
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProbe{client: &http.Client{Timeout: timeout}, path: "/tdi/v1/set_sync"}
}

func (p *HTTPProbe) Ping(ctx context.Context, peer string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+peer+p.path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync %s: %w", peer, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("sync %s: %s", peer, res.Status)
	}
	return nil
}
