package linkcache

import (
	"context"
	"sync"
	"time"

	"github.com/DeafMist/news-digest/internal/models"
)

type entry struct {
	link string
	ts   time.Time
}

type cacheKey struct {
	namespace string
	query     string
}

// Memory keeps seen links in process with a per-query capacity and a ttl.
// It backs local runs and tests.
type Memory struct {
	mu       sync.RWMutex
	items    map[cacheKey][]entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates a cache holding at most capacity links per query for ttl.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		items:    make(map[cacheKey][]entry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Seen returns the links recorded for query inside the ttl window.
func (m *Memory) Seen(_ context.Context, namespace, query string) (models.SeenLinkSet, error) {
	cutoff := m.now().Add(-m.ttl)

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.items[cacheKey{namespace, query}]
	set := make(models.SeenLinkSet, len(entries))
	for _, e := range entries {
		if e.ts.After(cutoff) {
			set[e.link] = struct{}{}
		}
	}
	return set, nil
}

// Remember records links that are not already stored.
func (m *Memory) Remember(_ context.Context, namespace, query string, links []string) error {
	now := m.now()
	key := cacheKey{namespace, query}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.items[key]
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.link] = struct{}{}
	}
	for _, link := range links {
		if link == "" {
			continue
		}
		if _, ok := present[link]; ok {
			continue
		}
		present[link] = struct{}{}
		entries = append(entries, entry{link: link, ts: now})
	}
	m.items[key] = m.compact(entries, now, m.capacity)
	return nil
}

// Trim drops expired links and caps every query in namespace to maxLinks.
func (m *Memory) Trim(_ context.Context, namespace string, maxLinks int) (int, error) {
	now := m.now()
	limit := m.capacity
	if maxLinks > 0 && maxLinks < limit {
		limit = maxLinks
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key, entries := range m.items {
		if key.namespace != namespace {
			continue
		}
		kept := m.compact(entries, now, limit)
		dropped += len(entries) - len(kept)
		if len(kept) == 0 {
			delete(m.items, key)
			continue
		}
		m.items[key] = kept
	}
	return dropped, nil
}

func (m *Memory) compact(entries []entry, now time.Time, limit int) []entry {
	cutoff := now.Add(-m.ttl)
	for len(entries) > 0 && (len(entries) > limit || !entries[0].ts.After(cutoff)) {
		entries = entries[1:]
	}
	return entries
}
