package coral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

// Cache is a read-through cache of loaded archives. An entry is reused only
// while the archive's path and modification time are unchanged. Failed loads
// are never cached.
type Cache struct {
	limit   int
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group

	loadFn func(path string, limit int) ([]domain.CoralRecord, error)
}

type cacheEntry struct {
	modTime time.Time
	records []domain.CoralRecord
}

// NewCache creates an empty cache that keeps up to limit rows per archive.
func NewCache(limit int, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		limit:   limit,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]cacheEntry),
		loadFn:  Load,
	}
}

// Load returns the records for path, loading the archive on a miss.
// Concurrent misses for the same key share one load.
func (c *Cache) Load(ctx context.Context, path string) ([]domain.CoralRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.metrics.CoralLoads.WithLabelValues("error").Inc()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, path)
		}
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	modTime := info.ModTime()

	if records, ok := c.lookup(path, modTime); ok {
		c.metrics.CoralLoads.WithLabelValues("cached").Inc()
		return records, nil
	}

	key := path + "@" + modTime.Format(time.RFC3339Nano)
	ch := c.group.DoChan(key, func() (any, error) {
		if e, ok := c.lookup(path, modTime); ok {
			return e, nil
		}
		return c.load(path, modTime)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.CoralRecord), nil
	}
}

func (c *Cache) lookup(path string, modTime time.Time) ([]domain.CoralRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || !e.modTime.Equal(modTime) {
		return nil, false
	}
	return e.records, true
}

func (c *Cache) load(path string, modTime time.Time) ([]domain.CoralRecord, error) {
	start := time.Now()
	records, err := c.loadFn(path, c.limit)
	if err != nil {
		c.metrics.CoralLoads.WithLabelValues("error").Inc()
		c.logger.Error("coral archive load failed", "path", path, "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{modTime: modTime, records: records}
	c.mu.Unlock()

	c.metrics.CoralLoads.WithLabelValues("loaded").Inc()
	c.metrics.CoralRecords.Set(float64(len(records)))
	c.logger.Info("coral archive loaded",
		"path", path,
		"records", len(records),
		"duration", time.Since(start),
	)
	return records, nil
}

// Invalidate drops the cached entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}
