// Package lru implements the in-memory, access-ordered cache engine.
// The engine is bounded to maxSize entries and spills evictions to a
// backing Store so no data is lost when capacity is exceeded.
package lru

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/cinder/internal/models"
)

// Store is the durable backing store the engine spills to and rehydrates
// from. The store is unbounded; the engine never prunes it.
type Store interface {
	Save(ctx context.Context, key string, entry *models.Entry) error
	Load(ctx context.Context, key string) (*models.Entry, bool)
	Delete(ctx context.Context, key string) (bool, error)
	Walk(ctx context.Context, fn func(key string, entry *models.Entry) bool) error
	Clear(ctx context.Context) error
}

var errNotFound = errors.New("entry not found on disk")

// Cache is an access-ordered cache bounded to maxSize entries.
//
// One mutex guards the entry map, the recency list, and every iteration
// over them, including the background flush. Disk read-through runs
// outside the lock and is deduplicated per key with singleflight.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // Front = least recently used, Back = most recently used
	maxSize int

	store   Store
	metrics *models.Metrics
	logger  *zap.Logger
	sf      singleflight.Group

	autoPersist     bool
	persistInterval time.Duration
	shutdownTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// item is the value stored in the recency list elements. The key lives
// here because eviction starts from list nodes.
type item struct {
	key   string
	entry *models.Entry
}

// New creates a Cache, warms it up from the backing store, and starts the
// background flush loop when autoPersist is set. Callers observe the cache
// only after warm-up has finished.
func New(
	ctx context.Context,
	maxSize int,
	store Store,
	metrics *models.Metrics,
	logger *zap.Logger,
	autoPersist bool,
	persistInterval time.Duration,
	shutdownTimeout time.Duration,
) *Cache {
	c := &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,

		store:   store,
		metrics: metrics,
		logger:  logger,

		autoPersist:     autoPersist,
		persistInterval: persistInterval,
		shutdownTimeout: shutdownTimeout,

		stopCh: make(chan struct{}),
	}

	c.warmUp(ctx)

	if c.autoPersist {
		c.wg.Add(1)
		go c.persistLoop()
		c.logger.Info("auto-persist enabled", zap.Duration("interval", c.persistInterval))
	}

	return c
}

// Get returns the value for key. A memory hit promotes the entry to most
// recently used. A miss falls through to the backing store; a disk hit is
// re-inserted without counting as a fresh request, which can evict a
// different key if the cache is already full.
func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToBack(el)
		it := el.Value.(*item)
		it.entry.LastTouched = time.Now()
		c.metrics.Hits.Inc()
		c.metrics.TotalRequests.Inc()
		value := it.entry.Value
		c.mu.Unlock()
		return value, true
	}
	c.metrics.Misses.Inc()
	c.metrics.TotalRequests.Inc()
	c.mu.Unlock()

	v, err, _ := c.sf.Do(key, func() (any, error) {
		entry, found := c.store.Load(ctx, key)
		if !found {
			return nil, errNotFound
		}

		c.mu.Lock()
		c.putLocked(ctx, key, entry.Value)
		c.mu.Unlock()
		return entry.Value, nil
	})
	if err != nil {
		return nil, false
	}
	return v, true
}

// Put writes key at the most-recently-used end, refreshing the entry if it
// already exists. Overflow evicts exactly the least-recently-used entry
// and synchronously persists it.
func (c *Cache) Put(ctx context.Context, key string, value any) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.TotalRequests.Inc()
	c.putLocked(ctx, key, value)
}

func (c *Cache) putLocked(ctx context.Context, key string, value any) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*item).entry.Touch(value)
		c.order.MoveToBack(el)
	} else {
		c.entries[key] = c.order.PushBack(&item{key: key, entry: models.NewEntry(value)})
	}

	if len(c.entries) > c.maxSize {
		c.evictLocked(ctx)
	}
}

// evictLocked removes the least-recently-used entry and persists it.
// Recency alone decides the victim; access counts never participate.
func (c *Cache) evictLocked(ctx context.Context) {
	el := c.order.Front()
	if el == nil {
		return
	}

	it := el.Value.(*item)
	c.order.Remove(el)
	delete(c.entries, it.key)
	c.metrics.Evictions.Inc()

	if err := c.store.Save(ctx, it.key, it.entry); err != nil {
		c.logger.Warn("failed to persist evicted entry",
			zap.String("key", it.key), zap.Error(err))
	}
}

// Delete removes key from memory and from the backing store. It reports
// whether either removal occurred.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	c.mu.Lock()
	el, ok := c.entries[key]
	if ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	c.mu.Unlock()

	removedFile, err := c.store.Delete(ctx, key)
	if err != nil {
		c.logger.Warn("failed to delete cache record",
			zap.String("key", key), zap.Error(err))
	}

	return ok || removedFile
}

// Clear empties the cache, removes every record from the backing store,
// and zeroes all counters.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()

	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.Warn("failed to clear disk namespace", zap.Error(err))
	}

	c.metrics.Reset()
	return err
}

// PersistAll flushes every current entry to the backing store without
// evicting anything.
func (c *Cache) PersistAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistAllLocked(ctx)
}

func (c *Cache) persistAllLocked(ctx context.Context) error {
	persisted := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		it := el.Value.(*item)
		if err := c.store.Save(ctx, it.key, it.entry); err != nil {
			c.logger.Warn("failed to persist cache entry",
				zap.String("key", it.key), zap.Error(err))
			continue
		}
		persisted++
	}

	c.logger.Info("persisted cache entries to disk", zap.Int("entries", persisted))
	return nil
}

// Len returns the number of entries currently in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters plus derived figures.
func (c *Cache) Stats() models.Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()
	return c.metrics.Snapshot(size, c.maxSize)
}

// warmUp populates the cache from the backing store, up to maxSize
// records, bypassing the eviction path and the hit/miss counters. Each
// loaded record counts one disk read inside Walk.
func (c *Cache) warmUp(ctx context.Context) {
	loaded := 0
	err := c.store.Walk(ctx, func(key string, entry *models.Entry) bool {
		c.entries[key] = c.order.PushBack(&item{key: key, entry: entry})
		loaded++
		return loaded < c.maxSize
	})
	if err != nil {
		c.logger.Warn("cache warm-up aborted", zap.Error(err))
	}

	if loaded > 0 {
		c.logger.Info("cache warmed up from disk", zap.Int("loaded", loaded))
	} else {
		c.logger.Debug("no cache entries found on disk")
	}
}
