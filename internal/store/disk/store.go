// Package disk implements the unbounded on-disk backing store for the
// cache. Each key maps to one record file named by a digest of the key;
// the namespace is never pruned by the cache engine, only by Delete and
// Clear.
package disk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/cinder/config"
	"goflare.io/cinder/internal/models"
	"goflare.io/cinder/internal/retrier"
	"goflare.io/cinder/pkg/serialization"
	"goflare.io/cinder/utils"
)

// Store is a durable key-addressed store for cache records.
type Store struct {
	dir    string
	suffix string

	metrics *models.Metrics
	logger  *zap.Logger

	encoder func(io.Writer) serialization.Encoder
	decoder func(io.Reader) serialization.Decoder

	breaker *gobreaker.CircuitBreaker
	retrier *retrier.Retrier

	filterMu      sync.Mutex
	filter        *bloom.BloomFilter
	filterEnabled bool
	filterItems   uint
	filterFP      float64
}

// New creates a Store rooted at cfg.CacheDir, creating the directory if
// absent. A directory that cannot be created or listed is a construction
// error; the caller decides whether that disables caching.
func New(cfg *config.Config, metrics *models.Metrics) (*Store, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %q: %w", cfg.CacheDir, err)
	}

	r, err := retrier.New(
		cfg.Resilience.RetryAttempts,
		cfg.Resilience.RetryBaseDelay,
		cfg.Resilience.RetryMaxDelay,
		cfg.Resilience.RetryFactor,
		cfg.Resilience.RetryJitter,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	s := &Store{
		dir:           cfg.CacheDir,
		suffix:        ".cache." + cfg.Serialization.Type,
		metrics:       metrics,
		logger:        cfg.Logger,
		encoder:       cfg.Serialization.Encoder,
		decoder:       cfg.Serialization.Decoder,
		breaker:       gobreaker.NewCircuitBreaker(cfg.Resilience.DiskCircuitBreaker),
		retrier:       r,
		filterEnabled: cfg.BloomFilter.Enable,
		filterItems:   cfg.BloomFilter.ExpectedItems,
		filterFP:      cfg.BloomFilter.FalsePositiveRate,
	}

	s.initFilter()

	return s, nil
}

// Path returns the record file for key. Distinct keys map to distinct
// files for any realistic key space.
func (s *Store) Path(key string) string {
	return s.pathFromDigest(utils.KeyDigest(key))
}

func (s *Store) pathFromDigest(digest string) string {
	return filepath.Join(s.dir, digest+s.suffix)
}

// Save serializes {key, entry, persistedAt} to the key's record file,
// overwriting any previous record. Transient write failures are retried;
// repeated failures trip the circuit breaker.
func (s *Store) Save(ctx context.Context, key string, entry *models.Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rec := models.Record{Key: key, Entry: entry, PersistedAt: time.Now()}
	var buf bytes.Buffer
	if err := s.encoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode cache record: %w", err)
	}

	digest := utils.KeyDigest(key)
	if _, err := s.breaker.Execute(func() (any, error) {
		return nil, s.retrier.Run(ctx, func() error {
			return os.WriteFile(s.pathFromDigest(digest), buf.Bytes(), 0o644)
		})
	}); err != nil {
		return fmt.Errorf("failed to write cache record: %w", err)
	}

	s.metrics.DiskWrites.Inc()
	s.filterAdd(digest)
	return nil
}

// Load reads the record for key. Absent, unreadable, and corrupt records
// all report not-found; only real I/O failures count against the breaker.
func (s *Store) Load(ctx context.Context, key string) (*models.Entry, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}

	digest := utils.KeyDigest(key)
	if !s.filterTest(digest) {
		return nil, false
	}

	path := s.pathFromDigest(digest)
	var data []byte
	if _, err := s.breaker.Execute(func() (any, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		data = b
		return nil, nil
	}); err != nil {
		s.logger.Warn("failed to load cache entry from disk",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var rec models.Record
	if err := s.decoder(bytes.NewReader(data)).Decode(&rec); err != nil || rec.Entry == nil {
		s.logger.Warn("ignoring corrupt cache record",
			zap.String("path", path), zap.Error(err))
		return nil, false
	}

	s.metrics.DiskReads.Inc()
	return rec.Entry, true
}

// Delete removes the record for key. It reports whether a record existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if err := os.Remove(s.Path(key)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete cache record: %w", err)
	}
	return true, nil
}

// Walk enumerates every persisted record in unspecified order, skipping
// corrupt files with a warning. Each decoded record counts one disk read.
// Returning false from fn stops the walk.
func (s *Store) Walk(ctx context.Context, fn func(key string, entry *models.Entry) bool) error {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}

	for _, de := range dirents {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if de.IsDir() || !strings.HasSuffix(de.Name(), s.suffix) {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read cache file", zap.String("path", path), zap.Error(err))
			continue
		}

		var rec models.Record
		if err := s.decoder(bytes.NewReader(data)).Decode(&rec); err != nil || rec.Entry == nil {
			s.logger.Warn("skipping corrupt cache file", zap.String("path", path), zap.Error(err))
			continue
		}

		s.metrics.DiskReads.Inc()
		if !fn(rec.Key, rec.Entry) {
			return nil
		}
	}

	return nil
}

// Clear removes every record in the namespace and resets the filter.
func (s *Store) Clear(ctx context.Context) error {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}

	var firstErr error
	for _, de := range dirents {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if de.IsDir() || !strings.HasSuffix(de.Name(), s.suffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, de.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove cache file", zap.String("name", de.Name()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.resetFilter()
	return firstErr
}
