package models

import "go.uber.org/atomic"

// Metrics stores cache statistics. The counters are shared between the
// engine and the disk store and only reset on an explicit Clear.
type Metrics struct {
	Hits          *atomic.Int64
	Misses        *atomic.Int64
	Evictions     *atomic.Int64
	DiskReads     *atomic.Int64
	DiskWrites    *atomic.Int64
	TotalRequests *atomic.Int64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		Hits:          atomic.NewInt64(0),
		Misses:        atomic.NewInt64(0),
		Evictions:     atomic.NewInt64(0),
		DiskReads:     atomic.NewInt64(0),
		DiskWrites:    atomic.NewInt64(0),
		TotalRequests: atomic.NewInt64(0),
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.Hits.Store(0)
	m.Misses.Store(0)
	m.Evictions.Store(0)
	m.DiskReads.Store(0)
	m.DiskWrites.Store(0)
	m.TotalRequests.Store(0)
}

// Stats is a point-in-time snapshot of the counters plus derived figures.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	DiskReads     int64   `json:"diskReads"`
	DiskWrites    int64   `json:"diskWrites"`
	TotalRequests int64   `json:"totalRequests"`
	CacheSize     int     `json:"cacheSize"`
	MaxSize       int     `json:"maxSize"`
	HitRate       float64 `json:"hitRate"`
	Utilization   float64 `json:"utilization"`
}

// Snapshot builds a Stats for the given cache occupancy.
func (m *Metrics) Snapshot(cacheSize, maxSize int) Stats {
	s := Stats{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		Evictions:     m.Evictions.Load(),
		DiskReads:     m.DiskReads.Load(),
		DiskWrites:    m.DiskWrites.Load(),
		TotalRequests: m.TotalRequests.Load(),
		CacheSize:     cacheSize,
		MaxSize:       maxSize,
	}
	if s.TotalRequests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.TotalRequests)
	}
	if maxSize > 0 {
		s.Utilization = float64(cacheSize) / float64(maxSize)
	}
	return s
}
