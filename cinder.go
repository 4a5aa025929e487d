// Package cinder 提供具磁碟持久化的 LRU 狀態快取
//
// 記憶體內的快取以 LRU 策略限制容量，被淘汰的項目會同步寫入磁碟，
// 重啟時再從磁碟回填，外部狀態管理程式只透過本套件的窄介面存取。
package cinder

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/cinder/config"
	"goflare.io/cinder/internal/cache/lru"
	"goflare.io/cinder/internal/models"
	"goflare.io/cinder/internal/store/disk"
	"goflare.io/cinder/pkg/serialization"
)

// Option 定義初始化 Cinder 的選項接口
type Option = config.Option

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config.Config) error {
		if logger != nil {
			cfg.Logger = logger
		}
		return nil
	}
}

// WithCaching 啟用或停用快取
func WithCaching(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.Performance.EnableCaching = enabled
		return nil
	}
}

// WithCacheSize 設置記憶體快取的最大項目數
func WithCacheSize(size int) Option {
	return func(cfg *config.Config) error {
		if size <= 0 {
			return config.ErrCacheSizeZero
		}
		cfg.Performance.CacheSize = size
		return nil
	}
}

// WithCacheDirectory 設置磁碟持久化目錄
func WithCacheDirectory(dir string) Option {
	return func(cfg *config.Config) error {
		cfg.CacheDir = dir
		return nil
	}
}

// WithAutoPersist 啟用或停用背景持久化迴圈
func WithAutoPersist(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.AutoPersist = enabled
		return nil
	}
}

// WithPersistInterval 設置背景持久化的時間間隔
func WithPersistInterval(interval time.Duration) Option {
	return func(cfg *config.Config) error {
		if interval <= 0 {
			return config.ErrPersistIntervalLow
		}
		cfg.PersistInterval = interval
		return nil
	}
}

// WithSerializer 設置磁碟記錄的序列化方式
func WithSerializer(serializer string) Option {
	return func(cfg *config.Config) error {
		switch serializer {
		case serialization.JSONType:
			cfg.Serialization.Type = serialization.JSONType
			cfg.Serialization.Encoder = serialization.JSONEncoder
			cfg.Serialization.Decoder = serialization.JSONDecoder
		case serialization.GobType:
			cfg.Serialization.Type = serialization.GobType
			cfg.Serialization.Encoder = serialization.GobEncoder
			cfg.Serialization.Decoder = serialization.GobDecoder
		default:
			return fmt.Errorf("unsupported serialization type: %s", serializer)
		}
		return nil
	}
}

// WithBloomFilter 啟用或停用磁碟負向查詢過濾器
func WithBloomFilter(enabled bool) Option {
	return func(cfg *config.Config) error {
		cfg.BloomFilter.Enable = enabled
		return nil
	}
}

// Stats 是對外回報的快取統計
type Stats struct {
	Enabled       bool    `json:"enabled"`
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

// Cinder 將配置轉譯為快取引擎，並對外提供狀態存取的窄介面。
// 停用時所有操作皆為無害的空操作，呼叫端不需分支處理。
type Cinder struct {
	enabled bool
	cache   *lru.Cache
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New 初始化 Cinder，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Cinder, error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	return NewFromConfig(ctx, cfg), nil
}

// NewFromConfig 從外部配置物件初始化 Cinder。
// 快取建構失敗時回退為停用狀態，而不是讓宿主程序崩潰。
func NewFromConfig(ctx context.Context, cfg *config.Config) *Cinder {
	normalize(cfg)

	c := &Cinder{
		logger: cfg.Logger,
		tracer: otel.Tracer("cinder"),
	}

	if !cfg.Performance.EnableCaching {
		c.logger.Warn("caching disabled in configuration")
		return c
	}

	metrics := models.NewMetrics()
	store, err := disk.New(cfg, metrics)
	if err != nil {
		c.logger.Warn("failed to initialize cache storage, caching disabled", zap.Error(err))
		return c
	}

	c.cache = lru.New(
		ctx,
		cfg.Performance.CacheSize,
		store,
		metrics,
		cfg.Logger,
		cfg.AutoPersist,
		cfg.PersistInterval,
		cfg.ShutdownTimeout,
	)
	c.enabled = true

	return c
}

// normalize 為外部反序列化而來的配置補齊必要的預設值
func normalize(cfg *config.Config) {
	defaults, _ := config.NewConfig()

	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.Performance.CacheSize <= 0 {
		cfg.Performance.CacheSize = defaults.Performance.CacheSize
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaults.CacheDir
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = defaults.PersistInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Serialization.Encoder == nil || cfg.Serialization.Decoder == nil {
		cfg.Serialization = defaults.Serialization
	}
	if cfg.Resilience.RetryAttempts <= 0 {
		cfg.Resilience = defaults.Resilience
	}
	if cfg.BloomFilter.ExpectedItems == 0 {
		cfg.BloomFilter = defaults.BloomFilter
	}
}

// GetState 讀取快取的狀態；未命中時回傳 false
func (c *Cinder) GetState(ctx context.Context, key string) (any, bool) {
	ctx, span := c.tracer.Start(ctx, "Cinder.GetState",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(ctx, key)
}

// SetState 寫入狀態到快取
func (c *Cinder) SetState(ctx context.Context, key string, state any) {
	ctx, span := c.tracer.Start(ctx, "Cinder.SetState",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if !c.enabled {
		return
	}
	c.cache.Put(ctx, key, state)
}

// DeleteState 自記憶體與磁碟刪除狀態，回傳是否有刪除發生
func (c *Cinder) DeleteState(ctx context.Context, key string) bool {
	ctx, span := c.tracer.Start(ctx, "Cinder.DeleteState",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if !c.enabled {
		return false
	}
	return c.cache.Delete(ctx, key)
}

// ClearCache 清空所有快取狀態並歸零統計
func (c *Cinder) ClearCache(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Cinder.ClearCache")
	defer span.End()

	if !c.enabled {
		return nil
	}
	return c.cache.Clear(ctx)
}

// CacheStats 回傳快取統計
func (c *Cinder) CacheStats() Stats {
	if !c.enabled {
		return Stats{Enabled: false}
	}

	s := c.cache.Stats()
	return Stats{
		Enabled:       true,
		Hits:          s.Hits,
		Misses:        s.Misses,
		Evictions:     s.Evictions,
		DiskReads:     s.DiskReads,
		DiskWrites:    s.DiskWrites,
		TotalRequests: s.TotalRequests,
		CacheSize:     s.CacheSize,
		MaxSize:       s.MaxSize,
		HitRate:       s.HitRate,
		Utilization:   s.Utilization,
	}
}

// Persist 手動觸發一次完整的磁碟持久化
func (c *Cinder) Persist(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.cache.PersistAll(ctx)
}

// Shutdown 停止背景持久化迴圈並做最後一次持久化
func (c *Cinder) Shutdown(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.cache.Shutdown(ctx)
}
