package config

import (
	"errors"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/cinder/pkg/serialization"
)

// Config 用於狀態快取的配置
type Config struct {
	Performance PerformanceConfig `json:"performance"`
	CacheDir    string            `json:"cacheDir"`

	AutoPersist     bool          `json:"autoPersist"`
	PersistInterval time.Duration `json:"persistInterval"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`

	Resilience    ResilienceConfig
	BloomFilter   BloomFilterConfig
	Serialization SerializationConfig
	Logger        *zap.Logger
}

// PerformanceConfig 外部配置物件的 performance 區段
type PerformanceConfig struct {
	EnableCaching bool `json:"enableCaching"`
	CacheSize     int  `json:"cacheSize"`
}

// ResilienceConfig 用於設置磁碟 I/O 的重試和熔斷器
type ResilienceConfig struct {
	DiskCircuitBreaker gobreaker.Settings
	RetryAttempts      int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	RetryFactor        float64
	RetryJitter        float64
}

// BloomFilterConfig 用於磁碟命名空間負向查詢過濾器的配置
type BloomFilterConfig struct {
	Enable            bool
	ExpectedItems     uint
	FalsePositiveRate float64
}

// SerializationConfig 序列化相關配置
type SerializationConfig struct {
	Type    string
	Encoder func(io.Writer) serialization.Encoder
	Decoder func(io.Reader) serialization.Decoder
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrCacheSizeZero      = errors.New("cache size must be at least 1")
	ErrPersistIntervalLow = errors.New("persist interval must be positive")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	cfg := &Config{
		Performance: PerformanceConfig{
			EnableCaching: true,
			CacheSize:     256,
		},
		CacheDir:        "cache",
		AutoPersist:     true,
		PersistInterval: 30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Resilience: ResilienceConfig{
			DiskCircuitBreaker: gobreaker.Settings{
				Name:        "DiskCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			RetryAttempts:  3,
			RetryBaseDelay: 50 * time.Millisecond,
			RetryMaxDelay:  500 * time.Millisecond,
			RetryFactor:    2,
			RetryJitter:    0.1,
		},
		BloomFilter: BloomFilterConfig{
			Enable:            true,
			ExpectedItems:     10000,
			FalsePositiveRate: 0.01,
		},
		Serialization: SerializationConfig{
			Type:    serialization.JSONType,
			Encoder: serialization.JSONEncoder,
			Decoder: serialization.JSONDecoder,
		},
		Logger: zap.NewNop(),
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	// 最終檢查
	if cfg.Performance.CacheSize <= 0 {
		return nil, ErrCacheSizeZero
	}
	if cfg.PersistInterval <= 0 {
		return nil, ErrPersistIntervalLow
	}

	return cfg, nil
}
