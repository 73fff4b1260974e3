package parsort

import (
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/parsort/metrics"
)

// config holds Pool and Sort configuration.
type config struct {
	// Metrics receives pool and sort instruments.
	// Default: metrics.NoopProvider.
	Metrics metrics.Provider

	// CollectTimeout bounds every collect issued by Sort.
	// Zero means collect blocks until all results of the batch arrive.
	// Default: 0
	CollectTimeout time.Duration

	// ChunkSize caps the number of merge pairs Sort submits per batch.
	// Zero means the pool size. Values above the pool size are clamped to it.
	// Default: 0
	ChunkSize uint
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Metrics:        metrics.NewNoopProvider(),
		CollectTimeout: 0,
		ChunkSize:      0,
	}
}

// validateConfig checks invariants which individual options cannot see.
func validateConfig(cfg *config) error {
	if cfg.Metrics == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("", "metrics provider must not be nil"))
	}
	return nil
}

// buildConfig applies opts on top of the defaults. Nil options are skipped.
func buildConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return config{}, err
	}

	return cfg, nil
}

// Option configures a Pool or a Sort call.
// An Option returns an error wrapping ErrInvalidConfig on invalid input.
type Option func(*config) error

// WithMetrics sets the metrics provider used to record instruments.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithCollectTimeout bounds each collect issued by Sort (d must be >= 0).
func WithCollectTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithCollectTimeout requires d >= 0"))
		}
		cfg.CollectTimeout = d
		return nil
	}
}

// WithChunkSize caps the number of merge pairs submitted per batch.
func WithChunkSize(n uint) Option {
	return func(cfg *config) error { cfg.ChunkSize = n; return nil }
}
