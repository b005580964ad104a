package config

import (
	"time"

	"github.com/cuemby/drex/pkg/scheduler"
)

const (
	DefaultMaxAttempts = 10000
	DefaultCacheTTL    = time.Minute
	DefaultLogLevel    = "info"
)

// Default returns a config with no nodes and default settings
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Scheduler.Strategy == "" {
		c.Scheduler.Strategy = scheduler.StrategyExhaustive
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = DefaultMaxAttempts
	}
	if c.Scheduler.ExhaustiveLimit == 0 {
		c.Scheduler.ExhaustiveLimit = scheduler.DefaultExhaustiveLimit
	}
	if c.Predictor.CacheTTL == nil {
		ttl := DefaultCacheTTL
		c.Predictor.CacheTTL = &ttl
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
