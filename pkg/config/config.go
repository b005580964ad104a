// Package config loads drex session files.
//
// A session file lists the node inventory, the scheduler settings and the
// transfer samples the performance predictor is trained from. Byte sizes
// accept human-readable units ("10GB", "512KB").
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/predictor"
	"github.com/cuemby/drex/pkg/scheduler"
	"github.com/cuemby/drex/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is a session file
type Config struct {
	Nodes     []NodeConfig    `yaml:"nodes"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Predictor PredictorConfig `yaml:"predictor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig describes one storage node
type NodeConfig struct {
	ID          string            `yaml:"id"`
	Reliability float64           `yaml:"reliability"`
	Capacity    datasize.ByteSize `yaml:"capacity"`
	Bandwidth   datasize.ByteSize `yaml:"bandwidth,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

// SchedulerConfig selects and tunes the placement strategy
type SchedulerConfig struct {
	Strategy        string `yaml:"strategy"`
	MaxAttempts     int    `yaml:"max_attempts"`
	ExhaustiveLimit int    `yaml:"exhaustive_limit"`
	Seed            int64  `yaml:"seed"`
}

// PredictorConfig holds regression buckets and training samples
type PredictorConfig struct {
	Buckets []datasize.ByteSize `yaml:"buckets"`

	// CacheTTL memoizes predictions; unset selects DefaultCacheTTL and 0
	// disables the cache
	CacheTTL *time.Duration `yaml:"cache_ttl"`
	Samples  []SampleConfig `yaml:"samples"`
}

// TTL returns the effective prediction cache TTL
func (p PredictorConfig) TTL() time.Duration {
	if p.CacheTTL == nil {
		return DefaultCacheTTL
	}
	return *p.CacheTTL
}

// SampleConfig is one observed transfer
type SampleConfig struct {
	Size     datasize.ByteSize `yaml:"size"`
	N        uint32            `yaml:"n"`
	K        uint32            `yaml:"k"`
	Duration time.Duration     `yaml:"duration"`
}

// LoggingConfig mirrors log.Config
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads, defaults and validates a session file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a session document, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the scheduler cannot run with
func (c *Config) Validate() error {
	switch c.Scheduler.Strategy {
	case scheduler.StrategyRandom, scheduler.StrategyExhaustive, scheduler.StrategyPerformance:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Scheduler.Strategy)
	}
	if c.Scheduler.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.ExhaustiveLimit < 0 {
		return fmt.Errorf("%w: exhaustive_limit must not be negative", ErrInvalidConfig)
	}
	if c.Predictor.TTL() < 0 {
		return fmt.Errorf("%w: cache_ttl must not be negative", ErrInvalidConfig)
	}

	for i, s := range c.Predictor.Samples {
		if err := (types.Scheme{N: s.N, K: s.K}).Validate(); err != nil {
			return fmt.Errorf("%w: samples[%d]: %w", ErrInvalidConfig, i, err)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("%w: samples[%d]: duration must be positive", ErrInvalidConfig, i)
		}
	}

	if _, err := c.NodeSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NodeSet converts the node list, validating reliabilities and IDs
func (c *Config) NodeSet() (types.NodeSet, error) {
	nodes := make(types.NodeSet, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = types.Node{
			ID:           types.NodeID(n.ID),
			Reliability:  n.Reliability,
			FreeCapacity: n.Capacity.Bytes(),
			Bandwidth:    n.Bandwidth.Bytes(),
			Labels:       n.Labels,
		}
	}
	if err := nodes.Validate(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Samples returns training samples for predictor.Fit
func (c *Config) Samples() []predictor.Sample {
	out := make([]predictor.Sample, len(c.Predictor.Samples))
	for i, s := range c.Predictor.Samples {
		out[i] = predictor.Sample{FileSize: s.Size.Bytes(), N: s.N, K: s.K, Duration: s.Duration}
	}
	return out
}

// Buckets returns the bucket upper bounds in bytes
func (c *Config) Buckets() []uint64 {
	out := make([]uint64, len(c.Predictor.Buckets))
	for i, b := range c.Predictor.Buckets {
		out[i] = b.Bytes()
	}
	return out
}

// NewPredictor fits the regression over the configured samples and wraps it
// in a TTL cache. It returns nil, nil when there are no samples or too few
// to train any bucket; performance-aware placement then ranks by overhead.
func (c *Config) NewPredictor() (predictor.Predictor, error) {
	if len(c.Predictor.Samples) == 0 {
		return nil, nil
	}
	model, err := predictor.Fit(c.Buckets(), c.Samples())
	if errors.Is(err, predictor.ErrNoModel) {
		logger := log.WithComponent("config")
		logger.Warn().
			Err(err).
			Int("samples", len(c.Predictor.Samples)).
			Msg("predictor untrained, performance placement ranks by overhead")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fit predictor: %w", err)
	}

	ttl := c.Predictor.TTL()
	if ttl == 0 {
		return model, nil
	}
	return predictor.NewCached(model, ttl), nil
}

// NewStrategy builds the named strategy from the scheduler settings. An
// empty name selects the configured default.
func (c *Config) NewStrategy(name string, p predictor.Predictor) (scheduler.Strategy, error) {
	if name == "" {
		name = c.Scheduler.Strategy
	}
	switch name {
	case scheduler.StrategyRandom:
		return scheduler.NewRandom(c.Scheduler.MaxAttempts, c.Scheduler.Seed)
	case scheduler.StrategyExhaustive:
		return scheduler.NewExhaustive(c.Scheduler.ExhaustiveLimit), nil
	case scheduler.StrategyPerformance:
		return scheduler.NewPerformanceAware(p, c.Scheduler.ExhaustiveLimit), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, name)
	}
}

// LogConfig converts the logging section
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.Logging.Level),
		JSONOutput: c.Logging.JSON,
	}
}
