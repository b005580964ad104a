package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/predictor"
	"github.com/cuemby/drex/pkg/scheduler"
	"github.com/cuemby/drex/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionYAML = `
nodes:
  - {id: a, reliability: 0.9, capacity: 10GB, bandwidth: 100MB}
  - {id: b, reliability: 0.95, capacity: 512MB}
  - id: c
    reliability: 0.99
    capacity: 1000
    labels: {zone: west}
scheduler:
  strategy: performance
  max_attempts: 500
  seed: 7
predictor:
  cache_ttl: 30s
  samples:
    - {size: 10MB, n: 3, k: 2, duration: 120ms}
    - {size: 10MB, n: 4, k: 2, duration: 140ms}
    - {size: 10MB, n: 4, k: 3, duration: 110ms}
    - {size: 20MB, n: 3, k: 1, duration: 400ms}
    - {size: 5MB, n: 5, k: 2, duration: 90ms}
logging:
  level: debug
`

func TestParseSession(t *testing.T) {
	cfg, err := Parse([]byte(sessionYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Nodes, 3)
	assert.Equal(t, 10*datasize.GB, cfg.Nodes[0].Capacity)
	assert.Equal(t, 100*datasize.MB, cfg.Nodes[0].Bandwidth)
	assert.Equal(t, datasize.ByteSize(1000), cfg.Nodes[2].Capacity)
	assert.Equal(t, "west", cfg.Nodes[2].Labels["zone"])

	assert.Equal(t, scheduler.StrategyPerformance, cfg.Scheduler.Strategy)
	assert.Equal(t, 500, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, scheduler.DefaultExhaustiveLimit, cfg.Scheduler.ExhaustiveLimit, "defaulted")
	assert.Equal(t, 30*time.Second, cfg.Predictor.TTL())
	assert.Equal(t, 120*time.Millisecond, cfg.Predictor.Samples[0].Duration)
	assert.Equal(t, log.DebugLevel, cfg.LogConfig().Level)

	nodes, err := cfg.NodeSet()
	require.NoError(t, err)
	assert.Equal(t, []types.NodeID{"a", "b", "c"}, nodes.IDs())
	assert.Equal(t, uint64(512<<20), nodes[1].FreeCapacity)

	samples := cfg.Samples()
	require.Len(t, samples, 5)
	assert.Equal(t, uint64(10<<20), samples[0].FileSize)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, scheduler.StrategyExhaustive, cfg.Scheduler.Strategy)
	assert.Equal(t, DefaultMaxAttempts, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, DefaultCacheTTL, cfg.Predictor.TTL())
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown strategy", "scheduler: {strategy: fastest}"},
		{"negative attempts", "scheduler: {max_attempts: -3}"},
		{"negative limit", "scheduler: {exhaustive_limit: -1}"},
		{"bad reliability", "nodes: [{id: a, reliability: 1.5, capacity: 1KB}]"},
		{"zero reliability", "nodes: [{id: a, reliability: 0, capacity: 1KB}]"},
		{"duplicate node", "nodes: [{id: a, reliability: 0.9}, {id: a, reliability: 0.8}]"},
		{"bad sample scheme", "predictor: {samples: [{size: 1MB, n: 2, k: 3, duration: 1s}]}"},
		{"zero sample duration", "predictor: {samples: [{size: 1MB, n: 3, k: 2}]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "err=%v", err)
		})
	}
}

func TestParseRejectsBadSize(t *testing.T) {
	_, err := Parse([]byte("nodes: [{id: a, reliability: 0.9, capacity: lots}]"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sessionYAML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Nodes, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	cfg, err := Parse([]byte(sessionYAML))
	require.NoError(t, err)

	pred, err := cfg.NewPredictor()
	require.NoError(t, err)
	require.NotNil(t, pred)
	d, err := pred.Predict(10<<20, 3, 2)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, time.Duration(0))

	s, err := cfg.NewStrategy("", pred)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StrategyPerformance, s.Name())

	for _, name := range []string{scheduler.StrategyRandom, scheduler.StrategyExhaustive} {
		s, err := cfg.NewStrategy(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err = cfg.NewStrategy("bogus", nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewPredictorWithoutSamples(t *testing.T) {
	pred, err := Default().NewPredictor()
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestNewPredictorTooFewSamples(t *testing.T) {
	cfg, err := Parse([]byte(`
scheduler: {strategy: performance}
predictor:
  samples:
    - {size: 10MB, n: 3, k: 2, duration: 120ms}
    - {size: 20MB, n: 4, k: 2, duration: 200ms}
`))
	require.NoError(t, err)

	pred, err := cfg.NewPredictor()
	require.NoError(t, err)
	assert.Nil(t, pred)

	// performance placement still runs and ranks by overhead
	s, err := cfg.NewStrategy("", pred)
	require.NoError(t, err)
	nodes := types.NodeSet{
		{ID: "a", Reliability: 0.9, FreeCapacity: 1000},
		{ID: "b", Reliability: 0.9, FreeCapacity: 1000},
		{ID: "c", Reliability: 0.9, FreeCapacity: 1000},
	}
	p, err := s.Select(nodes, scheduler.Request{FileID: "f", FileSize: 300, Threshold: 0.97}, capacity.NewTracker(nodes))
	require.NoError(t, err)
	assert.Equal(t, types.Scheme{N: 3, K: 2}, p.Scheme)
}

func TestCacheTTL(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		want   time.Duration
		cached bool
	}{
		{"unset", "", DefaultCacheTTL, true},
		{"explicit", "  cache_ttl: 5s\n", 5 * time.Second, true},
		{"disabled", "  cache_ttl: 0s\n", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(sessionPredictor + tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Predictor.TTL())

			pred, err := cfg.NewPredictor()
			require.NoError(t, err)
			_, isCached := pred.(*predictor.Cached)
			assert.Equal(t, tt.cached, isCached)
		})
	}

	_, err := Parse([]byte(sessionPredictor + "  cache_ttl: -1s\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

const sessionPredictor = `
predictor:
  samples:
    - {size: 10MB, n: 3, k: 2, duration: 120ms}
    - {size: 10MB, n: 4, k: 2, duration: 140ms}
    - {size: 10MB, n: 4, k: 3, duration: 110ms}
    - {size: 20MB, n: 3, k: 1, duration: 400ms}
    - {size: 5MB, n: 5, k: 2, duration: 90ms}
`
