package scheduler

import (
	"errors"
	"testing"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRandomRequiresBudget(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		_, err := NewRandom(attempts, 1)
		assert.Error(t, err)
	}

	r, err := NewRandom(1, 0)
	require.NoError(t, err)
	assert.Equal(t, StrategyRandom, r.Name())
}

func TestRandomFindsPlacement(t *testing.T) {
	nodes := threeNodes()
	tracker := capacity.NewTracker(nodes)
	req := Request{FileID: "f", FileSize: 300, Threshold: 0.97}

	r, err := NewRandom(1000, 42)
	require.NoError(t, err)

	p, err := r.Select(nodes, req, tracker)
	require.NoError(t, err)
	checkPlacement(t, nodes, req, p)
	assert.Equal(t, StrategyRandom, p.Strategy)
	assert.Equal(t, p.Scheme.StoredBytes(req.FileSize), tracker.Outstanding())
}

func TestRandomDeterministicForSeed(t *testing.T) {
	nodes := uniformNodes(8, 0.9, 1<<20)
	req := Request{FileID: "f", FileSize: 4096, Threshold: 0.95}

	run := func() *types.Placement {
		r, err := NewRandom(1000, 7)
		require.NoError(t, err)
		p, err := r.Select(nodes, req, capacity.NewTracker(nodes))
		require.NoError(t, err)
		return p
	}

	a, b := run(), run()
	assert.Equal(t, a.Scheme, b.Scheme)
	assert.Equal(t, a.Nodes, b.Nodes)
}

func TestRandomExhaustsOnUnreachableThreshold(t *testing.T) {
	nodes := uniformNodes(4, 0.5, 1000)
	tracker := capacity.NewTracker(nodes)

	r, err := NewRandom(50, 1)
	require.NoError(t, err)

	// best case 1-of-4 is 0.9375
	_, err = r.Select(nodes, Request{FileID: "f", FileSize: 10, Threshold: 0.99}, tracker)
	assert.True(t, errors.Is(err, ErrExhausted), "err=%v", err)
	assert.Equal(t, uint64(0), tracker.Outstanding())
}

func TestRandomExhaustsOnCapacity(t *testing.T) {
	nodes := uniformNodes(4, 0.99, 10)
	tracker := capacity.NewTracker(nodes)

	r, err := NewRandom(20, 1)
	require.NoError(t, err)

	_, err = r.Select(nodes, Request{FileID: "f", FileSize: 1000, Threshold: 0.5}, tracker)
	require.True(t, errors.Is(err, ErrExhausted))

	var short *capacity.InsufficientError
	assert.True(t, errors.As(err, &short))
	assert.Equal(t, uint64(0), tracker.Outstanding())
}

func TestRandomTooFewNodes(t *testing.T) {
	r, err := NewRandom(10, 1)
	require.NoError(t, err)

	for _, nodes := range []types.NodeSet{nil, uniformNodes(1, 0.9, 100)} {
		_, err := r.Select(nodes, Request{FileSize: 1, Threshold: 0.5}, capacity.NewTracker(nodes))
		assert.True(t, errors.Is(err, ErrNoFeasiblePlacement))
	}
}
