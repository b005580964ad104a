package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/events"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/storage"
	"github.com/cuemby/drex/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderFunc func(*types.Placement) error

func (f recorderFunc) CreatePlacement(p *types.Placement) error { return f(p) }

func TestNewSchedulerValidatesNodes(t *testing.T) {
	dup := types.NodeSet{
		{ID: "a", Reliability: 0.9, FreeCapacity: 1},
		{ID: "a", Reliability: 0.8, FreeCapacity: 1},
	}
	_, err := NewScheduler(dup)
	assert.True(t, errors.Is(err, types.ErrDuplicateNode))

	s, err := NewScheduler(threeNodes())
	require.NoError(t, err)
	assert.NotNil(t, s.Tracker())
	assert.Len(t, s.Nodes(), 3)
}

func TestScheduleScenario(t *testing.T) {
	s, err := NewScheduler(threeNodes())
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.PlacementsTotal.WithLabelValues(StrategyExhaustive, "found"))

	p, err := s.Schedule("file-1", 300, 0.97, NewExhaustive(0))
	require.NoError(t, err)
	assert.Equal(t, types.Scheme{N: 3, K: 2}, p.Scheme)
	assert.Equal(t, "file-1", p.FileID)
	assert.Equal(t, uint64(450), s.Tracker().Outstanding())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PlacementsTotal.WithLabelValues(StrategyExhaustive, "found")))
	assert.Equal(t, float64(850), testutil.ToFloat64(metrics.NodeFreeBytes.WithLabelValues("A")))
}

func TestScheduleRejectsBadRequest(t *testing.T) {
	s, err := NewScheduler(threeNodes())
	require.NoError(t, err)

	_, err = s.Schedule("f", 10, 0.97, nil)
	assert.Error(t, err)

	_, err = s.Schedule("f", 10, 1, NewExhaustive(0))
	assert.True(t, errors.Is(err, ErrInvalidThreshold))
}

func TestScheduleFailureCountsOutcome(t *testing.T) {
	s, err := NewScheduler(uniformNodes(3, 0.5, 1000))
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.PlacementsTotal.WithLabelValues(StrategyExhaustive, "no_feasible"))
	_, err = s.Schedule("f", 10, 0.99, NewExhaustive(0))
	require.True(t, errors.Is(err, ErrNoFeasiblePlacement))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PlacementsTotal.WithLabelValues(StrategyExhaustive, "no_feasible")))
	assert.Equal(t, uint64(0), s.Tracker().Outstanding())
}

func TestScheduleReleasesOnRecorderFailure(t *testing.T) {
	nodes := threeNodes()
	s, err := NewScheduler(nodes, WithRecorder(recorderFunc(func(*types.Placement) error {
		return errors.New("disk full")
	})))
	require.NoError(t, err)

	_, err = s.Schedule("f", 300, 0.97, NewExhaustive(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, uint64(0), s.Tracker().Outstanding())
	for _, n := range nodes {
		free, _ := s.Tracker().Remaining(n.ID)
		assert.Equal(t, n.FreeCapacity, free)
	}
}

func TestScheduleRecordsToStore(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	nodes := threeNodes()
	for i := range nodes {
		require.NoError(t, store.CreateNode(&nodes[i]))
	}
	inventory, err := store.NodeSet()
	require.NoError(t, err)

	s, err := NewScheduler(inventory, WithRecorder(store))
	require.NoError(t, err)

	p, err := s.Schedule("file-1", 300, 0.97, NewExhaustive(0))
	require.NoError(t, err)

	stored, err := store.GetPlacement(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Scheme, stored.Scheme)
	assert.Equal(t, p.Nodes, stored.Nodes)

	byFile, err := store.ListPlacementsByFile("file-1")
	require.NoError(t, err)
	assert.Len(t, byFile, 1)
}

func TestSchedulePublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	s, err := NewScheduler(threeNodes(), WithBroker(broker))
	require.NoError(t, err)

	next := func() *events.Event {
		select {
		case ev := <-sub:
			return ev
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
			return nil
		}
	}

	p, err := s.Schedule("file-1", 300, 0.97, NewExhaustive(0))
	require.NoError(t, err)
	ev := next()
	assert.Equal(t, events.EventPlacementScheduled, ev.Type)
	assert.Equal(t, p.ID, ev.Metadata["placement_id"])
	assert.Equal(t, "2-of-3", ev.Metadata["scheme"])

	_, err = s.Schedule("file-2", 300, 0.9999, NewExhaustive(0))
	require.Error(t, err)
	ev = next()
	assert.Equal(t, events.EventPlacementFailed, ev.Type)
	assert.Equal(t, "file-2", ev.Metadata["file_id"])
}

func TestConcurrentSchedulingConservesCapacity(t *testing.T) {
	nodes := uniformNodes(8, 0.9, 10_000)
	var total uint64
	for _, n := range nodes {
		total += n.FreeCapacity
	}

	s, err := NewScheduler(nodes)
	require.NoError(t, err)
	random, err := NewRandom(500, 11)
	require.NoError(t, err)
	strategies := []Strategy{random, NewExhaustive(0), NewPerformanceAware(constantPredictor(time.Millisecond), 0)}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed []*types.Placement
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.Schedule(fmt.Sprintf("file-%d", i), 1000, 0.95, strategies[i%len(strategies)])
			if err != nil {
				assert.True(t, errors.Is(err, ErrNoFeasiblePlacement) || errors.Is(err, ErrExhausted), "err=%v", err)
				return
			}
			mu.Lock()
			placed = append(placed, p)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.NotEmpty(t, placed)

	var committed uint64
	for _, p := range placed {
		checkPlacement(t, nodes, Request{FileID: p.FileID, FileSize: 1000, Threshold: 0.95}, p)
		committed += p.Scheme.StoredBytes(1000)
	}
	assert.Equal(t, committed, s.Tracker().Outstanding())

	var remaining uint64
	for _, free := range s.Tracker().Snapshot() {
		remaining += free
	}
	assert.Equal(t, total, remaining+committed)
}

func TestSharedTrackerAcrossSchedulers(t *testing.T) {
	nodes := threeNodes()
	tracker := capacity.NewTracker(nodes)

	a, err := NewScheduler(nodes, WithTracker(tracker))
	require.NoError(t, err)
	b, err := NewScheduler(nodes, WithTracker(tracker))
	require.NoError(t, err)

	_, err = a.Schedule("f1", 300, 0.97, NewExhaustive(0))
	require.NoError(t, err)
	_, err = b.Schedule("f2", 300, 0.97, NewExhaustive(0))
	require.NoError(t, err)

	assert.Equal(t, uint64(900), tracker.Outstanding())
}
