package scheduler

import (
	"errors"
	"fmt"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/events"
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/types"
	"github.com/rs/zerolog"
)

// Recorder persists committed placements
type Recorder interface {
	CreatePlacement(placement *types.Placement) error
}

// Scheduler places files on the nodes of one session. It owns the
// session's capacity tracker; strategies commit through it, so a returned
// placement needs no further commit step.
type Scheduler struct {
	nodes    types.NodeSet
	tracker  *capacity.Tracker
	recorder Recorder
	broker   *events.Broker
	logger   zerolog.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTracker shares an existing tracker instead of seeding a new one
func WithTracker(t *capacity.Tracker) Option {
	return func(s *Scheduler) { s.tracker = t }
}

// WithRecorder persists every committed placement
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithBroker publishes placement outcomes
func WithBroker(b *events.Broker) Option {
	return func(s *Scheduler) { s.broker = b }
}

// WithLogger overrides the component logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler for a node set snapshot
func NewScheduler(nodes types.NodeSet, opts ...Option) (*Scheduler, error) {
	if err := nodes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node set: %w", err)
	}

	s := &Scheduler{
		nodes:  nodes,
		logger: log.WithComponent("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = capacity.NewTracker(nodes)
	}
	return s, nil
}

// Tracker returns the session capacity ledger
func (s *Scheduler) Tracker() *capacity.Tracker {
	return s.tracker
}

// Nodes returns the session node set
func (s *Scheduler) Nodes() types.NodeSet {
	return s.nodes
}

// Schedule places one file with the given strategy. On error no capacity
// stays reserved.
func (s *Scheduler) Schedule(fileID string, fileSize uint64, threshold float64, strategy Strategy) (*types.Placement, error) {
	if strategy == nil {
		return nil, fmt.Errorf("strategy is nil")
	}
	req := Request{FileID: fileID, FileSize: fileSize, Threshold: threshold}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	name := strategy.Name()
	timer := metrics.NewTimer()
	placement, err := strategy.Select(s.nodes, req, s.tracker)
	timer.ObserveDurationVec(metrics.SchedulingLatency, name)

	if err == nil {
		err = s.accept(placement)
	}
	logger := s.logger.With().Str("file_id", fileID).Str("strategy", name).Logger()
	if err != nil {
		metrics.PlacementsTotal.WithLabelValues(name, outcome(err)).Inc()
		logger.Warn().
			Err(err).
			Uint64("file_size", fileSize).
			Float64("threshold", threshold).
			Msg("placement failed")
		if s.broker != nil {
			s.broker.Publish(events.NewFailureEvent(fileID, name, err))
		}
		return nil, err
	}

	metrics.PlacementsTotal.WithLabelValues(name, "found").Inc()
	metrics.ReservedBytes.Add(float64(placement.Scheme.StoredBytes(fileSize)))
	metrics.PlacementReliability.Observe(placement.Reliability)
	for _, id := range placement.Nodes {
		if free, ok := s.tracker.Remaining(id); ok {
			metrics.NodeFreeBytes.WithLabelValues(string(id)).Set(float64(free))
		}
	}

	logger.Info().
		Str("scheme", placement.Scheme.String()).
		Uint64("fragment_size", placement.FragmentSize).
		Float64("reliability", placement.Reliability).
		Dur("predicted", placement.PredictedDuration).
		Msg("placement committed")

	if s.broker != nil {
		s.broker.Publish(events.NewPlacementEvent(placement))
	}
	return placement, nil
}

// accept checks the placement and records it; on failure the reservation
// is released.
func (s *Scheduler) accept(p *types.Placement) error {
	err := p.Validate()
	if err == nil && s.recorder != nil {
		if rerr := s.recorder.CreatePlacement(p); rerr != nil {
			err = fmt.Errorf("record placement: %w", rerr)
		}
	}
	if err != nil {
		if rerr := s.tracker.Release(p.Reservation); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNoFeasiblePlacement):
		return "no_feasible"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	default:
		return "error"
	}
}
