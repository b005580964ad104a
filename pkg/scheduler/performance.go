package scheduler

import (
	"sort"
	"time"

	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/predictor"
	"github.com/cuemby/drex/pkg/types"
)

// PerformanceAware searches like Exhaustive but commits the feasible
// candidate with the shortest predicted transfer time. When the predictor
// cannot answer for any scheme in play, candidates are ranked by storage
// overhead instead; a predictor failure never blocks a feasible placement.
type PerformanceAware struct {
	predictor predictor.Predictor
	limit     int
}

// NewPerformanceAware creates a performance-aware strategy. A nil
// predictor always falls back to overhead ranking.
func NewPerformanceAware(p predictor.Predictor, limit int) *PerformanceAware {
	return &PerformanceAware{predictor: p, limit: clampLimit(limit)}
}

func (s *PerformanceAware) Name() string { return StrategyPerformance }

// Select implements Strategy
func (s *PerformanceAware) Select(nodes types.NodeSet, req Request, ledger Ledger) (*types.Placement, error) {
	if err := validateInput(nodes, req); err != nil {
		return nil, err
	}

	res, err := search(nodes, req, ledger, s.limit)
	if err != nil {
		return nil, err
	}
	metrics.CandidatesEvaluated.WithLabelValues(s.Name()).Add(float64(res.evaluated))

	ranked := res.feasible
	sortByOverhead(ranked)
	if len(ranked) > 0 && !s.predict(req, ranked) {
		metrics.PredictorFallbacks.Inc()
		for _, c := range ranked {
			c.predicted = 0
		}
	} else {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].predicted < ranked[j].predicted })
	}

	return commit(req, ranked, ledger, s.Name(), res.shortfall())
}

// predict fills in predicted durations, one predictor call per scheme.
// It reports false if any prediction failed.
func (s *PerformanceAware) predict(req Request, cands []*candidate) bool {
	logger := log.WithStrategy(s.Name())
	if s.predictor == nil {
		logger.Warn().Str("file_id", req.FileID).Msg("no predictor configured, ranking by overhead")
		return false
	}

	known := make(map[types.Scheme]time.Duration)
	for _, c := range cands {
		d, ok := known[c.scheme]
		if !ok {
			var err error
			d, err = s.predictor.Predict(req.FileSize, c.scheme.N, c.scheme.K)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("file_id", req.FileID).
					Str("scheme", c.scheme.String()).
					Msg("prediction failed, ranking by overhead")
				return false
			}
			known[c.scheme] = d
		}
		c.predicted = d
	}
	return true
}
