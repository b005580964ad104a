package scheduler

import (
	"github.com/cuemby/drex/pkg/log"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/types"
)

// Exhaustive searches every scheme and, up to its node limit, every node
// subset, then commits the feasible candidate with the least storage
// overhead.
type Exhaustive struct {
	limit int
}

// NewExhaustive creates an exhaustive strategy. Node sets larger than
// limit are searched with the greedy top-n subset per scheme; limit <= 0
// selects DefaultExhaustiveLimit.
func NewExhaustive(limit int) *Exhaustive {
	return &Exhaustive{limit: clampLimit(limit)}
}

func (e *Exhaustive) Name() string { return StrategyExhaustive }

// Select implements Strategy
func (e *Exhaustive) Select(nodes types.NodeSet, req Request, ledger Ledger) (*types.Placement, error) {
	if err := validateInput(nodes, req); err != nil {
		return nil, err
	}

	res, err := search(nodes, req, ledger, e.limit)
	if err != nil {
		return nil, err
	}
	metrics.CandidatesEvaluated.WithLabelValues(e.Name()).Add(float64(res.evaluated))

	logger := log.WithFileID(req.FileID)
	logger.Debug().
		Str("strategy", e.Name()).
		Int("evaluated", res.evaluated).
		Int("feasible", len(res.feasible)).
		Msg("exhaustive search finished")

	sortByOverhead(res.feasible)
	return commit(req, res.feasible, ledger, e.Name(), res.shortfall())
}
