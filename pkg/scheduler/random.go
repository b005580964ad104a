package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/metrics"
	"github.com/cuemby/drex/pkg/reliability"
	"github.com/cuemby/drex/pkg/types"
)

// Random draws a scheme and node subset at random until one meets the
// threshold and fits, or the attempt budget runs out.
type Random struct {
	maxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random strategy. maxAttempts bounds the search and
// must be positive; seed 0 seeds from the clock.
func NewRandom(maxAttempts int, seed int64) (*Random, error) {
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

func (r *Random) Name() string { return StrategyRandom }

// draw picks n in [2,m], k in [1,n-1] and n distinct node indexes
func (r *Random) draw(m int) (int, int, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 2 + r.rng.Intn(m-1)
	k := 1 + r.rng.Intn(n-1)
	return n, k, r.rng.Perm(m)[:n]
}

// Select implements Strategy
func (r *Random) Select(nodes types.NodeSet, req Request, ledger Ledger) (*types.Placement, error) {
	if err := validateInput(nodes, req); err != nil {
		return nil, err
	}
	m := len(nodes)
	if m < 2 {
		return nil, fmt.Errorf("%w: need at least 2 nodes, have %d", ErrNoFeasiblePlacement, m)
	}

	attempts := 0
	defer func() {
		metrics.CandidatesEvaluated.WithLabelValues(r.Name()).Add(float64(attempts))
	}()

	var lastShort error
	for attempts < r.maxAttempts {
		attempts++
		n, k, picks := r.draw(m)

		subset := make([]types.Node, n)
		rs := make([]float64, n)
		for i, idx := range picks {
			subset[i] = nodes[idx]
			rs[i] = nodes[idx].Reliability
		}

		p, err := reliability.ProbabilityKOfN(rs, k)
		if err != nil {
			return nil, err
		}
		if p < req.Threshold {
			continue
		}

		scheme := types.Scheme{N: uint32(n), K: uint32(k)}
		c := &candidate{
			scheme:      scheme,
			nodes:       subset,
			reliability: p,
			fragment:    scheme.FragmentSize(req.FileSize),
			stored:      scheme.StoredBytes(req.FileSize),
		}
		token, err := ledger.TryReserve(allocationsFor(c.nodes, c.fragment))
		if err != nil {
			var short *capacity.InsufficientError
			if errors.As(err, &short) {
				lastShort = err
				continue
			}
			return nil, fmt.Errorf("reserve capacity: %w", err)
		}
		return newPlacement(req, c, token, r.Name()), nil
	}

	if lastShort != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastShort)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}
