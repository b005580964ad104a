package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/types"
	"github.com/google/uuid"
	"github.com/nspcc-dev/hrw"
)

// Strategy names
const (
	StrategyRandom      = "random"
	StrategyExhaustive  = "exhaustive"
	StrategyPerformance = "performance"
)

var (
	// ErrExhausted is returned by Random when its attempt budget runs out
	ErrExhausted = errors.New("retry budget exhausted")

	// ErrNoFeasiblePlacement means no scheme and node subset satisfies both
	// the reliability threshold and node capacities
	ErrNoFeasiblePlacement = errors.New("no feasible placement")

	// ErrInvalidThreshold is returned for a threshold outside (0,1)
	ErrInvalidThreshold = errors.New("invalid reliability threshold")
)

// Ledger is the capacity view a strategy reserves against
type Ledger interface {
	Remaining(id types.NodeID) (uint64, bool)
	TryReserve(allocations []capacity.Allocation) (types.ReservationToken, error)
	Release(token types.ReservationToken) error
}

// Request describes the file to place
type Request struct {
	FileID    string
	FileSize  uint64
	Threshold float64
}

// Validate checks the threshold lies in (0,1)
func (r Request) Validate() error {
	if math.IsNaN(r.Threshold) || r.Threshold <= 0 || r.Threshold >= 1 {
		return fmt.Errorf("%w: %v not in (0,1)", ErrInvalidThreshold, r.Threshold)
	}
	return nil
}

// Strategy chooses a scheme and node subset for a file and commits the
// capacity for it through the ledger. A returned error guarantees that the
// strategy left no reservation behind.
type Strategy interface {
	Name() string
	Select(nodes types.NodeSet, req Request, ledger Ledger) (*types.Placement, error)
}

// candidate is one (scheme, node subset) pair that met the threshold
type candidate struct {
	scheme      types.Scheme
	nodes       []types.Node
	reliability float64
	fragment    uint64
	stored      uint64
	tiebreak    uint64
	predicted   time.Duration
}

// lessOverhead orders candidates by total stored bytes, then fewer
// fragments, then higher k/n, then higher reliability. Remaining ties fall
// to the per-file rendezvous weight and finally node IDs.
func lessOverhead(a, b *candidate) bool {
	if a.stored != b.stored {
		return a.stored < b.stored
	}
	if a.scheme.N != b.scheme.N {
		return a.scheme.N < b.scheme.N
	}
	// k_a/n_a > k_b/n_b without division
	ea := uint64(a.scheme.K) * uint64(b.scheme.N)
	eb := uint64(b.scheme.K) * uint64(a.scheme.N)
	if ea != eb {
		return ea > eb
	}
	if a.reliability != b.reliability {
		return a.reliability > b.reliability
	}
	if a.tiebreak != b.tiebreak {
		return a.tiebreak < b.tiebreak
	}
	for i := range a.nodes {
		if a.nodes[i].ID != b.nodes[i].ID {
			return a.nodes[i].ID < b.nodes[i].ID
		}
	}
	return false
}

func sortByOverhead(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return lessOverhead(cands[i], cands[j]) })
}

// nodeWeight is the rendezvous weight of a node for a given file
func nodeWeight(fileID string, id types.NodeID) uint64 {
	return hrw.Hash([]byte(fileID + "/" + string(id)))
}

func subsetWeight(fileID string, nodes []types.Node) uint64 {
	var w uint64
	for _, n := range nodes {
		w ^= nodeWeight(fileID, n.ID)
	}
	return w
}

// orderNodes sorts by reliability descending; equally reliable nodes are
// ordered by their rendezvous weight for the file so that different files
// spread across them.
func orderNodes(nodes types.NodeSet, fileID string) types.NodeSet {
	out := make(types.NodeSet, len(nodes))
	copy(out, nodes)
	weights := make(map[types.NodeID]uint64, len(out))
	for _, n := range out {
		weights[n.ID] = nodeWeight(fileID, n.ID)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reliability != out[j].Reliability {
			return out[i].Reliability > out[j].Reliability
		}
		if weights[out[i].ID] != weights[out[j].ID] {
			return weights[out[i].ID] > weights[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func allocationsFor(nodes []types.Node, fragment uint64) []capacity.Allocation {
	allocs := make([]capacity.Allocation, len(nodes))
	for i, n := range nodes {
		allocs[i] = capacity.Allocation{Node: n.ID, Bytes: fragment}
	}
	return allocs
}

func newPlacement(req Request, c *candidate, token types.ReservationToken, strategy string) *types.Placement {
	ids := make([]types.NodeID, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	return &types.Placement{
		ID:                uuid.New().String(),
		FileID:            req.FileID,
		FileSize:          req.FileSize,
		Scheme:            c.scheme,
		Nodes:             ids,
		FragmentSize:      c.fragment,
		Reliability:       c.reliability,
		Threshold:         req.Threshold,
		Strategy:          strategy,
		PredictedDuration: c.predicted,
		Reservation:       token,
		CreatedAt:         time.Now(),
	}
}

// commit walks ranked candidates and keeps the first reservation that
// succeeds. A shortfall on one candidate moves on to the next; any other
// ledger error aborts. seen is a shortfall observed while searching and is
// reported if nothing could be committed.
func commit(req Request, ranked []*candidate, ledger Ledger, strategy string, seen error) (*types.Placement, error) {
	lastShort := seen
	for _, c := range ranked {
		token, err := ledger.TryReserve(allocationsFor(c.nodes, c.fragment))
		if err != nil {
			var short *capacity.InsufficientError
			if errors.As(err, &short) {
				lastShort = err
				continue
			}
			return nil, fmt.Errorf("reserve capacity: %w", err)
		}
		return newPlacement(req, c, token, strategy), nil
	}

	if lastShort != nil {
		return nil, fmt.Errorf("%w: %d reliable candidates, none with capacity: %w", ErrNoFeasiblePlacement, len(ranked), lastShort)
	}
	return nil, fmt.Errorf("%w: threshold %v unreachable", ErrNoFeasiblePlacement, req.Threshold)
}

func validateInput(nodes types.NodeSet, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return nodes.Validate()
}
