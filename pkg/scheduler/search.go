package scheduler

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/cuemby/drex/pkg/capacity"
	"github.com/cuemby/drex/pkg/reliability"
	"github.com/cuemby/drex/pkg/types"
)

const (
	// DefaultExhaustiveLimit is the node count up to which every subset is
	// enumerated; larger sets use the greedy top-n subset per scheme.
	DefaultExhaustiveLimit = 12

	maxExhaustiveLimit = 20
)

type searchResult struct {
	feasible  []*candidate
	evaluated int
	short     *capacity.InsufficientError
}

func (r *searchResult) noteShort(id types.NodeID, requested, remaining uint64) {
	if r.short == nil {
		r.short = &capacity.InsufficientError{Node: id, Requested: requested, Remaining: remaining}
	}
}

// shortfall returns the first capacity shortfall seen, as an error
func (r *searchResult) shortfall() error {
	if r.short == nil {
		return nil
	}
	return r.short
}

// search collects every candidate with n in [2, len(nodes)] and k in
// [1, n-1] whose reliability meets the threshold and whose nodes appear to
// have room for a fragment. Capacity is read, not reserved.
func search(nodes types.NodeSet, req Request, ledger Ledger, limit int) (*searchResult, error) {
	ordered := orderNodes(nodes, req.FileID)
	free := make([]uint64, len(ordered))
	for i, n := range ordered {
		// unknown nodes read as zero free space
		free[i], _ = ledger.Remaining(n.ID)
	}

	if len(ordered) <= limit {
		return searchAll(ordered, free, req)
	}
	return searchGreedy(ordered, free, req)
}

// searchAll enumerates all C(m, n) subsets for every n
func searchAll(ordered types.NodeSet, free []uint64, req Request) (*searchResult, error) {
	m := len(ordered)
	res := &searchResult{}

	for mask := uint64(1); mask < uint64(1)<<m; mask++ {
		n := bits.OnesCount64(mask)
		if n < 2 {
			continue
		}

		subset := make([]types.Node, 0, n)
		rs := make([]float64, 0, n)
		minFree := uint64(math.MaxUint64)
		var minNode types.NodeID
		for i := 0; i < m; i++ {
			if mask&(uint64(1)<<i) == 0 {
				continue
			}
			subset = append(subset, ordered[i])
			rs = append(rs, ordered[i].Reliability)
			if free[i] < minFree {
				minFree = free[i]
				minNode = ordered[i].ID
			}
		}

		dist, err := reliability.Distribution(rs)
		if err != nil {
			return nil, err
		}
		weight := subsetWeight(req.FileID, subset)

		for k := 1; k < n; k++ {
			res.evaluated++
			p := reliability.AtLeast(dist, k)
			if p < req.Threshold {
				continue
			}
			scheme := types.Scheme{N: uint32(n), K: uint32(k)}
			fragment := scheme.FragmentSize(req.FileSize)
			if minFree < fragment {
				res.noteShort(minNode, fragment, minFree)
				continue
			}
			res.feasible = append(res.feasible, &candidate{
				scheme:      scheme,
				nodes:       subset,
				reliability: p,
				fragment:    fragment,
				stored:      scheme.StoredBytes(req.FileSize),
				tiebreak:    weight,
			})
		}
	}
	return res, nil
}

// searchGreedy takes, for each k, the nodes with room for a ceil(size/k)
// fragment in reliability order and grows the prefix one node at a time.
func searchGreedy(ordered types.NodeSet, free []uint64, req Request) (*searchResult, error) {
	m := len(ordered)
	res := &searchResult{}

	for k := 1; k < m; k++ {
		fragment := types.Scheme{N: uint32(k), K: uint32(k)}.FragmentSize(req.FileSize)

		eligible := make([]types.Node, 0, m)
		for i, node := range ordered {
			if free[i] >= fragment {
				eligible = append(eligible, node)
			}
		}

		dist := []float64{1}
		for i, node := range eligible {
			var err error
			if dist, err = reliability.Extend(dist, node.Reliability); err != nil {
				return nil, fmt.Errorf("node %s: %w", node.ID, err)
			}
			n := i + 1
			if n <= k {
				continue
			}

			res.evaluated++
			p := reliability.AtLeast(dist, k)
			if p < req.Threshold {
				continue
			}
			subset := eligible[:n:n]
			scheme := types.Scheme{N: uint32(n), K: uint32(k)}
			res.feasible = append(res.feasible, &candidate{
				scheme:      scheme,
				nodes:       subset,
				reliability: p,
				fragment:    fragment,
				stored:      scheme.StoredBytes(req.FileSize),
				tiebreak:    subsetWeight(req.FileID, subset),
			})
		}

		if len(eligible) < m {
			for i, node := range ordered {
				if free[i] < fragment {
					res.noteShort(node.ID, fragment, free[i])
					break
				}
			}
		}
	}
	return res, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultExhaustiveLimit
	}
	if limit > maxExhaustiveLimit {
		return maxExhaustiveLimit
	}
	return limit
}
