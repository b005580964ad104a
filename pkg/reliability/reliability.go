// Package reliability computes survival probabilities of K-of-N redundancy
// schemes over nodes with independent, non-identical reliabilities.
//
// Nodes are not identically distributed, so the binomial closed form does
// not apply. The package uses the Poisson-binomial recurrence
//
//	dp[i][j] = dp[i-1][j]*(1-r_i) + dp[i-1][j-1]*r_i
//
// where dp[i][j] is the probability that exactly j of the first i nodes
// survive. Cost is O(n^2) for n selected nodes.
package reliability

import (
	"fmt"

	"github.com/cuemby/drex/pkg/types"
)

// Distribution returns p where p[j] is the probability that exactly j of
// the given nodes survive. len(p) == len(reliabilities)+1.
func Distribution(reliabilities []float64) ([]float64, error) {
	for i, r := range reliabilities {
		if err := types.ValidateReliability(r); err != nil {
			return nil, fmt.Errorf("reliability[%d]: %w", i, err)
		}
	}

	dp := []float64{1}
	for _, r := range reliabilities {
		dp = extend(dp, r)
	}
	return dp, nil
}

// Extend adds one node with reliability r to a distribution produced by
// Distribution or a previous Extend. The input slice is not modified.
func Extend(dist []float64, r float64) ([]float64, error) {
	if err := types.ValidateReliability(r); err != nil {
		return nil, err
	}
	if len(dist) == 0 {
		dist = []float64{1}
	}
	return extend(dist, r), nil
}

func extend(dist []float64, r float64) []float64 {
	next := make([]float64, len(dist)+1)
	for j, p := range dist {
		next[j] += p * (1 - r)
		next[j+1] += p * r
	}
	return next
}

// AtLeast sums the tail of a distribution from k upward.
func AtLeast(dist []float64, k int) float64 {
	if k <= 0 {
		return 1
	}
	var p float64
	for j := k; j < len(dist); j++ {
		p += dist[j]
	}
	if p > 1 {
		p = 1
	}
	return p
}

// ProbabilityKOfN returns P(at least k of the nodes survive) for the given
// per-node survival probabilities.
//
// k == 0 always yields 1. k > len(reliabilities) fails with
// types.ErrInvalidScheme. Reliabilities outside (0,1] fail with
// types.ErrInvalidReliability.
func ProbabilityKOfN(reliabilities []float64, k int) (float64, error) {
	if k < 0 || k > len(reliabilities) {
		return 0, fmt.Errorf("%w: k=%d n=%d", types.ErrInvalidScheme, k, len(reliabilities))
	}
	dist, err := Distribution(reliabilities)
	if err != nil {
		return 0, err
	}
	return AtLeast(dist, k), nil
}

// SchemeReliability evaluates a scheme against concrete nodes.
func SchemeReliability(nodes []types.Node, scheme types.Scheme) (float64, error) {
	if err := scheme.Validate(); err != nil {
		return 0, err
	}
	if int(scheme.N) != len(nodes) {
		return 0, fmt.Errorf("%w: scheme %s over %d nodes", types.ErrInvalidScheme, scheme, len(nodes))
	}
	rs := make([]float64, len(nodes))
	for i, n := range nodes {
		rs[i] = n.Reliability
	}
	return ProbabilityKOfN(rs, int(scheme.K))
}
