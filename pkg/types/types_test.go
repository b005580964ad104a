package types

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scheme  Scheme
		wantErr bool
	}{
		{"replication of one", Scheme{N: 1, K: 1}, false},
		{"erasure coded", Scheme{N: 5, K: 3}, false},
		{"k equals n", Scheme{N: 4, K: 4}, false},
		{"k zero", Scheme{N: 3, K: 0}, true},
		{"k greater than n", Scheme{N: 2, K: 3}, true},
		{"n zero", Scheme{N: 0, K: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scheme.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidScheme))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchemeFragmentSize(t *testing.T) {
	tests := []struct {
		scheme   Scheme
		fileSize uint64
		fragment uint64
		stored   uint64
	}{
		{Scheme{N: 3, K: 2}, 300, 150, 450},
		{Scheme{N: 3, K: 2}, 301, 151, 453},
		{Scheme{N: 2, K: 1}, 300, 300, 600},
		{Scheme{N: 4, K: 3}, 1, 1, 4},
		{Scheme{N: 4, K: 3}, 0, 0, 0},
		{Scheme{N: 3, K: 1}, math.MaxUint64, math.MaxUint64, math.MaxUint64},
		{Scheme{N: 3, K: 2}, math.MaxUint64, math.MaxUint64/2 + 1, math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.scheme.String(), func(t *testing.T) {
			assert.Equal(t, tt.fragment, tt.scheme.FragmentSize(tt.fileSize))
			assert.Equal(t, tt.stored, tt.scheme.StoredBytes(tt.fileSize))
		})
	}

	assert.InDelta(t, 2.0/3.0, Scheme{N: 3, K: 2}.Efficiency(), 1e-12)
	assert.Equal(t, uint32(1), Scheme{N: 3, K: 2}.Tolerates())
}

func TestValidateReliability(t *testing.T) {
	for _, r := range []float64{0, -0.1, 1.01, math.NaN(), math.Inf(1)} {
		assert.True(t, errors.Is(ValidateReliability(r), ErrInvalidReliability), "r=%v", r)
	}
	for _, r := range []float64{1e-9, 0.5, 1} {
		assert.NoError(t, ValidateReliability(r), "r=%v", r)
	}
}

func TestNodeSetValidate(t *testing.T) {
	ok := NodeSet{{ID: "a", Reliability: 0.9}, {ID: "b", Reliability: 1}}
	require.NoError(t, ok.Validate())

	dup := NodeSet{{ID: "a", Reliability: 0.9}, {ID: "a", Reliability: 0.8}}
	assert.True(t, errors.Is(dup.Validate(), ErrDuplicateNode))

	zero := NodeSet{{ID: "a", Reliability: 0.9}, {ID: "b", Reliability: 0}}
	assert.True(t, errors.Is(zero.Validate(), ErrInvalidReliability))

	assert.Error(t, NodeSet{{Reliability: 0.5}}.Validate())
}

func TestNodeSetSortedByReliability(t *testing.T) {
	set := NodeSet{
		{ID: "c", Reliability: 0.5},
		{ID: "b", Reliability: 0.9},
		{ID: "a", Reliability: 0.9},
	}

	sorted := set.SortedByReliability()
	assert.Equal(t, []NodeID{"a", "b", "c"}, sorted.IDs())
	// input untouched
	assert.Equal(t, []NodeID{"c", "b", "a"}, set.IDs())

	n, found := set.Lookup("b")
	assert.True(t, found)
	assert.Equal(t, 0.9, n.Reliability)
	_, found = set.Lookup("z")
	assert.False(t, found)
}

func TestPlacementValidate(t *testing.T) {
	p := &Placement{
		FileSize:     300,
		Scheme:       Scheme{N: 3, K: 2},
		Nodes:        []NodeID{"a", "b", "c"},
		FragmentSize: 150,
	}
	assert.NoError(t, p.Validate())

	short := *p
	short.Nodes = []NodeID{"a", "b"}
	assert.Error(t, short.Validate())

	dup := *p
	dup.Nodes = []NodeID{"a", "a", "c"}
	assert.True(t, errors.Is(dup.Validate(), ErrDuplicateNode))

	badSize := *p
	badSize.FragmentSize = 100
	assert.Error(t, badSize.Validate())
}
