package types

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	// ErrInvalidScheme is returned for a scheme violating 1 <= k <= n
	ErrInvalidScheme = errors.New("invalid scheme")

	// ErrInvalidReliability is returned for a reliability outside (0,1]
	ErrInvalidReliability = errors.New("invalid reliability")

	// ErrDuplicateNode is returned when a node set lists the same ID twice
	ErrDuplicateNode = errors.New("duplicate node")
)

// NodeID identifies a storage node
type NodeID string

// Node is a storage node snapshot taken for one scheduling decision
type Node struct {
	ID           NodeID  `json:"id" yaml:"id"`
	Reliability  float64 `json:"reliability" yaml:"reliability"`
	FreeCapacity uint64  `json:"free_capacity" yaml:"free_capacity"`

	// Bandwidth in bytes per second, informational; zero if unknown
	Bandwidth uint64 `json:"bandwidth,omitempty" yaml:"bandwidth,omitempty"`

	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty" yaml:"-"`
}

// ValidateReliability checks that r is a usable survival probability.
func ValidateReliability(r float64) error {
	if math.IsNaN(r) || r <= 0 || r > 1 {
		return fmt.Errorf("%w: %v not in (0,1]", ErrInvalidReliability, r)
	}
	return nil
}

// Validate checks the node's reliability and identity
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id is empty")
	}
	if err := ValidateReliability(n.Reliability); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	return nil
}

// NodeSet is the catalog of nodes available to a scheduling decision.
// It is read-only input owned by the caller.
type NodeSet []Node

// Validate rejects unusable nodes and duplicate IDs
func (s NodeSet) Validate() error {
	seen := make(map[NodeID]struct{}, len(s))
	for _, n := range s {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// Lookup returns the node with the given ID
func (s NodeSet) Lookup(id NodeID) (Node, bool) {
	for _, n := range s {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// IDs returns node IDs in set order
func (s NodeSet) IDs() []NodeID {
	ids := make([]NodeID, len(s))
	for i, n := range s {
		ids[i] = n.ID
	}
	return ids
}

// SortedByReliability returns a copy ordered by reliability descending,
// ties broken by ID ascending.
func (s NodeSet) SortedByReliability() NodeSet {
	out := make(NodeSet, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reliability != out[j].Reliability {
			return out[i].Reliability > out[j].Reliability
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Scheme is a K-of-N redundancy shape. K == N is plain striping with no
// tolerance for loss; K < N tolerates N-K lost fragments.
type Scheme struct {
	N uint32 `json:"n" yaml:"n"`
	K uint32 `json:"k" yaml:"k"`
}

// Validate enforces 1 <= k <= n
func (s Scheme) Validate() error {
	if s.N < 1 || s.K < 1 || s.K > s.N {
		return fmt.Errorf("%w: n=%d k=%d", ErrInvalidScheme, s.N, s.K)
	}
	return nil
}

// Tolerates returns how many fragments may be lost
func (s Scheme) Tolerates() uint32 {
	return s.N - s.K
}

// FragmentSize returns ceil(fileSize / k)
func (s Scheme) FragmentSize(fileSize uint64) uint64 {
	if s.K == 0 {
		return 0
	}
	k := uint64(s.K)
	return fileSize/k + boolToUint64(fileSize%k != 0)
}

// StoredBytes returns the total bytes written across all n fragments,
// saturating at math.MaxUint64
func (s Scheme) StoredBytes(fileSize uint64) uint64 {
	f := s.FragmentSize(fileSize)
	if f != 0 && uint64(s.N) > math.MaxUint64/f {
		return math.MaxUint64
	}
	return uint64(s.N) * f
}

// Efficiency is k/n, the share of stored bytes that is payload
func (s Scheme) Efficiency() float64 {
	if s.N == 0 {
		return 0
	}
	return float64(s.K) / float64(s.N)
}

func (s Scheme) String() string {
	return fmt.Sprintf("%d-of-%d", s.K, s.N)
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ReservationToken identifies an outstanding capacity reservation
type ReservationToken string

// Placement is the output of a scheduling decision. It holds no references
// back into the tracker or node set.
type Placement struct {
	ID           string   `json:"id"`
	FileID       string   `json:"file_id"`
	FileSize     uint64   `json:"file_size"`
	Scheme       Scheme   `json:"scheme"`
	Nodes        []NodeID `json:"nodes"`
	FragmentSize uint64   `json:"fragment_size"`

	// Reliability is P(at least k of the chosen nodes survive)
	Reliability float64 `json:"reliability"`
	Threshold   float64 `json:"threshold"`

	Strategy          string           `json:"strategy"`
	PredictedDuration time.Duration    `json:"predicted_duration,omitempty"`
	Reservation       ReservationToken `json:"reservation"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Validate checks the structural invariants of a placement
func (p *Placement) Validate() error {
	if err := p.Scheme.Validate(); err != nil {
		return err
	}
	if uint32(len(p.Nodes)) != p.Scheme.N {
		return fmt.Errorf("placement has %d nodes for n=%d", len(p.Nodes), p.Scheme.N)
	}
	seen := make(map[NodeID]struct{}, len(p.Nodes))
	for _, id := range p.Nodes {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w in placement: %s", ErrDuplicateNode, id)
		}
		seen[id] = struct{}{}
	}
	if want := p.Scheme.FragmentSize(p.FileSize); p.FragmentSize != want {
		return fmt.Errorf("fragment size %d, want %d", p.FragmentSize, want)
	}
	return nil
}
