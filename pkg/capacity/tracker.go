// Package capacity keeps the in-memory free-space ledger for a scheduling
// session.
//
// Strategies reserve space speculatively with TryReserve and either keep
// the reservation or Release it before trying another candidate. The
// check-and-decrement of TryReserve runs under a single mutex, so two
// sessions sharing a Tracker never both consume the same bytes.
package capacity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cuemby/drex/pkg/types"
	"github.com/google/uuid"
)

// ErrUnknownReservation is returned when releasing a token this tracker
// never issued
var ErrUnknownReservation = errors.New("unknown reservation")

// InsufficientError reports the node that could not satisfy a request.
// When several nodes fall short, Node is the lowest NodeID among them.
type InsufficientError struct {
	Node      types.NodeID
	Requested uint64
	Remaining uint64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient capacity on node %s: requested %d, remaining %d",
		e.Node, e.Requested, e.Remaining)
}

// Allocation asks for Bytes on Node
type Allocation struct {
	Node  types.NodeID
	Bytes uint64
}

type reservation struct {
	allocations []Allocation
	released    bool
}

// Tracker is the session capacity ledger. The zero value is not usable;
// create one with NewTracker.
type Tracker struct {
	mu           sync.Mutex
	free         map[types.NodeID]uint64
	reservations map[types.ReservationToken]*reservation
	outstanding  uint64
}

// NewTracker seeds the ledger from the free capacity of each node
func NewTracker(nodes types.NodeSet) *Tracker {
	t := &Tracker{
		free:         make(map[types.NodeID]uint64, len(nodes)),
		reservations: make(map[types.ReservationToken]*reservation),
	}
	for _, n := range nodes {
		t.free[n.ID] = n.FreeCapacity
	}
	return t
}

// Remaining returns the current free capacity of a node
func (t *Tracker) Remaining(id types.NodeID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	free, ok := t.free[id]
	return free, ok
}

// TryReserve atomically reserves every allocation or none of them.
// Allocations naming the same node are summed. An unknown node is treated
// as having no capacity.
func (t *Tracker) TryReserve(allocations []Allocation) (types.ReservationToken, error) {
	need := make(map[types.NodeID]uint64, len(allocations))
	overflow := make(map[types.NodeID]bool)
	for _, a := range allocations {
		if need[a.Node] > math.MaxUint64-a.Bytes {
			// a summed request past MaxUint64 can never fit
			need[a.Node] = math.MaxUint64
			overflow[a.Node] = true
			continue
		}
		need[a.Node] += a.Bytes
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var short []*InsufficientError
	for id, bytes := range need {
		free, ok := t.free[id]
		if !ok || overflow[id] || free < bytes {
			short = append(short, &InsufficientError{Node: id, Requested: bytes, Remaining: free})
		}
	}
	if len(short) > 0 {
		sort.Slice(short, func(i, j int) bool { return short[i].Node < short[j].Node })
		return "", short[0]
	}

	var total uint64
	for id, bytes := range need {
		t.free[id] -= bytes
		total += bytes
	}
	t.outstanding += total

	token := types.ReservationToken(uuid.New().String())
	kept := make([]Allocation, len(allocations))
	copy(kept, allocations)
	t.reservations[token] = &reservation{allocations: kept}

	return token, nil
}

// Release returns a reservation's bytes to the ledger. Releasing an
// already released token is a no-op.
func (t *Tracker) Release(token types.ReservationToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.reservations[token]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReservation, token)
	}
	if r.released {
		return nil
	}

	for _, a := range r.allocations {
		t.free[a.Node] += a.Bytes
		t.outstanding -= a.Bytes
	}
	r.released = true
	return nil
}

// Outstanding returns the bytes held by unreleased reservations
func (t *Tracker) Outstanding() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

// Snapshot copies the current free capacity of every node
func (t *Tracker) Snapshot() map[types.NodeID]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[types.NodeID]uint64, len(t.free))
	for id, free := range t.free {
		out[id] = free
	}
	return out
}
