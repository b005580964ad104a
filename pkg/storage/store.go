package storage

import (
	"errors"

	"github.com/cuemby/drex/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store persists the node inventory and committed placements. It is the
// inventory collaborator that hands a NodeSet snapshot to each session.
type Store interface {
	// Nodes
	CreateNode(node *types.Node) error
	GetNode(id types.NodeID) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id types.NodeID) error
	UpdateCapacities(free map[types.NodeID]uint64) error
	NodeSet() (types.NodeSet, error)

	// Placements
	CreatePlacement(placement *types.Placement) error
	GetPlacement(id string) (*types.Placement, error)
	ListPlacements() ([]*types.Placement, error)
	ListPlacementsByFile(fileID string) ([]*types.Placement, error)

	// Utility
	Close() error
}
