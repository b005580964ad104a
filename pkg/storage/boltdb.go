package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/drex/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketNodes      = []byte("nodes")
	bucketPlacements = []byte("placements")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "drex.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketNodes, bucketPlacements} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

// Node operations
func (s *BoltStore) CreateNode(node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketNodes, string(node.ID), node)
	})
}

func (s *BoltStore) GetNode(id types.NodeID) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketNodes, string(id), &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ListNodes returns nodes ordered by ID
func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.Node) error {
	node.UpdatedAt = time.Now()
	return s.CreateNode(node) // Same as create (upsert)
}

func (s *BoltStore) DeleteNode(id types.NodeID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", bucketNodes, id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

// UpdateCapacities writes back free capacities in a single transaction.
// Nodes missing from the store are skipped.
func (s *BoltStore) UpdateCapacities(free map[types.NodeID]uint64) error {
	now := time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		for id, bytes := range free {
			var node types.Node
			if err := get(tx, bucketNodes, string(id), &node); err != nil {
				continue
			}
			node.FreeCapacity = bytes
			node.UpdatedAt = now
			if err := put(tx, bucketNodes, string(id), &node); err != nil {
				return err
			}
		}
		return nil
	})
}

// NodeSet returns a validated snapshot of the inventory
func (s *BoltStore) NodeSet() (types.NodeSet, error) {
	nodes, err := s.ListNodes()
	if err != nil {
		return nil, err
	}
	set := make(types.NodeSet, 0, len(nodes))
	for _, n := range nodes {
		set = append(set, *n)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return set, nil
}

// Placement operations
func (s *BoltStore) CreatePlacement(placement *types.Placement) error {
	if placement.ID == "" {
		return fmt.Errorf("placement id is empty")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketPlacements, placement.ID, placement)
	})
}

func (s *BoltStore) GetPlacement(id string) (*types.Placement, error) {
	var placement types.Placement
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketPlacements, id, &placement)
	})
	if err != nil {
		return nil, err
	}
	return &placement, nil
}

func (s *BoltStore) ListPlacements() ([]*types.Placement, error) {
	var placements []*types.Placement
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlacements)
		return b.ForEach(func(k, v []byte) error {
			var placement types.Placement
			if err := json.Unmarshal(v, &placement); err != nil {
				return err
			}
			placements = append(placements, &placement)
			return nil
		})
	})
	return placements, err
}

func (s *BoltStore) ListPlacementsByFile(fileID string) ([]*types.Placement, error) {
	placements, err := s.ListPlacements()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Placement
	for _, placement := range placements {
		if placement.FileID == fileID {
			filtered = append(filtered, placement)
		}
	}
	return filtered, nil
}
