/*
Package storage persists the drex node inventory and committed placements
in a BoltDB file.

The store is the inventory collaborator of a scheduling session: NodeSet
returns a validated snapshot that seeds a capacity tracker, and
UpdateCapacities writes the tracker's ledger back once a session ends.
Committed placements are recorded so operators can look up where a file's
fragments went.

# Layout

One database file, drex.db, inside the data directory:

	nodes/       key: node ID       value: JSON types.Node
	placements/  key: placement ID  value: JSON types.Placement

Keys are iterated in byte order, so ListNodes returns nodes sorted by ID.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	nodes, err := store.NodeSet()

Missing records wrap ErrNotFound.
*/
package storage
