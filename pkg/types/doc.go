/*
Package types defines the core data structures shared by every drex package.

The types describe one placement decision: the storage nodes that may hold
fragments, the redundancy scheme chosen for a file and the resulting
placement handed back to the caller.

# Core Types

Inventory:
  - Node: storage node with a survival probability and free capacity
  - NodeID: node identity
  - NodeSet: read-only snapshot of the nodes for one decision

Redundancy:
  - Scheme: K-of-N shape; K fragments out of N suffice to rebuild the file

Output:
  - Placement: chosen scheme, distinct nodes, fragment size and the
    reservation that committed capacity for it
  - ReservationToken: handle returned by the capacity tracker

# Fragment Size

A file of S bytes split under a K-of-N scheme produces N fragments of
ceil(S/K) bytes each:

	scheme := types.Scheme{N: 3, K: 2}
	scheme.FragmentSize(300) // 150
	scheme.StoredBytes(300)  // 450

# Validation

Scheme.Validate enforces 1 <= K <= N and wraps ErrInvalidScheme.
Node reliabilities must lie in (0,1]; a zero-reliability node is rejected
with ErrInvalidReliability rather than silently included. NodeSet.Validate
additionally rejects duplicate IDs with ErrDuplicateNode.
*/
package types
