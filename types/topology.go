package types

import "fmt"

// NoNeighbor marks an absent neighbour rank.
const NoNeighbor = -1

// Topology describes a worker's place in the strip layout.
//
// It is derived once from rank and size; neighbour identities are never
// stored elsewhere or negotiated.
type Topology struct {
	Rank int
	Size int

	HasLeftNeighbor  bool
	HasRightNeighbor bool

	// Left and Right are neighbour ranks, NoNeighbor when absent.
	Left  int
	Right int
}

// NewTopology derives the topology descriptor for rank within size workers.
//
// Parameters:
//   - rank: Worker rank, 0 <= rank < size
//   - size: Total number of workers
//
// Returns:
//   - Topology: Descriptor with neighbour flags
//   - error: ErrInvalidRank if rank or size is out of range
func NewTopology(rank, size int) (Topology, error) {
	if size < 1 || rank < 0 || rank >= size {
		return Topology{}, fmt.Errorf("%w: rank %d of %d", ErrInvalidRank, rank, size)
	}

	t := Topology{
		Rank:  rank,
		Size:  size,
		Left:  NoNeighbor,
		Right: NoNeighbor,
	}
	if rank > 0 {
		t.HasLeftNeighbor = true
		t.Left = rank - 1
	}
	if rank < size-1 {
		t.HasRightNeighbor = true
		t.Right = rank + 1
	}

	return t, nil
}

// IsCoordinator reports whether this worker is rank 0.
func (t Topology) IsCoordinator() bool {
	return t.Rank == 0
}

// IsLeftmost reports whether the strip touches the global left edge.
func (t Topology) IsLeftmost() bool {
	return !t.HasLeftNeighbor
}

// IsRightmost reports whether the strip touches the global right edge.
func (t Topology) IsRightmost() bool {
	return !t.HasRightNeighbor
}

// String returns a compact description such as "rank 1/4 (interior)".
func (t Topology) String() string {
	kind := "interior"
	switch {
	case t.IsLeftmost() && t.IsRightmost():
		kind = "single"
	case t.IsLeftmost():
		kind = "left-edge"
	case t.IsRightmost():
		kind = "right-edge"
	}

	return fmt.Sprintf("rank %d/%d (%s)", t.Rank, t.Size, kind)
}
