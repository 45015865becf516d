// Package stencil implements the Jacobi 4-point update of a single strip.
package stencil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid/types"
)

// Ghosts holds the border columns received from neighbours for one iteration.
//
// Left is nil when the strip has no left neighbour, Right likewise.
type Ghosts struct {
	Left  []float64
	Right []float64
}

// Update computes the next iteration of cur.
//
// Every cell is evaluated row-major against the pre-update matrix:
//   - global top or bottom row: boundary
//   - first column of the leftmost strip, last column of the rightmost strip: boundary
//   - otherwise the mean of the four neighbours, with ghost values standing in
//     for the missing lateral neighbours at the strip edges
//
// Boundary cells are set, not computed, and never contribute to the max-diff.
// cur is never written; the result is a new matrix of the same shape.
//
// Parameters:
//   - cur: Current strip (rows x localCols)
//   - topo: Topology of the owning worker
//   - ghosts: Neighbour border columns (must match topo)
//   - boundary: Fixed boundary value
//
// Returns:
//   - *mat.Dense: New strip
//   - float64: Max absolute change over computed cells (0 if none)
//   - error: ErrTopologyMismatch if a required ghost is missing or has the wrong length
func Update(cur mat.Matrix, topo types.Topology, ghosts Ghosts, boundary float64) (*mat.Dense, float64, error) {
	rows, cols := cur.Dims()
	if err := checkGhosts(rows, topo, ghosts); err != nil {
		return nil, 0, err
	}

	next := mat.NewDense(rows, cols, nil)
	var maxDiff float64

	for i := range rows {
		for j := range cols {
			if isBoundary(i, j, rows, cols, topo) {
				next.Set(i, j, boundary)
				continue
			}

			left := lateral(cur, i, j-1, cols, ghosts.Left)
			right := lateral(cur, i, j+1, cols, ghosts.Right)
			v := (cur.At(i-1, j) + cur.At(i+1, j) + left + right) / 4
			next.Set(i, j, v)

			maxDiff = math.Max(maxDiff, math.Abs(v-cur.At(i, j)))
		}
	}

	return next, maxDiff, nil
}

// IsBoundary reports whether cell (i, j) of a rows x cols strip is a
// boundary-set cell for the given topology.
func IsBoundary(i, j, rows, cols int, topo types.Topology) bool {
	return isBoundary(i, j, rows, cols, topo)
}

func isBoundary(i, j, rows, cols int, topo types.Topology) bool {
	switch {
	case i == 0 || i == rows-1:
		return true
	case j == 0 && topo.IsLeftmost():
		return true
	case j == cols-1 && topo.IsRightmost():
		return true
	}

	return false
}

// lateral reads column j of row i, falling back to the ghost column when j
// lies outside the strip.
func lateral(cur mat.Matrix, i, j, cols int, ghost []float64) float64 {
	if j < 0 || j >= cols {
		return ghost[i]
	}

	return cur.At(i, j)
}

func checkGhosts(rows int, topo types.Topology, g Ghosts) error {
	if err := checkGhost("left", rows, topo.HasLeftNeighbor, g.Left); err != nil {
		return err
	}

	return checkGhost("right", rows, topo.HasRightNeighbor, g.Right)
}

func checkGhost(side string, rows int, required bool, ghost []float64) error {
	if !required {
		return nil
	}
	if ghost == nil {
		return fmt.Errorf("%w: missing %s ghost column", types.ErrTopologyMismatch, side)
	}
	if len(ghost) != rows {
		return fmt.Errorf("%w: %s ghost column has %d values, want %d",
			types.ErrTopologyMismatch, side, len(ghost), rows)
	}

	return nil
}
