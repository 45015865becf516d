package grid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid/types"
)

// DefaultBoundary is the fixed temperature of the global boundary.
const DefaultBoundary = 1.0

// Layout describes the column-strip decomposition of a grid.
type Layout struct {
	Rows    int
	Cols    int
	Workers int
}

// NewLayout validates the decomposition of a rows x cols grid over workers.
//
// Parameters:
//   - rows: Global row count (at least 3, so an interior exists)
//   - cols: Global column count
//   - workers: Number of strips
//
// Returns:
//   - Layout: Validated layout
//   - error: ErrInvalidConfig, wrapping ErrUnevenPartition when cols % workers != 0
func NewLayout(rows, cols, workers int) (Layout, error) {
	switch {
	case rows < 3:
		return Layout{}, fmt.Errorf("%w: rows must be >= 3, got %d", types.ErrInvalidConfig, rows)
	case workers < 1:
		return Layout{}, fmt.Errorf("%w: workers must be >= 1, got %d", types.ErrInvalidConfig, workers)
	case cols < workers:
		return Layout{}, fmt.Errorf("%w: cols (%d) must be >= workers (%d)", types.ErrInvalidConfig, cols, workers)
	case cols%workers != 0:
		return Layout{}, fmt.Errorf("%w: %w: %d columns over %d workers",
			types.ErrInvalidConfig, types.ErrUnevenPartition, cols, workers)
	}

	return Layout{Rows: rows, Cols: cols, Workers: workers}, nil
}

// LocalCols returns the number of columns owned by each worker.
func (l Layout) LocalCols() int {
	return l.Cols / l.Workers
}

// ColumnOffset returns the global index of rank's first column.
func (l Layout) ColumnOffset(rank int) int {
	return rank * l.LocalCols()
}

// NewGlobal builds the initial rows x cols grid.
//
// Cells on the global top row, bottom row, leftmost column or rightmost
// column hold boundary; all other cells hold 0.
func NewGlobal(rows, cols int, boundary float64) *mat.Dense {
	g := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			if i == 0 || i == rows-1 || j == 0 || j == cols-1 {
				g.Set(i, j, boundary)
			}
		}
	}

	return g
}

// Strip builds rank's initial strip directly, without the global grid.
//
// The result equals Decompose(NewGlobal(...))[rank].
func Strip(l Layout, rank int, boundary float64) (*mat.Dense, error) {
	if rank < 0 || rank >= l.Workers {
		return nil, fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, rank, l.Workers)
	}

	local := l.LocalCols()
	offset := l.ColumnOffset(rank)
	s := mat.NewDense(l.Rows, local, nil)
	for i := range l.Rows {
		for j := range local {
			gj := offset + j
			if i == 0 || i == l.Rows-1 || gj == 0 || gj == l.Cols-1 {
				s.Set(i, j, boundary)
			}
		}
	}

	return s, nil
}

// Decompose cuts global into l.Workers column strips in rank order.
//
// Strips are copies; mutating one never affects global or its siblings.
//
// Returns:
//   - []*mat.Dense: One rows x LocalCols strip per rank
//   - error: ErrInvalidConfig when global does not match the layout
func Decompose(global mat.Matrix, l Layout) ([]*mat.Dense, error) {
	r, c := global.Dims()
	if r != l.Rows || c != l.Cols {
		return nil, fmt.Errorf("%w: grid is %dx%d, layout expects %dx%d",
			types.ErrInvalidConfig, r, c, l.Rows, l.Cols)
	}

	local := l.LocalCols()
	strips := make([]*mat.Dense, l.Workers)
	for rank := range l.Workers {
		s := mat.NewDense(l.Rows, local, nil)
		offset := l.ColumnOffset(rank)
		for i := range l.Rows {
			for j := range local {
				s.Set(i, j, global.At(i, offset+j))
			}
		}
		strips[rank] = s
	}

	return strips, nil
}

// Assemble concatenates strips left to right into a new global grid.
//
// Returns:
//   - *mat.Dense: The reassembled grid
//   - error: ErrTopologyMismatch if strips disagree on row count or a strip is nil
func Assemble(strips []*mat.Dense) (*mat.Dense, error) {
	if len(strips) == 0 {
		return nil, fmt.Errorf("%w: no strips to assemble", types.ErrTopologyMismatch)
	}

	rows := -1
	cols := 0
	for rank, s := range strips {
		if s == nil {
			return nil, fmt.Errorf("%w: strip of rank %d is missing", types.ErrTopologyMismatch, rank)
		}
		r, c := s.Dims()
		if rows >= 0 && r != rows {
			return nil, fmt.Errorf("%w: strip of rank %d has %d rows, want %d",
				types.ErrTopologyMismatch, rank, r, rows)
		}
		rows = r
		cols += c
	}

	g := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, s := range strips {
		_, c := s.Dims()
		g.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(s)
		offset += c
	}

	return g, nil
}

// Column returns a copy of column j of m.
func Column(m mat.Matrix, j int) []float64 {
	return mat.Col(nil, j, m)
}
