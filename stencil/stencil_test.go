package stencil

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid/types"
)

func topology(t *testing.T, rank, size int) types.Topology {
	t.Helper()

	topo, err := types.NewTopology(rank, size)
	require.NoError(t, err)

	return topo
}

func randomStrip(rng *rand.Rand, rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, rng.Float64()*10)
		}
	}

	return m
}

func randomColumn(rng *rand.Rand, rows int) []float64 {
	col := make([]float64, rows)
	for i := range col {
		col[i] = rng.Float64() * 10
	}

	return col
}

func TestUpdate_JacobiProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const rows, cols = 6, 5

	for _, tc := range []struct {
		name string
		rank int
		size int
	}{
		{"single", 0, 1},
		{"left edge", 0, 3},
		{"interior", 1, 3},
		{"right edge", 2, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			topo := topology(t, tc.rank, tc.size)
			cur := randomStrip(rng, rows, cols)
			before := mat.DenseCopyOf(cur)

			var ghosts Ghosts
			if topo.HasLeftNeighbor {
				ghosts.Left = randomColumn(rng, rows)
			}
			if topo.HasRightNeighbor {
				ghosts.Right = randomColumn(rng, rows)
			}

			next, maxDiff, err := Update(cur, topo, ghosts, 1.0)
			require.NoError(t, err)
			require.True(t, mat.Equal(before, cur), "input strip must not be modified")

			at := func(i, j int) float64 {
				switch {
				case j < 0:
					return ghosts.Left[i]
				case j >= cols:
					return ghosts.Right[i]
				}

				return before.At(i, j)
			}

			var wantMax float64
			for i := range rows {
				for j := range cols {
					if IsBoundary(i, j, rows, cols, topo) {
						require.InDelta(t, 1.0, next.At(i, j), 0, "boundary cell (%d,%d)", i, j)
						continue
					}
					want := (at(i-1, j) + at(i+1, j) + at(i, j-1) + at(i, j+1)) / 4
					require.InDelta(t, want, next.At(i, j), 1e-12, "cell (%d,%d)", i, j)
					wantMax = math.Max(wantMax, math.Abs(want-before.At(i, j)))
				}
			}
			require.InDelta(t, wantMax, maxDiff, 1e-12)
		})
	}
}

func TestUpdate_BoundaryCellsExcludedFromDiff(t *testing.T) {
	topo := topology(t, 0, 1)
	cur := mat.NewDense(3, 3, []float64{
		100, 100, 100,
		100, 1, 100,
		100, 100, 100,
	})

	next, maxDiff, err := Update(cur, topo, Ghosts{}, 1.0)
	require.NoError(t, err)

	// Only the centre is computed: (100*4)/4 - 1 = 99.
	require.InDelta(t, 100.0, next.At(1, 1), 0)
	require.InDelta(t, 99.0, maxDiff, 0)
	for _, c := range [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 2}, {2, 2}} {
		require.InDelta(t, 1.0, next.At(c[0], c[1]), 0)
	}
}

func TestUpdate_SingleWorkerEdgesAreBoundary(t *testing.T) {
	topo := topology(t, 0, 1)
	cur := mat.NewDense(4, 4, nil)

	next, _, err := Update(cur, topo, Ghosts{}, 1.0)
	require.NoError(t, err)

	for i := range 4 {
		require.InDelta(t, 1.0, next.At(i, 0), 0)
		require.InDelta(t, 1.0, next.At(i, 3), 0)
	}
	require.InDelta(t, 0.0, next.At(1, 1), 0)
}

func TestUpdate_InteriorSingleColumn(t *testing.T) {
	topo := topology(t, 1, 3)
	cur := mat.NewDense(3, 1, []float64{1, 0, 1})

	next, maxDiff, err := Update(cur, topo, Ghosts{
		Left:  []float64{1, 2, 1},
		Right: []float64{1, 6, 1},
	}, 1.0)
	require.NoError(t, err)
	require.InDelta(t, (1.0+1.0+2.0+6.0)/4, next.At(1, 0), 0)
	require.InDelta(t, 2.5, maxDiff, 0)
}

func TestUpdate_GhostErrors(t *testing.T) {
	cur := mat.NewDense(4, 2, nil)

	t.Run("missing right ghost", func(t *testing.T) {
		_, _, err := Update(cur, topology(t, 0, 2), Ghosts{}, 1.0)
		require.ErrorIs(t, err, types.ErrTopologyMismatch)
	})

	t.Run("missing left ghost", func(t *testing.T) {
		_, _, err := Update(cur, topology(t, 1, 2), Ghosts{}, 1.0)
		require.ErrorIs(t, err, types.ErrTopologyMismatch)
	})

	t.Run("wrong ghost length", func(t *testing.T) {
		_, _, err := Update(cur, topology(t, 1, 3), Ghosts{
			Left:  make([]float64, 4),
			Right: make([]float64, 3),
		}, 1.0)
		require.ErrorIs(t, err, types.ErrTopologyMismatch)
	})

	t.Run("unneeded ghosts are ignored", func(t *testing.T) {
		_, _, err := Update(cur, topology(t, 0, 1), Ghosts{Left: []float64{1}}, 1.0)
		require.NoError(t, err)
	})
}

func TestUpdate_MaxDiffZeroAtFixedPoint(t *testing.T) {
	topo := topology(t, 0, 1)
	cur := mat.NewDense(4, 4, nil)
	for i := range 4 {
		for j := range 4 {
			cur.Set(i, j, 1)
		}
	}

	_, maxDiff, err := Update(cur, topo, Ghosts{}, 1.0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, maxDiff, 0)
}
