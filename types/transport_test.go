package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestVectorMessage_Copies(t *testing.T) {
	values := []float64{1, 2, 3}
	msg := VectorMessage(TagBorder, 4, values)
	values[0] = 99

	got, err := msg.Vector()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, got)
	require.Equal(t, 4, msg.Iteration)
}

func TestScalarMessage(t *testing.T) {
	msg := ScalarMessage(TagDiagnostic, 2, 0.25)

	v, err := msg.Scalar()
	require.NoError(t, err)
	require.InDelta(t, 0.25, v, 0)

	_, err = msg.Vector()
	require.ErrorIs(t, err, ErrTopologyMismatch)
}

func TestMatrixMessage_RoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	msg := MatrixMessage(TagScatter, 0, m)
	require.Equal(t, 2, msg.Rows)
	require.Equal(t, 3, msg.Cols)

	back, err := msg.Matrix()
	require.NoError(t, err)
	require.True(t, mat.Equal(m, back))

	msg.Data = msg.Data[:5]
	_, err = msg.Matrix()
	require.ErrorIs(t, err, ErrTopologyMismatch)
}

func TestMessage_Expect(t *testing.T) {
	msg := ScalarMessage(TagDiagnostic, 7, 1)
	msg.Source = 2

	require.NoError(t, msg.Expect(2, TagDiagnostic, 7))
	require.ErrorIs(t, msg.Expect(1, TagDiagnostic, 7), ErrTopologyMismatch)
	require.ErrorIs(t, msg.Expect(2, TagBorder, 7), ErrTopologyMismatch)
	require.ErrorIs(t, msg.Expect(2, TagDiagnostic, 8), ErrTopologyMismatch)
}

func TestMessage_Clone(t *testing.T) {
	msg := VectorMessage(TagBorder, 0, []float64{1, 2})
	clone := msg.Clone()
	clone.Data[0] = 5

	require.InDelta(t, 1.0, msg.Data[0], 0)
}

func TestTagString(t *testing.T) {
	require.Equal(t, "border", TagBorder.String())
	require.Equal(t, "tag-9", Tag(9).String())
}
