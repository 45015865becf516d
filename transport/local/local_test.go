package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/heatgrid/types"
)

func TestNetwork_SendRecv(t *testing.T) {
	net, err := NewNetwork(3)
	require.NoError(t, err)
	defer net.Close()

	a, b := net.Endpoint(0), net.Endpoint(2)
	require.Equal(t, 0, a.Rank())
	require.Equal(t, 3, b.Size())

	values := []float64{1, 2, 3}
	require.NoError(t, a.Send(t.Context(), 2, types.VectorMessage(types.TagBorder, 5, values)))
	values[0] = 42

	msg, err := b.Recv(t.Context(), 0, types.TagBorder)
	require.NoError(t, err)
	require.NoError(t, msg.Expect(0, types.TagBorder, 5))
	require.Equal(t, []float64{1, 2, 3}, msg.Data)
}

func TestNetwork_PreservesOrderPerChannel(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	for i := range 10 {
		require.NoError(t, net.Endpoint(1).Send(t.Context(), 0, types.ScalarMessage(types.TagDiagnostic, i, float64(i))))
	}
	for i := range 10 {
		msg, err := net.Endpoint(0).Recv(t.Context(), 1, types.TagDiagnostic)
		require.NoError(t, err)
		require.Equal(t, i, msg.Iteration)
	}
}

func TestNetwork_TagsAreIndependent(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	require.NoError(t, net.Endpoint(1).Send(t.Context(), 0, types.ScalarMessage(types.TagDiagnostic, 0, 1)))
	require.NoError(t, net.Endpoint(1).Send(t.Context(), 0, types.VectorMessage(types.TagBorder, 0, []float64{2})))

	msg, err := net.Endpoint(0).Recv(t.Context(), 1, types.TagBorder)
	require.NoError(t, err)
	require.Equal(t, types.KindVector, msg.Kind)
}

func TestEndpoint_RecvHonoursContext(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = net.Endpoint(0).Recv(ctx, 1, types.TagBorder)
	require.ErrorIs(t, err, types.ErrTransport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEndpoint_Close(t *testing.T) {
	net, err := NewNetwork(2)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := net.Endpoint(0).Recv(context.Background(), 1, types.TagBorder)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, net.Endpoint(0).Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, types.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock on Close")
	}

	require.ErrorIs(t, net.Endpoint(0).Send(t.Context(), 1, types.ScalarMessage(types.TagDiagnostic, 0, 0)), types.ErrClosed)
}

func TestNetwork_InvalidRanks(t *testing.T) {
	_, err := NewNetwork(0)
	require.ErrorIs(t, err, types.ErrInvalidRank)

	net, err := NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	err = net.Endpoint(0).Send(t.Context(), 2, types.ScalarMessage(types.TagDiagnostic, 0, 0))
	require.ErrorIs(t, err, types.ErrInvalidRank)

	_, err = net.Endpoint(0).Recv(t.Context(), -1, types.TagDiagnostic)
	require.ErrorIs(t, err, types.ErrInvalidRank)
}
