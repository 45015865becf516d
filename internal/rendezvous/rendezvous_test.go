package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/heatgrid/transport/local"
	"github.com/arloliu/heatgrid/types"
)

func topology(t *testing.T, rank, size int) types.Topology {
	t.Helper()
	topo, err := types.NewTopology(rank, size)
	require.NoError(t, err)

	return topo
}

type recordingReporter struct {
	mu    sync.Mutex
	diags []types.Diagnostic
}

func (r *recordingReporter) Report(_ context.Context, d types.Diagnostic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)

	return nil
}

func TestNew_RoleChecks(t *testing.T) {
	net, err := local.NewNetwork(2)
	require.NoError(t, err)

	_, err = NewCoordinator(net.Endpoint(1), topology(t, 1, 2))
	require.ErrorIs(t, err, types.ErrNotCoordinator)

	_, err = NewParticipant(net.Endpoint(0), topology(t, 0, 2))
	require.ErrorIs(t, err, types.ErrTopologyMismatch)

	_, err = NewCoordinator(nil, topology(t, 0, 2))
	require.ErrorIs(t, err, types.ErrTransportRequired)
}

func TestGather_SingleWorker(t *testing.T) {
	net, err := local.NewNetwork(1)
	require.NoError(t, err)

	c, err := NewCoordinator(net.Endpoint(0), topology(t, 0, 1))
	require.NoError(t, err)

	diag, err := c.Gather(t.Context(), 3, 0.5)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5}, diag.MaxDiffs)
}

// run drives size ranks for iterations rounds and returns what the reporter saw.
func run(t *testing.T, size, iterations int, strict bool) *recordingReporter {
	t.Helper()

	net, err := local.NewNetwork(size)
	require.NoError(t, err)
	defer net.Close()

	rep := &recordingReporter{}
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for rank := range size {
		topo := topology(t, rank, size)
		if topo.IsCoordinator() {
			c, err := NewCoordinator(net.Endpoint(rank), topo, WithStrictRounds(strict), WithReporter(rep))
			require.NoError(t, err)
			g.Go(func() error {
				for it := 1; it <= iterations; it++ {
					diag, err := c.Gather(gctx, it, float64(it))
					if err != nil {
						return err
					}
					if len(diag.MaxDiffs) != size {
						return fmt.Errorf("iteration %d: %d max-diffs", it, len(diag.MaxDiffs))
					}
				}
				return nil
			})

			continue
		}

		p, err := NewParticipant(net.Endpoint(rank), topo, WithStrictRounds(strict))
		require.NoError(t, err)
		g.Go(func() error {
			for it := 1; it <= iterations; it++ {
				if err := p.Report(gctx, it, float64(it*10+rank)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	return rep
}

func TestGather_ReportsEveryFifthIteration(t *testing.T) {
	for _, strict := range []bool{true, false} {
		rep := run(t, 4, 12, strict)

		require.Len(t, rep.diags, 2, "strict=%v", strict)
		require.Equal(t, types.Diagnostic{Iteration: 5, MaxDiffs: []float64{5, 51, 52, 53}}, rep.diags[0])
		require.Equal(t, types.Diagnostic{Iteration: 10, MaxDiffs: []float64{10, 101, 102, 103}}, rep.diags[1])
		require.InDelta(t, 103.0, rep.diags[1].Max(), 0)
	}
}

func TestGather_WrongIteration(t *testing.T) {
	net, err := local.NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	c, err := NewCoordinator(net.Endpoint(0), topology(t, 0, 2))
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, net.Endpoint(1).Send(ctx, 0, types.ScalarMessage(types.TagDiagnostic, 2, 0.1)))

	_, err = c.Gather(ctx, 1, 0.2)
	require.ErrorIs(t, err, types.ErrTopologyMismatch)
}

func TestReport_StrictWaitsForRelease(t *testing.T) {
	net, err := local.NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	p, err := NewParticipant(net.Endpoint(1), topology(t, 1, 2))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	err = p.Report(ctx, 1, 0.3)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	msg, err := net.Endpoint(0).Recv(t.Context(), 1, types.TagDiagnostic)
	require.NoError(t, err)
	v, err := msg.Scalar()
	require.NoError(t, err)
	require.InDelta(t, 0.3, v, 0)
}

func TestReport_RunAheadDoesNotWait(t *testing.T) {
	net, err := local.NewNetwork(2)
	require.NoError(t, err)
	defer net.Close()

	p, err := NewParticipant(net.Endpoint(1), topology(t, 1, 2), WithStrictRounds(false))
	require.NoError(t, err)

	require.NoError(t, p.Report(t.Context(), 1, 0.3))
	require.NoError(t, p.Report(t.Context(), 2, 0.2))
}
