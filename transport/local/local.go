// Package local implements an in-process transport for colocated workers.
//
// A Network owns one inbox registry per rank; Endpoint(rank) returns the
// types.Transport used by that rank's worker. Messages are deep-copied on
// send, so workers never share memory.
package local

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/heatgrid/internal/mailbox"
	"github.com/arloliu/heatgrid/types"
)

// Network connects size in-process endpoints.
type Network struct {
	inboxes   []*mailbox.Registry
	endpoints []*Endpoint
}

// NewNetwork creates a network with size endpoints.
//
// Parameters:
//   - size: Number of ranks (must be >= 1)
//
// Returns:
//   - *Network: Network with ranks 0..size-1
//   - error: ErrInvalidRank if size < 1
func NewNetwork(size int) (*Network, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: network size %d", types.ErrInvalidRank, size)
	}

	n := &Network{
		inboxes:   make([]*mailbox.Registry, size),
		endpoints: make([]*Endpoint, size),
	}
	for rank := range size {
		n.inboxes[rank] = mailbox.NewRegistry()
		n.endpoints[rank] = &Endpoint{net: n, rank: rank}
	}

	return n, nil
}

// Size returns the number of endpoints.
func (n *Network) Size() int {
	return len(n.endpoints)
}

// Endpoint returns the transport for rank.
func (n *Network) Endpoint(rank int) *Endpoint {
	return n.endpoints[rank]
}

// Transports returns every endpoint as a types.Transport, in rank order.
func (n *Network) Transports() []types.Transport {
	out := make([]types.Transport, len(n.endpoints))
	for i, e := range n.endpoints {
		out[i] = e
	}

	return out
}

// Close closes every endpoint.
func (n *Network) Close() error {
	for _, e := range n.endpoints {
		_ = e.Close()
	}

	return nil
}

// Endpoint is one rank's view of a Network.
type Endpoint struct {
	net    *Network
	rank   int
	closed atomic.Bool
}

var _ types.Transport = (*Endpoint)(nil)

// Rank returns the local rank.
func (e *Endpoint) Rank() int {
	return e.rank
}

// Size returns the number of ranks in the network.
func (e *Endpoint) Size() int {
	return e.net.Size()
}

// Send copies msg into dst's inbox.
func (e *Endpoint) Send(ctx context.Context, dst int, msg types.Message) error {
	if e.closed.Load() {
		return types.ErrClosed
	}
	if dst < 0 || dst >= e.net.Size() {
		return fmt.Errorf("%w: send to rank %d: %w", types.ErrTransport, dst, types.ErrInvalidRank)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: send to rank %d: %w", types.ErrTransport, dst, err)
	}

	out := msg.Clone()
	out.Source = e.rank
	e.net.inboxes[dst].Get(mailbox.Key{Source: e.rank, Tag: msg.Tag}).Put(out)

	return nil
}

// Recv blocks until a message from src on tag arrives.
func (e *Endpoint) Recv(ctx context.Context, src int, tag types.Tag) (types.Message, error) {
	if e.closed.Load() {
		return types.Message{}, types.ErrClosed
	}
	if src < 0 || src >= e.net.Size() {
		return types.Message{}, fmt.Errorf("%w: recv from rank %d: %w", types.ErrTransport, src, types.ErrInvalidRank)
	}

	msg, err := e.net.inboxes[e.rank].Get(mailbox.Key{Source: src, Tag: tag}).Take(ctx)
	if err != nil {
		return types.Message{}, fmt.Errorf("%w: recv %s from rank %d: %w", types.ErrTransport, tag, src, err)
	}

	return msg, nil
}

// Close fails pending and future receives on this endpoint.
func (e *Endpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.net.inboxes[e.rank].Close()

	return nil
}
