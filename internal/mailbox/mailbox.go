// Package mailbox provides unbounded FIFO queues of messages keyed by
// (source, tag), used by the transports to demultiplex inbound traffic.
package mailbox

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/heatgrid/types"
)

// Key identifies an inbound channel.
type Key struct {
	Source int
	Tag    types.Tag
}

// Mailbox is an unbounded FIFO of messages.
//
// Put never blocks, so a transport's delivery path cannot stall behind a
// slow reader of an unrelated channel.
type Mailbox struct {
	mu      sync.Mutex
	queue   []types.Message
	notify  chan struct{}
	closed  bool
	closeCh chan struct{}
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
}

// Put appends msg. Messages put after Close are dropped.
func (m *Mailbox) Put(msg types.Message) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns the oldest message, blocking until one is
// available, the context is done, or the mailbox is closed.
func (m *Mailbox) Take(ctx context.Context) (types.Message, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = types.Message{}
			m.queue = m.queue[1:]
			m.mu.Unlock()

			return msg, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return types.Message{}, types.ErrClosed
		}

		select {
		case <-ctx.Done():
			return types.Message{}, ctx.Err()
		case <-m.closeCh:
		case <-m.notify:
		}
	}
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}

// Close wakes all waiters; queued messages remain readable.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.closeCh)
}

// Registry maps keys to mailboxes, creating them on first use.
//
// Once closed, every mailbox it returns is closed, including ones created
// after Close.
type Registry struct {
	boxes  *xsync.Map[Key, *Mailbox]
	closed atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{boxes: xsync.NewMap[Key, *Mailbox]()}
}

// Get returns the mailbox for key, creating it if needed.
func (r *Registry) Get(key Key) *Mailbox {
	box, _ := r.boxes.LoadOrCompute(key, func() (*Mailbox, bool) {
		return New(), false
	})
	if r.closed.Load() {
		box.Close()
	}

	return box
}

// Close closes every mailbox in the registry.
func (r *Registry) Close() {
	r.closed.Store(true)
	r.boxes.Range(func(_ Key, box *Mailbox) bool {
		box.Close()
		return true
	})
}
