// Package natsbus implements types.Transport on top of NATS core pub/sub.
//
// Every rank subscribes to "<prefix>.<rank>.*.*" and peers publish to
// "<prefix>.<dst>.<src>.<tag>". NATS preserves order per publisher
// connection and subscription, which gives the per-(source, tag) ordering
// the solver relies on. Inbound messages are demultiplexed into unbounded
// mailboxes keyed by (source, tag).
//
// Core NATS drops messages published before a subscription exists, so a
// Bus must be created (it subscribes and flushes) on every rank before any
// rank starts sending.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/internal/mailbox"
	"github.com/arloliu/heatgrid/internal/metrics"
	"github.com/arloliu/heatgrid/types"
)

// DefaultSubjectPrefix is the subject root used when none is configured.
const DefaultSubjectPrefix = "heatgrid"

// Option configures a Bus.
type Option func(*busOptions)

type busOptions struct {
	prefix  string
	logger  types.Logger
	metrics types.MetricsCollector
}

// WithSubjectPrefix sets the subject root shared by all ranks of a run.
func WithSubjectPrefix(prefix string) Option {
	return func(o *busOptions) {
		o.prefix = prefix
	}
}

// WithLogger sets a logger.
func WithLogger(l types.Logger) Option {
	return func(o *busOptions) {
		o.logger = l
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *busOptions) {
		o.metrics = m
	}
}

// Bus is one rank's NATS transport.
type Bus struct {
	nc      *nats.Conn
	prefix  string
	rank    int
	size    int
	logger  types.Logger
	metrics types.MetricsCollector

	inbox  *mailbox.Registry
	sub    *nats.Subscription
	fault  atomic.Pointer[error]
	closed atomic.Bool
}

var _ types.Transport = (*Bus)(nil)

// New creates a Bus for rank and subscribes to its inbound subject.
//
// The subscription is flushed to the server before New returns, so any
// message published after New returns on every rank is delivered.
//
// Parameters:
//   - nc: Connected NATS client (not owned by the Bus)
//   - rank: Local rank
//   - size: Number of ranks
//   - opts: Optional prefix, logger, metrics
//
// Returns:
//   - *Bus: Subscribed transport
//   - error: ErrInvalidRank, or ErrTransport on subscription failure
//
// Example:
//
//	bus, err := natsbus.New(nc, rank, size, natsbus.WithSubjectPrefix("run-42"))
//	if err != nil {
//	    return err
//	}
//	defer bus.Close()
func New(nc *nats.Conn, rank, size int, opts ...Option) (*Bus, error) {
	if nc == nil {
		return nil, types.ErrTransportRequired
	}
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, rank, size)
	}

	options := &busOptions{prefix: DefaultSubjectPrefix}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logger.NewNop()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}

	b := &Bus{
		nc:      nc,
		prefix:  options.prefix,
		rank:    rank,
		size:    size,
		logger:  options.logger,
		metrics: options.metrics,
		inbox:   mailbox.NewRegistry(),
	}

	sub, err := nc.Subscribe(fmt.Sprintf("%s.%d.*.*", b.prefix, rank), b.handle)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe rank %d: %w", types.ErrTransport, rank, err)
	}
	// Border traffic for large strips can queue up while a rank computes.
	if err := sub.SetPendingLimits(-1, -1); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%w: set pending limits: %w", types.ErrTransport, err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%w: flush subscription: %w", types.ErrTransport, err)
	}
	b.sub = sub

	b.logger.Debug("nats bus subscribed", "rank", rank, "size", size, "subject", sub.Subject)

	return b, nil
}

// Rank returns the local rank.
func (b *Bus) Rank() int {
	return b.rank
}

// Size returns the number of ranks.
func (b *Bus) Size() int {
	return b.size
}

// Subject returns the subject a message from src to dst on tag is published on.
func (b *Bus) Subject(dst, src int, tag types.Tag) string {
	return fmt.Sprintf("%s.%d.%d.%d", b.prefix, dst, src, int(tag))
}

// Send publishes msg to dst.
func (b *Bus) Send(ctx context.Context, dst int, msg types.Message) error {
	if b.closed.Load() {
		return types.ErrClosed
	}
	if dst < 0 || dst >= b.size {
		return fmt.Errorf("%w: send to rank %d: %w", types.ErrTransport, dst, types.ErrInvalidRank)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: send to rank %d: %w", types.ErrTransport, dst, err)
	}

	msg.Source = b.rank
	data, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	if err := b.nc.Publish(b.Subject(dst, b.rank, msg.Tag), data); err != nil {
		return fmt.Errorf("%w: publish %s to rank %d: %w", types.ErrTransport, msg.Tag, dst, err)
	}
	b.metrics.RecordMessage("send", msg.Tag)

	return nil
}

// Recv blocks until a message from src on tag arrives.
func (b *Bus) Recv(ctx context.Context, src int, tag types.Tag) (types.Message, error) {
	if err := b.faultErr(); err != nil {
		return types.Message{}, err
	}
	if b.closed.Load() {
		return types.Message{}, types.ErrClosed
	}
	if src < 0 || src >= b.size {
		return types.Message{}, fmt.Errorf("%w: recv from rank %d: %w", types.ErrTransport, src, types.ErrInvalidRank)
	}

	msg, err := b.inbox.Get(mailbox.Key{Source: src, Tag: tag}).Take(ctx)
	if err != nil {
		if ferr := b.faultErr(); ferr != nil {
			return types.Message{}, ferr
		}

		return types.Message{}, fmt.Errorf("%w: recv %s from rank %d: %w", types.ErrTransport, tag, src, err)
	}
	b.metrics.RecordMessage("recv", tag)

	return msg, nil
}

// Close unsubscribes and fails pending receives. The NATS connection is left open.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.inbox.Close()

	if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe rank %d: %w", b.rank, err)
	}

	return nil
}

// handle demultiplexes one inbound NATS message.
func (b *Bus) handle(m *nats.Msg) {
	src, tag, err := b.parseSubject(m.Subject)
	if err != nil {
		b.fail(err)
		return
	}

	msg, err := Decode(m.Data)
	if err != nil {
		b.fail(err)
		return
	}
	if msg.Source != src || msg.Tag != tag {
		b.fail(fmt.Errorf("%w: subject %s carries %s from rank %d",
			types.ErrTopologyMismatch, m.Subject, msg.Tag, msg.Source))

		return
	}

	b.inbox.Get(mailbox.Key{Source: src, Tag: tag}).Put(msg)
}

// parseSubject extracts source and tag from "<prefix>.<dst>.<src>.<tag>".
func (b *Bus) parseSubject(subject string) (int, types.Tag, error) {
	rest, ok := strings.CutPrefix(subject, b.prefix+".")
	parts := strings.Split(rest, ".")
	if !ok || len(parts) != 3 {
		return 0, 0, fmt.Errorf("%w: unexpected subject %q", types.ErrTopologyMismatch, subject)
	}

	dst, err1 := strconv.Atoi(parts[0])
	src, err2 := strconv.Atoi(parts[1])
	tag, err3 := strconv.Atoi(parts[2])
	if err := errors.Join(err1, err2, err3); err != nil || dst != b.rank || src < 0 || src >= b.size {
		return 0, 0, fmt.Errorf("%w: unexpected subject %q", types.ErrTopologyMismatch, subject)
	}

	return src, types.Tag(tag), nil
}

// fail records the first protocol fault and wakes every receiver.
func (b *Bus) fail(err error) {
	if b.fault.CompareAndSwap(nil, &err) {
		b.logger.Error("nats bus protocol fault", "rank", b.rank, "error", err)
		b.inbox.Close()
	}
}

func (b *Bus) faultErr() error {
	if p := b.fault.Load(); p != nil {
		return *p
	}

	return nil
}
