package types

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tag is the numeric channel discriminator carried by every message.
type Tag int

// Channel discriminators. Values for scatter, border and diagnostic traffic
// match the classic MPI layout of the solver so that logs line up.
const (
	// TagScatter carries an initial strip from the coordinator.
	TagScatter Tag = 11

	// TagBorder carries a border column to a neighbour.
	TagBorder Tag = 22

	// TagDiagnostic carries a worker's max-diff to the coordinator.
	TagDiagnostic Tag = 33

	// TagRelease carries the coordinator's end-of-round release.
	TagRelease Tag = 44

	// TagCollect carries a final strip back to the coordinator.
	TagCollect Tag = 55
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagScatter:
		return "scatter"
	case TagBorder:
		return "border"
	case TagDiagnostic:
		return "diagnostic"
	case TagRelease:
		return "release"
	case TagCollect:
		return "collect"
	default:
		return fmt.Sprintf("tag-%d", int(t))
	}
}

// Kind identifies the payload shape of a message.
type Kind string

const (
	KindVector Kind = "vector"
	KindScalar Kind = "scalar"
	KindMatrix Kind = "matrix"
)

// Message is the unit exchanged between workers.
//
// Data is always owned by the message; transports copy it on send so no
// memory is shared across worker boundaries.
type Message struct {
	Source    int       `json:"src"`
	Tag       Tag       `json:"tag"`
	Iteration int       `json:"iter"`
	Kind      Kind      `json:"kind"`
	Rows      int       `json:"rows,omitempty"`
	Cols      int       `json:"cols,omitempty"`
	Data      []float64 `json:"data"`
}

// VectorMessage builds a vector payload, copying values.
func VectorMessage(tag Tag, iteration int, values []float64) Message {
	data := make([]float64, len(values))
	copy(data, values)

	return Message{Tag: tag, Iteration: iteration, Kind: KindVector, Data: data}
}

// ScalarMessage builds a single-value payload.
func ScalarMessage(tag Tag, iteration int, value float64) Message {
	return Message{Tag: tag, Iteration: iteration, Kind: KindScalar, Data: []float64{value}}
}

// MatrixMessage builds a row-major matrix payload, copying m.
func MatrixMessage(tag Tag, iteration int, m mat.Matrix) Message {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			data = append(data, m.At(i, j))
		}
	}

	return Message{Tag: tag, Iteration: iteration, Kind: KindMatrix, Rows: r, Cols: c, Data: data}
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	out.Data = make([]float64, len(m.Data))
	copy(out.Data, m.Data)

	return out
}

// Vector returns the vector payload.
func (m Message) Vector() ([]float64, error) {
	if m.Kind != KindVector {
		return nil, fmt.Errorf("%w: expected %s payload, got %s", ErrTopologyMismatch, KindVector, m.Kind)
	}

	return m.Data, nil
}

// Scalar returns the scalar payload.
func (m Message) Scalar() (float64, error) {
	if m.Kind != KindScalar || len(m.Data) != 1 {
		return 0, fmt.Errorf("%w: expected %s payload, got %s of length %d",
			ErrTopologyMismatch, KindScalar, m.Kind, len(m.Data))
	}

	return m.Data[0], nil
}

// Matrix returns the matrix payload as a new dense matrix.
func (m Message) Matrix() (*mat.Dense, error) {
	if m.Kind != KindMatrix || m.Rows <= 0 || m.Cols <= 0 || len(m.Data) != m.Rows*m.Cols {
		return nil, fmt.Errorf("%w: malformed %s payload (%s %dx%d, %d values)",
			ErrTopologyMismatch, KindMatrix, m.Kind, m.Rows, m.Cols, len(m.Data))
	}
	data := make([]float64, len(m.Data))
	copy(data, m.Data)

	return mat.NewDense(m.Rows, m.Cols, data), nil
}

// Expect checks that the message came from src on tag for iteration.
//
// Returns:
//   - error: ErrTopologyMismatch describing the first field that differs
func (m Message) Expect(src int, tag Tag, iteration int) error {
	if m.Source != src {
		return fmt.Errorf("%w: expected %s from rank %d, got rank %d", ErrTopologyMismatch, tag, src, m.Source)
	}
	if m.Tag != tag {
		return fmt.Errorf("%w: expected %s from rank %d, got %s", ErrTopologyMismatch, tag, src, m.Tag)
	}
	if m.Iteration != iteration {
		return fmt.Errorf("%w: expected %s for iteration %d from rank %d, got iteration %d",
			ErrTopologyMismatch, tag, iteration, src, m.Iteration)
	}

	return nil
}

// Transport is the point-to-point messaging boundary between workers.
//
// Implementations must be reliable and preserve order per (source,
// destination, tag). Send returns once the transport accepted the message;
// Recv blocks until a message from src on tag arrives or ctx is done.
// Send and Recv may be called concurrently for distinct (peer, tag) pairs.
type Transport interface {
	// Rank returns the local rank.
	Rank() int

	// Size returns the number of workers.
	Size() int

	// Send delivers msg to dst. The transport stamps the source rank.
	Send(ctx context.Context, dst int, msg Message) error

	// Recv returns the next message from src on tag.
	Recv(ctx context.Context, src int, tag Tag) (Message, error)

	// Close releases transport resources. Pending Recv calls fail with ErrClosed.
	Close() error
}
