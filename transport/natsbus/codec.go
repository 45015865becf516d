package natsbus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/heatgrid/types"
)

// envelope is the wire form of a message.
//
// Sum is an xxh3 checksum over the little-endian float64 payload; a mismatch
// means the payload was corrupted or produced by an incompatible peer.
type envelope struct {
	types.Message

	Sum uint64 `json:"sum"`
}

// Encode serializes msg into its wire form.
func Encode(msg types.Message) ([]byte, error) {
	data, err := json.Marshal(envelope{Message: msg, Sum: checksum(msg.Data)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Tag, err)
	}

	return data, nil
}

// Decode parses a wire payload and verifies its checksum.
//
// Returns:
//   - types.Message: Decoded message
//   - error: ErrTopologyMismatch if the payload is malformed or the checksum differs
func Decode(data []byte) (types.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.Message{}, fmt.Errorf("%w: malformed envelope: %w", types.ErrTopologyMismatch, err)
	}
	if sum := checksum(env.Data); sum != env.Sum {
		return types.Message{}, fmt.Errorf("%w: checksum mismatch on %s from rank %d (got %x, want %x)",
			types.ErrTopologyMismatch, env.Tag, env.Source, sum, env.Sum)
	}

	return env.Message, nil
}

func checksum(values []float64) uint64 {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}

	return xxh3.Hash(buf)
}
