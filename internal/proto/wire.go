package proto

import (
	"github.com/orbitalrush/grid/internal/codec"
	"github.com/orbitalrush/grid/internal/compression"
)

// maxRawMessageSize bounds the pre-compression scratch buffer used to
// encode a message. It is a local implementation detail, not a
// wire-compatibility constant: unlike config.MaxServerToClient (the
// post-compression datagram bound both peers must agree on), a buffer
// this size large enough never needs to be renegotiated between builds.
const maxRawMessageSize = 4 << 20

// visitable is implemented by every wire message type.
type visitable interface {
	Visit(s *codec.SerState) codec.Result
}

// Encode serializes msg with the binary codec, then S2-compresses the
// result (§4.E/§6: "raw output of the binary codec optionally wrapped
// by the compressor; no additional framing beyond the datagram layer").
func Encode(msg visitable) ([]byte, error) {
	buf := make([]byte, maxRawMessageSize)
	enc := codec.NewEncoder(buf)
	if r := msg.Visit(enc); r.Failed {
		return nil, &EncodeError{Result: r}
	}
	return compression.Compress(nil, enc.Bytes()), nil
}

// Decode S2-decompresses data, then deserializes msg's fields from the
// result.
func Decode(data []byte, msg visitable) error {
	raw, err := compression.Decompress(data)
	if err != nil {
		return &EncodeError{Result: codec.Result{Failed: true, Expr: "decompressing wire message: " + err.Error()}}
	}
	dec := codec.NewDecoder(raw)
	if r := msg.Visit(dec); r.Failed {
		return &EncodeError{Result: r}
	}
	return nil
}

// EncodeError wraps a failed codec.Result with a message-layer error.
type EncodeError struct {
	Result codec.Result
}

func (e *EncodeError) Error() string {
	return "proto: codec failure at " + e.Result.Expr
}
