// Package codec implements the wire binary format for InputFrame,
// ClientToServer and ServerToClient messages (§4.E). A single SerState
// visitor drives both directions so that the encode and decode paths
// can never drift apart: every message type implements one Visit
// method that calls SerState.U32/F64/Vec2/... in a fixed field order,
// and SerState itself decides whether that call writes or reads.
package codec

import (
	"encoding/binary"
	"math"

	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// Mode selects which direction a SerState drives.
type Mode uint8

const (
	ModeEncode Mode = iota
	ModeDecode
)

// Result is returned by every SerState method. Each call reports only
// its own outcome and nothing carries over to later calls, so callers
// check Failed after every visit and return the first failing Result:
//
//	if r := s.U64(&tick); r.Failed {
//		return r
//	}
//
// Expr names the primitive that failed (e.g. "byte slice"). The
// primitive visitors leave Line at 0; no source position is recorded.
type Result struct {
	Failed bool
	Line   int
	Expr   string
}

func ok() Result { return Result{} }

func fail(line int, expr string) Result {
	return Result{Failed: true, Line: line, Expr: expr}
}

// SerState is a cursor over a fixed byte buffer. EntityID references
// are carried as raw index+generation; no entity table is kept and no
// fix-up pass resolves or validates them during decode.
type SerState struct {
	mode Mode
	buf  []byte
	pos  int

	// fixups is not populated by any visit method; decoded EntityIDs
	// are used exactly as read.
	fixups []fixup
}

type fixup struct {
	offset uint32
	index  uint32
}

// NewEncoder creates a SerState that writes into buf, failing closed if
// any write would exceed len(buf).
func NewEncoder(buf []byte) *SerState {
	return &SerState{mode: ModeEncode, buf: buf}
}

// NewDecoder creates a SerState that reads from buf, failing closed on
// any read past len(buf).
func NewDecoder(buf []byte) *SerState {
	return &SerState{mode: ModeDecode, buf: buf}
}

// Bytes returns the portion of the encode buffer written so far.
func (s *SerState) Bytes() []byte {
	return s.buf[:s.pos]
}

// Mode reports whether s is encoding or decoding, for message Visit
// methods that need to branch (e.g. deriving a count from len(slice)
// on encode vs. allocating a slice of that count on decode).
func (s *SerState) Mode() Mode {
	return s.mode
}

func (s *SerState) remaining() int {
	return len(s.buf) - s.pos
}

func (s *SerState) U8(v *uint8) Result {
	if s.remaining() < 1 {
		return fail(0, "u8")
	}
	if s.mode == ModeEncode {
		s.buf[s.pos] = *v
	} else {
		*v = s.buf[s.pos]
	}
	s.pos++
	return ok()
}

func (s *SerState) Bool(v *bool) Result {
	var b uint8
	if s.mode == ModeEncode {
		if *v {
			b = 1
		}
	}
	if r := s.U8(&b); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = b != 0
	}
	return ok()
}

func (s *SerState) I8(v *int8) Result {
	var b uint8
	if s.mode == ModeEncode {
		b = uint8(*v)
	}
	if r := s.U8(&b); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = int8(b)
	}
	return ok()
}

func (s *SerState) U16(v *uint16) Result {
	if s.remaining() < 2 {
		return fail(0, "u16")
	}
	if s.mode == ModeEncode {
		binary.LittleEndian.PutUint16(s.buf[s.pos:], *v)
	} else {
		*v = binary.LittleEndian.Uint16(s.buf[s.pos:])
	}
	s.pos += 2
	return ok()
}

func (s *SerState) U32(v *uint32) Result {
	if s.remaining() < 4 {
		return fail(0, "u32")
	}
	if s.mode == ModeEncode {
		binary.LittleEndian.PutUint32(s.buf[s.pos:], *v)
	} else {
		*v = binary.LittleEndian.Uint32(s.buf[s.pos:])
	}
	s.pos += 4
	return ok()
}

func (s *SerState) I32(v *int32) Result {
	var u uint32
	if s.mode == ModeEncode {
		u = uint32(*v)
	}
	if r := s.U32(&u); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = int32(u)
	}
	return ok()
}

func (s *SerState) U64(v *uint64) Result {
	if s.remaining() < 8 {
		return fail(0, "u64")
	}
	if s.mode == ModeEncode {
		binary.LittleEndian.PutUint64(s.buf[s.pos:], *v)
	} else {
		*v = binary.LittleEndian.Uint64(s.buf[s.pos:])
	}
	s.pos += 8
	return ok()
}

func (s *SerState) I64(v *int64) Result {
	var u uint64
	if s.mode == ModeEncode {
		u = uint64(*v)
	}
	if r := s.U64(&u); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = int64(u)
	}
	return ok()
}

func (s *SerState) F32(v *float32) Result {
	var u uint32
	if s.mode == ModeEncode {
		u = math.Float32bits(*v)
	}
	if r := s.U32(&u); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = math.Float32frombits(u)
	}
	return ok()
}

func (s *SerState) F64(v *float64) Result {
	var u uint64
	if s.mode == ModeEncode {
		u = math.Float64bits(*v)
	}
	if r := s.U64(&u); r.Failed {
		return r
	}
	if s.mode == ModeDecode {
		*v = math.Float64frombits(u)
	}
	return ok()
}

// Vec2 visits a mathutil.Vec2 as two consecutive f64 fields.
func (s *SerState) Vec2(v *mathutil.Vec2) Result {
	if r := s.F64(&v.X); r.Failed {
		return r
	}
	return s.F64(&v.Y)
}

// String visits a u32-length-prefixed UTF-8 string.
func (s *SerState) String(v *string) Result {
	n := uint32(len(*v))
	if r := s.U32(&n); r.Failed {
		return r
	}
	if s.mode == ModeEncode {
		if s.remaining() < int(n) {
			return fail(0, "string bytes")
		}
		copy(s.buf[s.pos:], *v)
		s.pos += int(n)
		return ok()
	}
	if s.remaining() < int(n) {
		return fail(0, "string bytes")
	}
	*v = string(s.buf[s.pos : s.pos+int(n)])
	s.pos += int(n)
	return ok()
}

// ByteSlice visits a u32-length-prefixed opaque byte slice (e.g. an Opus
// voice payload).
func (s *SerState) ByteSlice(v *[]byte) Result {
	n := uint32(len(*v))
	if r := s.U32(&n); r.Failed {
		return r
	}
	if s.mode == ModeEncode {
		if s.remaining() < int(n) {
			return fail(0, "byte slice")
		}
		copy(s.buf[s.pos:], *v)
		s.pos += int(n)
		return ok()
	}
	if s.remaining() < int(n) {
		return fail(0, "byte slice")
	}
	*v = append([]byte(nil), s.buf[s.pos:s.pos+int(n)]...)
	s.pos += int(n)
	return ok()
}

// EntityID visits an EntityID as index+generation. On decode, the
// generation read from the wire is trusted as-is: the codec does not
// itself validate liveness, since a reference may legitimately point
// at an entity destroyed earlier in the same step. Callers that need a
// live reference resolve it via entities.Store.Get after the whole
// message has been decoded.
func (s *SerState) EntityID(v *entities.EntityID) Result {
	if r := s.U32(&v.Index); r.Failed {
		return r
	}
	return s.U32(&v.Generation)
}

// OptionalEntityID visits a presence byte followed by an EntityID,
// used for nilable references like invite_this_player.
func (s *SerState) OptionalEntityID(v *entities.EntityID) Result {
	present := !v.IsNil()
	if r := s.Bool(&present); r.Failed {
		return r
	}
	if !present {
		if s.mode == ModeDecode {
			*v = entities.Nil
		}
		return ok()
	}
	return s.EntityID(v)
}

// Len visits a u32 container count. Callers loop len times themselves
// (decode) or pass len(slice) (encode), then visit each element.
func (s *SerState) Len(n *uint32) Result {
	return s.U32(n)
}
