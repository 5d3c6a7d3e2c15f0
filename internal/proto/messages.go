// Package proto defines the three wire message shapes exchanged
// between client and server (§4.E) and their binary Visit methods.
// Encoding/decoding logic itself lives in internal/codec; a message's
// Visit method is the single field list shared by both directions so
// that encode and decode can never drift apart.
package proto

import (
	"github.com/orbitalrush/grid/internal/codec"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// InputFrame is one tick's worth of player input, queued
// LOCAL_INPUT_QUEUE_MAX deep and retransmitted redundantly in every
// ClientToServer packet (§4.F).
type InputFrame struct {
	Tick             uint64
	ID               uint64 // monotonic per-client sequence, not the tick
	Movement         mathutil.Vec2
	Rotation         float64
	HandPos          mathutil.Vec2
	DoBuild          bool
	BuildType        entities.BoxKind
	BuildRotation    int32
	SeatAction       bool
	InteractAction   bool
	InviteThisPlayer entities.EntityID
	AcceptInvite     bool
	RejectInvite     bool
	TakeOverSquad    int8 // -1 sentinel: no squad takeover requested
}

// Visit walks InputFrame's fields in wire order against s.
func (f *InputFrame) Visit(s *codec.SerState) codec.Result {
	if r := s.U64(&f.Tick); r.Failed {
		return r
	}
	if r := s.U64(&f.ID); r.Failed {
		return r
	}
	if r := s.Vec2(&f.Movement); r.Failed {
		return r
	}
	if r := s.F64(&f.Rotation); r.Failed {
		return r
	}
	if r := s.Vec2(&f.HandPos); r.Failed {
		return r
	}
	if r := s.Bool(&f.DoBuild); r.Failed {
		return r
	}
	var buildType uint8
	if s.Mode() == codec.ModeEncode {
		buildType = uint8(f.BuildType)
	}
	if r := s.U8(&buildType); r.Failed {
		return r
	}
	if s.Mode() == codec.ModeDecode {
		if !entities.BoxKind(buildType).Valid() {
			return codec.Result{Failed: true, Expr: "InputFrame.BuildType out of range"}
		}
		f.BuildType = entities.BoxKind(buildType)
	}
	if r := s.I32(&f.BuildRotation); r.Failed {
		return r
	}
	if r := s.Bool(&f.SeatAction); r.Failed {
		return r
	}
	if r := s.Bool(&f.InteractAction); r.Failed {
		return r
	}
	if r := s.OptionalEntityID(&f.InviteThisPlayer); r.Failed {
		return r
	}
	if r := s.Bool(&f.AcceptInvite); r.Failed {
		return r
	}
	if r := s.Bool(&f.RejectInvite); r.Failed {
		return r
	}
	return s.I8(&f.TakeOverSquad)
}

// OpusPacket is an opaque, already-encoded voice frame. Neither client
// nor server interprets its contents; internal/voice only queues and
// forwards it.
type OpusPacket struct {
	Payload []byte
}

func (p *OpusPacket) Visit(s *codec.SerState) codec.Result {
	return s.ByteSlice(&p.Payload)
}

// ClientToServer is the packet a client sends every
// TIME_BETWEEN_INPUT_PACKETS seconds (§4.F), carrying its whole
// committed-input queue (most-recent first) so that packet loss is
// papered over by redundancy rather than retransmission.
type ClientToServer struct {
	ProtocolVersion uint32
	Inputs          []InputFrame
	VoicePackets    []OpusPacket
}

func (m *ClientToServer) Visit(s *codec.SerState) codec.Result {
	if r := s.U32(&m.ProtocolVersion); r.Failed {
		return r
	}

	var inputCount uint32
	if s.Mode() == codec.ModeEncode {
		inputCount = uint32(len(m.Inputs))
	}
	if r := s.Len(&inputCount); r.Failed {
		return r
	}
	if inputCount > config.LocalInputQueueMax {
		return codec.Result{Failed: true, Expr: "ClientToServer.Inputs exceeds LocalInputQueueMax"}
	}
	if s.Mode() == codec.ModeDecode {
		m.Inputs = make([]InputFrame, inputCount)
	}
	for i := range m.Inputs {
		if r := m.Inputs[i].Visit(s); r.Failed {
			return r
		}
	}

	var voiceCount uint32
	if s.Mode() == codec.ModeEncode {
		voiceCount = uint32(len(m.VoicePackets))
	}
	if r := s.Len(&voiceCount); r.Failed {
		return r
	}
	if voiceCount > config.VoipPacketBufferSize {
		return codec.Result{Failed: true, Expr: "ClientToServer.VoicePackets exceeds VoipPacketBufferSize"}
	}
	if s.Mode() == codec.ModeDecode {
		m.VoicePackets = make([]OpusPacket, voiceCount)
	}
	for i := range m.VoicePackets {
		if r := m.VoicePackets[i].Visit(s); r.Failed {
			return r
		}
	}
	return codec.Result{}
}

// ServerToClient is the per-peer snapshot the server sends every
// simulation tick (or subsample). YourPlayer is -1 for a spectator
// connection (e.g. the websocket spectator feed or a save-file replay
// target, §4.E, §6). DisconnectReason is 0 while connected and set to
// a distinguishable non-zero code (e.g. config.DisconnectReasonServerFull)
// on the final message sent before the server drops the peer (§4.F
// "disconnect notification with reason").
type ServerToClient struct {
	ProtocolVersion  uint32
	YourPlayer       int32
	DisconnectReason uint8
	State            GameStateSnapshot
	VoicePackets     []OpusPacket
}

func (m *ServerToClient) Visit(s *codec.SerState) codec.Result {
	if r := s.U32(&m.ProtocolVersion); r.Failed {
		return r
	}
	if r := s.I32(&m.YourPlayer); r.Failed {
		return r
	}
	if r := s.U8(&m.DisconnectReason); r.Failed {
		return r
	}
	if r := m.State.Visit(s); r.Failed {
		return r
	}

	var voiceCount uint32
	if s.Mode() == codec.ModeEncode {
		voiceCount = uint32(len(m.VoicePackets))
	}
	if r := s.Len(&voiceCount); r.Failed {
		return r
	}
	if voiceCount > config.VoipPacketBufferSize {
		return codec.Result{Failed: true, Expr: "ServerToClient.VoicePackets exceeds VoipPacketBufferSize"}
	}
	if s.Mode() == codec.ModeDecode {
		m.VoicePackets = make([]OpusPacket, voiceCount)
	}
	for i := range m.VoicePackets {
		if r := m.VoicePackets[i].Visit(s); r.Failed {
			return r
		}
	}
	return codec.Result{}
}
