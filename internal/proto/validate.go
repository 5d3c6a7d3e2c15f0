package proto

import (
	"fmt"
	"math"

	"github.com/orbitalrush/grid/internal/config"
)

// ValidateInputFrame rejects a decoded InputFrame whose fields are
// well-formed per the codec (finite, in-range) but still violate a
// protocol-level constraint the codec itself can't express, e.g. a
// squad index beyond MAX_PLAYERS. A frame failing here is dropped for
// that tick rather than applied (§7): the originating slot simply
// sees its input treated as stale.
func ValidateInputFrame(f *InputFrame) error {
	if err := validateVec2("movement", f.Movement.X, f.Movement.Y); err != nil {
		return err
	}
	if err := validateFinite("rotation", f.Rotation); err != nil {
		return err
	}
	if err := validateVec2("hand_pos", f.HandPos.X, f.HandPos.Y); err != nil {
		return err
	}
	if f.BuildRotation < 0 || f.BuildRotation > 3 {
		return fmt.Errorf("build_rotation out of range [0,3]: %d", f.BuildRotation)
	}
	if !f.BuildType.Valid() {
		return fmt.Errorf("build_type out of range: %d", f.BuildType)
	}
	if f.TakeOverSquad != -1 && (f.TakeOverSquad < 0 || int(f.TakeOverSquad) >= config.MaxPlayers) {
		return fmt.Errorf("take_over_squad out of range: %d", f.TakeOverSquad)
	}
	return nil
}

// ValidateClientToServer validates the protocol version and every
// queued InputFrame. A version mismatch is the one error the caller
// should treat as connection-fatal rather than tick-local; everything
// else degrades gracefully per-frame.
func ValidateClientToServer(m *ClientToServer) error {
	if m.ProtocolVersion != config.ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: client=%d server=%d", m.ProtocolVersion, config.ProtocolVersion)
	}
	if len(m.Inputs) > config.LocalInputQueueMax {
		return fmt.Errorf("input queue too long: %d > %d", len(m.Inputs), config.LocalInputQueueMax)
	}
	for i := range m.Inputs {
		if err := ValidateInputFrame(&m.Inputs[i]); err != nil {
			return fmt.Errorf("input[%d]: %w", i, err)
		}
	}
	if len(m.VoicePackets) > config.VoipPacketBufferSize {
		return fmt.Errorf("voice packet queue too long: %d > %d", len(m.VoicePackets), config.VoipPacketBufferSize)
	}
	for i, p := range m.VoicePackets {
		if len(p.Payload) > config.VoipPacketMaxSize {
			return fmt.Errorf("voice packet[%d] too large: %d > %d", i, len(p.Payload), config.VoipPacketMaxSize)
		}
	}
	return nil
}

func validateFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s: must be finite, got %v", field, v)
	}
	return nil
}

func validateVec2(field string, x, y float64) error {
	if err := validateFinite(field+".x", x); err != nil {
		return err
	}
	return validateFinite(field+".y", y)
}
