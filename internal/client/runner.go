package client

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/physics"
	"github.com/orbitalrush/grid/internal/proto"
	"github.com/orbitalrush/grid/internal/rules"
	"github.com/orbitalrush/grid/internal/session"
	"github.com/orbitalrush/grid/internal/voice"
)

// InMedbay reports whether player is currently seated in a Medbay box,
// the replay-exit condition of §6 ("on EOF, exit cleanly if the player
// is in a Medbay").
func InMedbay(st *rules.State, player entities.EntityID) bool {
	p, ok := st.Store.Get(player)
	if !ok || p.CurrentlyInsideOf.IsNil() {
		return false
	}
	box, ok := st.Store.Get(p.CurrentlyInsideOf)
	return ok && box.BoxKind == entities.BoxMedbay
}

// InputSource supplies one raw input frame per client frame, either
// from a live device (not modeled here — out of scope, §Non-goals) or
// from a Replayer.
type InputSource interface {
	// Next returns the next frame to apply, or ok=false once exhausted
	// (only ever false for a Replayer at EOF).
	Next() (proto.InputFrame, bool)
}

// replayerSource adapts a Replayer to InputSource.
type replayerSource struct{ r *Replayer }

// NewReplayInputSource drives a Runner from a previously recorded
// input file instead of live input (§6 `replay_inputs_from=<path>`).
func NewReplayInputSource(r *Replayer) InputSource {
	return replayerSource{r: r}
}

func (s replayerSource) Next() (proto.InputFrame, bool) {
	frame, err := s.r.Next()
	if err != nil {
		return proto.InputFrame{}, false
	}
	return frame, true
}

// Runner drives one client frame loop end to end: dial/handshake,
// predict+commit locally every frame, send the committed queue at
// config.Server.TimeBetweenInputPkts, and reconcile against every
// arriving snapshot. Built on the same Ticker/Clock idiom as
// internal/session, reused here for the client's own send cadence.
type Runner struct {
	cfg    *config.Config
	conn   *Conn
	pred   *Predictor
	clock  session.Clock
	logger logr.Logger

	world    *physics.World
	recorder *Recorder
	input    InputSource
	voice    *voice.Channel

	lastSend         time.Time
	lastRecordedTick uint64
	hasRecorded      bool
}

// NewRunner dials addr and prepares a Predictor for the assigned slot.
// input, if non-nil, drives commitAndStep every frame instead of the
// frame's already-populated Input(); pass nil to drive input manually
// via Predictor.Input() between Advance calls (e.g. from a UI event
// loop).
func NewRunner(cfg *config.Config, addr string, input InputSource, recorder *Recorder, logger logr.Logger) (*Runner, error) {
	timeout := time.Duration(cfg.Server.ConnectHandshakeSecs * float64(time.Second))
	conn, err := Dial(addr, timeout)
	if err != nil {
		return nil, err
	}

	state := rules.NewState(cfg)
	clock := session.NewRealClock()
	pred := NewPredictor(state, int(conn.YourPlayer()), clock, logger)

	return &Runner{
		cfg:      cfg,
		conn:     conn,
		pred:     pred,
		clock:    clock,
		logger:   logger,
		world:    physics.NewWorld(),
		recorder: recorder,
		input:    input,
		voice:    voice.NewChannel(config.VoipPacketBufferSize),
	}, nil
}

// Voice exposes the Runner's local voice channel: push captured audio
// onto Voice().Outgoing to have it sent on the next Frame, and pop
// Voice().Incoming for audio received from other players to play back.
func (r *Runner) Voice() *voice.Channel {
	return r.voice
}

// Close releases the network connection and any open recorder.
func (r *Runner) Close() {
	r.conn.Close()
	if r.recorder != nil {
		r.recorder.Close()
	}
}

// Predictor exposes the underlying prediction state, e.g. for a
// renderer to read Predictor.State() after each Frame.
func (r *Runner) Predictor() *Predictor {
	return r.pred
}

// Frame runs one iteration of the client loop: pull the next replay
// frame (if driven by one), advance local prediction by wallDt,
// record+send any newly committed input, and drain+apply any pending
// snapshot. It returns false once a replay-driven runner has exhausted
// its input and the player is in a Medbay (§6's clean-exit condition).
func (r *Runner) Frame(wallDt time.Duration) (more bool, err error) {
	if r.input != nil {
		frame, hasInput := r.input.Next()
		if !hasInput {
			return !InMedbay(r.pred.State(), r.currentPlayer()), nil
		}
		*r.pred.Input() = frame
	}

	r.pred.Advance(wallDt)
	if r.recorder != nil {
		r.recordNewFrames()
	}

	now := r.clock.Now()
	sendInterval := time.Duration(r.cfg.Server.TimeBetweenInputPkts * float64(time.Second))
	if now.Sub(r.lastSend) >= sendInterval {
		r.lastSend = now
		pending := r.pred.PendingInputs()
		inputs := make([]proto.InputFrame, len(pending))
		for i, f := range pending {
			inputs[len(pending)-1-i] = f
		}
		if err := r.conn.Send(&proto.ClientToServer{
			ProtocolVersion: config.ProtocolVersion,
			Inputs:          inputs,
			VoicePackets:    r.drainOutgoingVoice(),
		}); err != nil {
			return true, err
		}
	}

	r.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	snap, recvErr := r.conn.Recv()
	if recvErr == nil && snap != nil {
		r.pred.Reconcile(&snap.State, r.world)
		mean, variance := r.conn.RTTStats()
		r.pred.ApplyDilation(mean, variance, r.cfg.Prediction.DilationMargin, r.cfg.Prediction.TicksBehindDoSnap)
		for _, p := range snap.VoicePackets {
			r.voice.Incoming.Push(voice.Packet{Payload: p.Payload})
		}
	}
	return true, nil
}

// drainOutgoingVoice pops every packet queued locally for send since
// the last Frame.
func (r *Runner) drainOutgoingVoice() []proto.OpusPacket {
	var out []proto.OpusPacket
	for {
		p, ok := r.voice.Outgoing.Pop()
		if !ok {
			break
		}
		out = append(out, proto.OpusPacket{Payload: p.Payload})
	}
	return out
}

func (r *Runner) recordNewFrames() {
	for _, frame := range r.pred.PendingInputs() {
		if r.hasRecorded && frame.Tick <= r.lastRecordedTick {
			continue
		}
		r.recorder.Write(&frame)
		r.lastRecordedTick = frame.Tick
		r.hasRecorded = true
	}
}

func (r *Runner) currentPlayer() entities.EntityID {
	st := r.pred.State()
	slot := r.pred.slot
	if slot < 0 || slot >= len(st.Slots) {
		return entities.Nil
	}
	return st.Slots[slot].Player
}
