// Package client implements the predicted, reconciling local
// simulation a player runs while connected to an authoritative server
// (§4.G): a committed-input queue retransmitted redundantly to survive
// packet loss, a fixed-timestep prediction loop run ahead of the last
// acknowledged server tick, and a bounded replay on every snapshot
// arrival. Built on the same Ticker/Clock accumulator idiom as
// internal/session/ticker.go, reused here for the client's own
// wall-clock-driven time_to_process loop instead of the server's fixed
// tick rate.
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
)

// Predictor holds the client-side prediction state: a local GameState
// the player advances ahead of the server, the committed-input queue
// backing reconciliation replay, and the time-dilation controller's
// running accumulator.
type Predictor struct {
	state *rules.State
	slot  int

	cur proto.InputFrame // mutable; edge-triggered fields latch until committed

	queue        []proto.InputFrame // FIFO, bounded by config.LocalInputQueueMax
	hasCommitted bool
	nextInputID  uint64

	timeToProcess time.Duration
	dilation      Dilation

	lastServerTick uint64
	hasServerTick  bool

	clock  session.Clock
	logger logr.Logger
}

// NewPredictor creates a Predictor driving state's local player in
// slot. state should already contain a freshly-connected world (e.g.
// from the first snapshot received on connect).
func NewPredictor(state *rules.State, slot int, clock session.Clock, logger logr.Logger) *Predictor {
	return &Predictor{
		state:    state,
		slot:     slot,
		cur:      proto.InputFrame{TakeOverSquad: -1},
		dilation: Dilation{Factor: 1.0},
		clock:    clock,
		logger:   logger.WithValues("component", "client", "layer", "prediction"),
	}
}

// Input returns a pointer to the mutable current input frame for the
// caller to populate from raw device input each real frame. Continuous
// fields (movement, rotation, hand position) are simply overwritten;
// edge-triggered fields (DoBuild, SeatAction, InteractAction,
// AcceptInvite, RejectInvite, InviteThisPlayer) should be set true/non-nil
// on the frame they occur and are cleared automatically once committed.
func (p *Predictor) Input() *proto.InputFrame {
	return &p.cur
}

// State returns the predictor's local, possibly-ahead-of-server
// GameState.
func (p *Predictor) State() *rules.State {
	return p.state
}

// PendingInputs returns the full committed-input queue, oldest first,
// for transmission in the next ClientToServer packet (§4.F: redundant
// retransmission is the reliability mechanism, not retransmission on
// demand).
func (p *Predictor) PendingInputs() []proto.InputFrame {
	return append([]proto.InputFrame(nil), p.queue...)
}

// Advance runs step 2 of §4.G: grows time_to_process by wallDt*dilation
// and commits+applies+steps once per elapsed TIMESTEP, returning the
// number of ticks stepped.
func (p *Predictor) Advance(wallDt time.Duration) int {
	p.timeToProcess += time.Duration(float64(wallDt) * p.dilation.Factor)

	stepped := 0
	for p.timeToProcess >= config.Timestep {
		p.commitAndStep()
		p.timeToProcess -= config.Timestep
		stepped++
	}
	return stepped
}

// commitAndStep commits p.cur as the next tick's frame, enqueues it,
// applies it to the local player slot, and steps the local world.
func (p *Predictor) commitAndStep() {
	tick := p.state.Tick
	frame := p.cur
	frame.Tick = tick
	frame.ID = p.nextInputID
	p.nextInputID++

	p.enqueue(frame)
	p.applyFrame(frame)
	rules.Step(p.state, config.TimestepSeconds)

	p.resetEdges()
}

func (p *Predictor) applyFrame(frame proto.InputFrame) {
	if p.slot < 0 || p.slot >= len(p.state.Slots) {
		return
	}
	p.state.Slots[p.slot].SetInput(frame)
}

func (p *Predictor) enqueue(frame proto.InputFrame) {
	p.queue = append(p.queue, frame)
	if len(p.queue) > config.LocalInputQueueMax {
		p.queue = p.queue[len(p.queue)-config.LocalInputQueueMax:]
	}
}

// resetEdges clears the edge-triggered fields of cur once they've been
// committed, so a single press doesn't latch into every subsequent tick.
func (p *Predictor) resetEdges() {
	p.cur.DoBuild = false
	p.cur.SeatAction = false
	p.cur.InteractAction = false
	p.cur.InviteThisPlayer = entities.Nil
	p.cur.AcceptInvite = false
	p.cur.RejectInvite = false
	p.cur.TakeOverSquad = -1
}

// LastServerTick reports the tick of the most recently applied
// snapshot and whether any has arrived yet.
func (p *Predictor) LastServerTick() (uint64, bool) {
	return p.lastServerTick, p.hasServerTick
}

// PredictedTick is the tick the local simulation has stepped to.
func (p *Predictor) PredictedTick() uint64 {
	return p.state.Tick
}

// ApplyDilation implements §4.G item 4: recompute the dilation factor
// from how far the local prediction currently runs ahead of the last
// server-authoritative tick, using rtt/variance estimates from the
// transport layer (internal/transport.Peer.RTTStats). Call this once
// per snapshot arrival, after Reconcile.
func (p *Predictor) ApplyDilation(rtt, variance time.Duration, margin, ticksBehindDoSnap int) {
	if !p.hasServerTick {
		return
	}
	ticksAhead := int(p.state.Tick) - int(p.lastServerTick)
	healthy := Healthy(rtt, variance, margin)

	if p.dilation.Update(ticksAhead, healthy, ticksBehindDoSnap) {
		p.snapAhead(healthy)
	}
}

// snapAhead discards the accumulator and fast-forwards the local
// simulation directly to healthy ticks past the last server tick,
// replaying queued input where available and zero-input frames
// otherwise, rather than letting dilation alone close a large gap.
func (p *Predictor) snapAhead(healthy int) {
	p.timeToProcess = 0
	target := p.lastServerTick + uint64(healthy)
	byTick := make(map[uint64]proto.InputFrame, len(p.queue))
	for _, f := range p.queue {
		byTick[f.Tick] = f
	}
	for p.state.Tick < target {
		frame, ok := byTick[p.state.Tick]
		if !ok {
			frame = proto.InputFrame{Tick: p.state.Tick, TakeOverSquad: -1}
		}
		p.applyFrame(frame)
		rules.Step(p.state, config.TimestepSeconds)
	}
	p.logger.Info("snapped prediction ahead", "target_tick", target)
}

// Reconcile implements §4.G step 3: replace the local GameState with
// snap, discard queued input at or before snap's tick (the ordering
// rule of §5 — "clients discard out-of-order snapshots with
// tick <= last_applied_tick" applies symmetrically here to input
// frames, since a committed tick at or before the authoritative tick
// has already been accounted for by the server), then replay the rest
// in order. Replay work is bounded by config.Prediction.MaxMsSpentRepredicting;
// if the budget runs out mid-replay, Reconcile logs and stops, leaving
// the local tick behind the full queue (a visible catch-up, per spec).
func (p *Predictor) Reconcile(snap *proto.GameStateSnapshot, world *physics.World) {
	if p.hasServerTick && snap.Tick <= p.lastServerTick {
		return
	}
	p.lastServerTick = snap.Tick
	p.hasServerTick = true

	rules.ApplySnapshot(p.state, snap, world)

	kept := p.queue[:0]
	for _, frame := range p.queue {
		if frame.Tick > snap.Tick {
			kept = append(kept, frame)
		}
	}
	p.queue = kept

	budget := time.Duration(p.state.Config.Prediction.MaxMsSpentRepredicting * float64(time.Millisecond))
	deadline := p.clock.Now().Add(budget)
	for _, frame := range p.queue {
		if p.clock.Now().After(deadline) {
			p.logger.Info("reprediction budget exhausted, stopping replay early",
				"replayed_to_tick", p.state.Tick, "queue_len", len(p.queue))
			return
		}
		p.state.Tick = frame.Tick
		p.applyFrame(frame)
		rules.Step(p.state, config.TimestepSeconds)
	}
}
