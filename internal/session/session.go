package session

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/rules"
)

// MaxAccumulatorTicks clamps the server loop's wall-clock accumulator
// so a stall (GC pause, debugger breakpoint, slow machine) doesn't
// trigger a death spiral of catch-up ticks (§4.H).
const MaxAccumulatorTicks = 5

// Session orchestrates the authoritative tick loop: a fixed-rate
// ticker drives rules.Step, fed by per-slot MergeQueues that fold in
// received input before each tick runs. Built on the same
// ticker+queue+step shape, generalized from a single input stream to
// per-slot merge queues over the full entity arena.
type Session struct {
	state       *rules.State
	ticker      *Ticker
	clock       Clock
	accumulator time.Duration
	queues      [config.MaxPlayers]*MergeQueue
	running     bool
	logger      logr.Logger
}

// NewSession creates a session driving state at the fixed simulation
// rate (config.Timestep).
func NewSession(clock Clock, state *rules.State) *Session {
	s := &Session{
		state:  state,
		ticker: NewTicker(clock, config.Timestep),
		clock:  clock,
	}
	for i := range s.queues {
		s.queues[i] = NewMergeQueue()
	}
	return s
}

// SetLogger attaches an optional logger for slow-tick diagnostics.
func (s *Session) SetLogger(logger logr.Logger) {
	s.logger = logger
}

// Queue returns the merge queue for slot i, or nil if i is out of
// range. The transport layer merges each received ClientToServer's
// input queue into the matching slot before the next Advance.
func (s *Session) Queue(slot int) *MergeQueue {
	if slot < 0 || slot >= len(s.queues) {
		return nil
	}
	return s.queues[slot]
}

// State returns the session's underlying simulation state.
func (s *Session) State() *rules.State {
	return s.state
}

// Advance accumulates wall_dt and runs as many fixed timesteps as have
// elapsed, clamped to MaxAccumulatorTicks, returning the number of
// ticks actually stepped.
func (s *Session) Advance(wallDt time.Duration) int {
	s.running = true
	s.accumulator += wallDt
	maxAccum := time.Duration(MaxAccumulatorTicks) * config.Timestep
	if s.accumulator > maxAccum {
		s.accumulator = maxAccum
	}

	stepped := 0
	for s.accumulator >= config.Timestep {
		s.commitPendingInput()

		tickStart := time.Now()
		rules.Step(s.state, config.TimestepSeconds)
		s.observeTickDuration(time.Since(tickStart))

		s.accumulator -= config.Timestep
		stepped++
	}
	return stepped
}

// commitPendingInput copies each slot's merged frame for the state's
// current tick into the corresponding rules.Slot, just before Step
// consumes it.
func (s *Session) commitPendingInput() {
	for i := range s.state.Slots {
		slot := &s.state.Slots[i]
		if !slot.Connected {
			continue
		}
		if frame, ok := s.queues[i].Take(s.state.Tick); ok {
			slot.SetInput(frame)
		}
	}
}

func (s *Session) observeTickDuration(d time.Duration) {
	seconds := d.Seconds()
	if histogram := observability.GetTickDurationHistogram(); histogram != nil {
		histogram.Observe(seconds)
	}
	const slowTickSeconds = 0.01
	if seconds > slowTickSeconds && s.logger.Enabled() {
		s.logger.WithValues(
			"component", "session",
			"tick", s.state.Tick,
			"duration_ms", seconds*1000.0,
		).Info("tick execution exceeded threshold")
	}
}

// IsRunning reports whether Advance has been called since the session
// was created or last stopped.
func (s *Session) IsRunning() bool {
	return s.running
}

// Stop marks the session as no longer running; Advance may still be
// called afterward (e.g. to drain one last tick before shutdown).
func (s *Session) Stop() {
	s.running = false
}
