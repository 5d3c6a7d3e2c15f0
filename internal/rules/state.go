// Package rules implements the deterministic game step (§4.D): the
// pure function that advances a State by one fixed timestep, in a
// fixed order of phases. Builds on the same Step/ApplyInput/
// EvaluateGameState shape, generalized from a single-ship/single-sun
// world to the full entity arena.
package rules

import (
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/physics"
	"github.com/orbitalrush/grid/internal/proto"
)

// Slot is one row of the fixed-size player connection table.
type Slot struct {
	Connected bool
	Player    entities.EntityID

	// committed holds the InputFrame for ticks not yet consumed by
	// Step, keyed by tick. internal/session merges received packets
	// into this buffer (OR-merging event flags, §4.H) before Step
	// runs; Step itself only reads and prunes it.
	committed map[uint64]proto.InputFrame

	// lastApplied is the most recently applied frame, used to detect
	// the rising edge of SeatAction/InviteThisPlayer/AcceptInvite/
	// RejectInvite — each fires once per press, not once per tick held.
	lastApplied proto.InputFrame
}

// SetInput records frame for its own tick, overwriting any frame
// already queued for that tick. Used by session's per-slot merge.
func (s *Slot) SetInput(frame proto.InputFrame) {
	if s.committed == nil {
		s.committed = make(map[uint64]proto.InputFrame)
	}
	s.committed[frame.Tick] = frame
}

// take removes and returns the frame queued for tick, if any.
func (s *Slot) take(tick uint64) (proto.InputFrame, bool) {
	f, ok := s.committed[tick]
	if ok {
		delete(s.committed, tick)
	}
	return f, ok
}

// State is the complete, steppable authoritative (or predicted) world:
// the entity arena, the physics world backing it, the current tick,
// and the player connection table. Step treats it as the sole hidden
// state threaded between ticks — no package-level globals.
type State struct {
	Tick    uint64
	Store   *entities.Store
	Physics *physics.World
	Config  *config.Config
	Slots   [config.MaxPlayers]Slot
}

// NewState creates an empty world ready to Step, tunable by cfg (use
// config.Default() for the shipped defaults).
func NewState(cfg *config.Config) *State {
	return &State{
		Store:   entities.NewStore(),
		Physics: physics.NewWorld(),
		Config:  cfg,
	}
}

// FindSlot returns the slot index owning player, or -1 if none does.
func (st *State) FindSlot(player entities.EntityID) int {
	for i := range st.Slots {
		if st.Slots[i].Connected && st.Slots[i].Player == player {
			return i
		}
	}
	return -1
}
