package session

import (
	"time"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/proto"
	"github.com/orbitalrush/grid/internal/rules"
)

// Snapshot is one captured, wire-encoded copy of the authoritative
// state at a tick, ready to hand to internal/save for atomic
// persistence or to a spectator feed.
type Snapshot struct {
	Tick       uint64
	Encoded    []byte
	CapturedAt time.Time
}

// SnapshotHistory retains a bounded number of recent snapshots, used
// by the server loop's periodic world-save (§4.H: "periodically
// serialize the full state and atomically write to a save file").
// Generalized from a SnapshotManager that kept full World value copies
// for single-ship rollback; server-side rollback isn't part of this
// design (reconciliation is a client-only rewind, via
// rules.ApplySnapshot), so history here exists for persistence and
// diagnostics rather than for restoring the live State in place.
type SnapshotHistory struct {
	capacity int
	order    []uint64
	byTick   map[uint64]*Snapshot
}

// NewSnapshotHistory creates a history retaining at most capacity
// snapshots, evicting the oldest once full.
func NewSnapshotHistory(capacity int) *SnapshotHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &SnapshotHistory{
		capacity: capacity,
		byTick:   make(map[uint64]*Snapshot),
	}
}

// Capture encodes st's current state as a ServerToClient payload
// (your_player = -1, per §6's save-file format) and retains it.
func (h *SnapshotHistory) Capture(st *rules.State, clock Clock) (*Snapshot, error) {
	msg := proto.ServerToClient{
		ProtocolVersion: config.ProtocolVersion,
		YourPlayer:      -1,
		State:           rules.ToSnapshot(st),
	}
	encoded, err := proto.Encode(&msg)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Tick: st.Tick, Encoded: encoded, CapturedAt: clock.Now()}
	h.byTick[snap.Tick] = snap
	h.order = append(h.order, snap.Tick)
	if len(h.order) > h.capacity {
		evict := h.order[0]
		h.order = h.order[1:]
		delete(h.byTick, evict)
	}
	return snap, nil
}

// Latest returns the most recently captured snapshot, if any.
func (h *SnapshotHistory) Latest() (*Snapshot, bool) {
	if len(h.order) == 0 {
		return nil, false
	}
	return h.byTick[h.order[len(h.order)-1]], true
}

// Get retrieves a specific tick's snapshot, if it's still retained.
func (h *SnapshotHistory) Get(tick uint64) (*Snapshot, bool) {
	snap, ok := h.byTick[tick]
	return snap, ok
}

// Clear discards every retained snapshot.
func (h *SnapshotHistory) Clear() {
	h.order = nil
	h.byTick = make(map[uint64]*Snapshot)
}
