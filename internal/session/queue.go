package session

import "github.com/orbitalrush/grid/internal/proto"

// MergeQueue implements the server-side per-slot input merge rule of
// §4.H: every InputFrame whose id exceeds latestIDProcessed is
// adopted, its event-flag fields OR-merged into whatever is already
// pending for that tick (a true event is never overwritten by false
// until it's been committed), after which latestIDProcessed advances.
// This tolerates the client's redundant retransmission of its whole
// committed-input queue every packet without double-applying an edge
// trigger or losing one to reordering.
//
// Generalized from a sequence-ordered, dedup-by-sequence CommandQueue
// that assumed exactly-once delivery of a single command stream,
// rather than a redundantly retransmitted frame queue.
type MergeQueue struct {
	latestIDProcessed uint64
	hasProcessed      bool
	pending           map[uint64]proto.InputFrame // by tick, not yet committed
}

// NewMergeQueue creates an empty per-slot merge queue.
func NewMergeQueue() *MergeQueue {
	return &MergeQueue{pending: make(map[uint64]proto.InputFrame)}
}

// Merge folds a received ClientToServer's input queue into q, in
// ascending id order so that OR-merging sees older frames first.
func (q *MergeQueue) Merge(frames []proto.InputFrame) {
	ordered := append([]proto.InputFrame(nil), frames...)
	insertionSortByID(ordered)

	for _, frame := range ordered {
		if q.hasProcessed && frame.ID <= q.latestIDProcessed {
			continue
		}
		q.adopt(frame)
		q.latestIDProcessed = frame.ID
		q.hasProcessed = true
	}
}

func (q *MergeQueue) adopt(frame proto.InputFrame) {
	existing, ok := q.pending[frame.Tick]
	if !ok {
		q.pending[frame.Tick] = frame
		return
	}
	existing.DoBuild = existing.DoBuild || frame.DoBuild
	existing.SeatAction = existing.SeatAction || frame.SeatAction
	existing.InteractAction = existing.InteractAction || frame.InteractAction
	existing.AcceptInvite = existing.AcceptInvite || frame.AcceptInvite
	existing.RejectInvite = existing.RejectInvite || frame.RejectInvite
	if existing.InviteThisPlayer.IsNil() {
		existing.InviteThisPlayer = frame.InviteThisPlayer
	}
	if existing.TakeOverSquad == -1 {
		existing.TakeOverSquad = frame.TakeOverSquad
	}
	// Continuous fields (movement, rotation, hand position, build
	// parameters) take the newest value rather than merging, since
	// they aren't edge-triggered.
	existing.Movement = frame.Movement
	existing.Rotation = frame.Rotation
	existing.HandPos = frame.HandPos
	existing.BuildType = frame.BuildType
	existing.BuildRotation = frame.BuildRotation
	q.pending[frame.Tick] = existing
}

// Take removes and returns the merged frame pending for tick, if any
// has been adopted for it yet.
func (q *MergeQueue) Take(tick uint64) (proto.InputFrame, bool) {
	frame, ok := q.pending[tick]
	if ok {
		delete(q.pending, tick)
	}
	return frame, ok
}

// Pending returns the number of ticks with a merged frame awaiting
// commit, exposed for the queue-depth metric.
func (q *MergeQueue) Pending() int {
	return len(q.pending)
}

func insertionSortByID(frames []proto.InputFrame) {
	for i := 1; i < len(frames); i++ {
		for j := i; j > 0 && frames[j].ID < frames[j-1].ID; j-- {
			frames[j], frames[j-1] = frames[j-1], frames[j]
		}
	}
}
