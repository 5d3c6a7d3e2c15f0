package rules

import (
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/physics"
	"github.com/orbitalrush/grid/internal/proto"
)

// PlayerMovementImpulse is the per-tick impulse magnitude applied to an
// unseated player's own body per unit of input.movement (§4.D phase 2).
const PlayerMovementImpulse = 8.0

// applyInputPhase is phase 1 + 2 of Step: for each connected slot, pull
// the frame committed for the current tick (zero input if missing),
// latch it onto the player entity, then apply its effects.
func applyInputPhase(st *State, dt float64) {
	for i := range st.Slots {
		slot := &st.Slots[i]
		if !slot.Connected || slot.Player.IsNil() {
			continue
		}
		player, ok := st.Store.Get(slot.Player)
		if !ok {
			continue
		}

		frame, found := slot.take(st.Tick)
		if !found {
			frame = proto.InputFrame{Tick: st.Tick, TakeOverSquad: -1}
		}

		player.Input = entities.PlayerInput{
			Thrust:      frame.Movement,
			Torque:      frame.Rotation,
			Fire:        false,
			Interact:    frame.InteractAction,
			BuildTarget: frame.HandPos,
			BuildBox:    frame.BuildType,
		}

		applyMovementAndTorque(st, player, dt)
		applySeatEdge(st, player, &frame, &slot.lastApplied)
		applyInteractEdge(st, player, &frame, &slot.lastApplied)
		if frame.DoBuild {
			applyBuild(st, player, &frame)
		}

		slot.lastApplied = frame
	}
}

func applyMovementAndTorque(st *State, player *entities.Entity, dt float64) {
	seated := !player.CurrentlyInsideOf.IsNil()
	if !seated {
		if player.Input.Thrust.LengthSq() > 0 && player.Body != physics.NilBody {
			impulse := player.Input.Thrust.Scale(PlayerMovementImpulse * dt)
			st.Physics.ApplyImpulse(player.Body, impulse, st.Physics.Position(player.Body))
		}
		return
	}

	cockpit, ok := st.Store.Get(player.CurrentlyInsideOf)
	if !ok || cockpit.BoxKind != entities.BoxCockpit {
		return
	}
	grid, ok := st.Store.Get(cockpit.ParentGrid)
	if !ok || grid.Body == physics.NilBody {
		return
	}
	if player.Input.Torque == 0 {
		return
	}
	if !gridHasGyroscope(st, cockpit.ParentGrid) {
		return
	}
	st.Physics.ApplyTorque(grid.Body, player.Input.Torque*st.Config.Physics.GyroscopeMaxTorque)
}

func gridHasGyroscope(st *State, grid entities.EntityID) bool {
	g, ok := st.Store.Get(grid)
	if !ok {
		return false
	}
	for _, boxID := range g.Boxes {
		box, ok := st.Store.Get(boxID)
		if ok && box.BoxKind == entities.BoxGyroscope && box.Damage < 1.0 {
			return true
		}
	}
	return false
}

// seatableBoxKinds are the BoxKinds a player can sit inside via
// SeatAction: a Cockpit for piloting, a Medbay for healing (updateMedbay
// only heals a box with PlayerInside set, which only the seat action
// ever sets).
var seatableBoxKinds = [...]entities.BoxKind{entities.BoxCockpit, entities.BoxMedbay}

// applySeatEdge seats/unseats a player on the rising edge of
// SeatAction. For each seatable kind the box nearest the hand is taken,
// skipped if occupied, and the player is seated in the closer remaining
// candidate within reach; unseating always succeeds.
func applySeatEdge(st *State, player *entities.Entity, frame *proto.InputFrame, prev *proto.InputFrame) {
	if !frame.SeatAction || prev.SeatAction {
		return
	}

	if !player.CurrentlyInsideOf.IsNil() {
		if box, ok := st.Store.Get(player.CurrentlyInsideOf); ok {
			box.PlayerInside = entities.Nil
		}
		player.CurrentlyInsideOf = entities.Nil
		return
	}

	target := entities.Nil
	bestDist := -1.0
	for _, kind := range seatableBoxKinds {
		id, dist := nearestBox(st, frame.HandPos, kind)
		if id.IsNil() {
			continue
		}
		if box, ok := st.Store.Get(id); !ok || !box.PlayerInside.IsNil() {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			target = id
		}
	}
	if target.IsNil() || bestDist > config.MaxHandReach {
		return
	}
	box, ok := st.Store.Get(target)
	if !ok {
		return
	}
	box.PlayerInside = playerIDOf(st, player)
	player.CurrentlyInsideOf = target
}

func playerIDOf(st *State, player *entities.Entity) entities.EntityID {
	id := entities.Nil
	st.Store.EachKind(entities.KindPlayer, func(candidateID entities.EntityID, e *entities.Entity) {
		if e == player {
			id = candidateID
		}
	})
	return id
}

func nearestBox(st *State, pos mathutil.Vec2, kind entities.BoxKind) (entities.EntityID, float64) {
	best := entities.Nil
	bestDist := -1.0
	st.Store.EachKind(entities.KindBox, func(id entities.EntityID, e *entities.Entity) {
		if e.BoxKind != kind {
			return
		}
		d := e.Position.Sub(pos).Length()
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = id
		}
	})
	return best, bestDist
}

// applyInteractEdge handles invite/accept/reject squad actions on
// their respective rising edges. Squad effects degrade silently (§7)
// if the target player has since disconnected.
func applyInteractEdge(st *State, player *entities.Entity, frame *proto.InputFrame, prev *proto.InputFrame) {
	if !frame.InviteThisPlayer.IsNil() && prev.InviteThisPlayer.IsNil() {
		if target, ok := st.Store.Get(frame.InviteThisPlayer); ok && target.Kind == entities.KindPlayer {
			target.SquadInvitedTo = player.PlayerSquad
		}
	}
	if frame.AcceptInvite && !prev.AcceptInvite {
		if player.SquadInvitedTo != entities.SquadNone {
			player.PlayerSquad = player.SquadInvitedTo
			player.SquadInvitedTo = entities.SquadNone
		}
	}
	if frame.RejectInvite && !prev.RejectInvite {
		player.SquadInvitedTo = entities.SquadNone
	}
	if frame.TakeOverSquad >= 0 {
		player.PlayerSquad = entities.Squad(frame.TakeOverSquad)
	}
}

// boxUnlocked reports whether player is allowed to build kind, the
// box_unlocked(type) gate of §4.D phase 2. Explosive is the only kind
// gated behind a per-player flag (mirroring the source's unlocked_bombs);
// every other kind is unlocked from the start.
func boxUnlocked(player *entities.Entity, kind entities.BoxKind) bool {
	if kind == entities.BoxExplosive {
		return player.UnlockedExplosives
	}
	return true
}

// applyBuild snaps hand_pos to the nearest grid cell (or spawns a new
// grid if none is near) and creates a Box of build_type there, subject
// to the target cell being empty, the player's box_unlocked(type) gate,
// and energy: building on a grid that already has at least one Box
// costs Config.Energy.BuildEnergyCost from that grid's battery, and
// fails silently if the battery can't cover it (§4.D phase 2, §7). A
// brand new grid's first Box is free, since nothing has a battery to
// draw from until one exists.
func applyBuild(st *State, player *entities.Entity, frame *proto.InputFrame) {
	if !frame.BuildType.Valid() {
		return
	}

	gridID, cellOffset := snapToGridOrNew(st, frame.HandPos)
	grid, ok := st.Store.Get(gridID)
	if !ok {
		return
	}
	for _, existing := range grid.Boxes {
		box, ok := st.Store.Get(existing)
		if ok && box.LocalOffset == cellOffset {
			return // cell occupied
		}
	}

	if !boxUnlocked(player, frame.BuildType) {
		return
	}

	if len(grid.Boxes) > 0 && !drainEnergy(st, gridID, st.Config.Energy.BuildEnergyCost) {
		return
	}

	boxID, err := st.Store.New(entities.KindBox)
	if err != nil {
		return // OutOfEntities: degrade silently this tick (§7)
	}
	box, _ := st.Store.Get(boxID)
	box.BoxKind = frame.BuildType
	box.ParentGrid = gridID
	box.LocalOffset = cellOffset
	box.CompassRotation = int(frame.BuildRotation)
	box.Position = grid.Position.Add(cellOffset)
	box.OwningSquad = player.PlayerSquad
	if grid.OwningSquad == entities.SquadNone {
		grid.OwningSquad = player.PlayerSquad
	}
	grid.Boxes = append(grid.Boxes, boxID)

	if grid.Body != physics.NilBody {
		st.Physics.AttachBox(grid.Body, mathutil.NewVec2(config.BoxSize/2, config.BoxSize/2), cellOffset, 1.0, 0.3)
	}
}

// snapToGridOrNew finds the nearest Grid within build range of pos and
// returns its id plus pos's cell offset in that grid's local frame; if
// none is close enough, a fresh Grid is created at pos.
func snapToGridOrNew(st *State, pos mathutil.Vec2) (entities.EntityID, mathutil.Vec2) {
	var nearest entities.EntityID
	nearestDist := -1.0
	st.Store.EachKind(entities.KindGrid, func(id entities.EntityID, e *entities.Entity) {
		d := e.Position.Sub(pos).Length()
		if nearestDist < 0 || d < nearestDist {
			nearestDist = d
			nearest = id
		}
	})

	if !nearest.IsNil() && nearestDist <= config.MaxHandReach {
		grid, _ := st.Store.Get(nearest)
		local := mathutil.GridSnap(pos, grid.Position, grid.Rotation, config.BoxSize)
		return nearest, local
	}

	id, err := st.Store.New(entities.KindGrid)
	if err != nil {
		return entities.Nil, mathutil.Zero()
	}
	grid, _ := st.Store.Get(id)
	grid.Position = pos
	grid.Body = st.Physics.CreateBody(physics.BodyDynamic, pos, 0)
	return id, mathutil.Zero()
}
