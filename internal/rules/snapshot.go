package rules

import (
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/physics"
	"github.com/orbitalrush/grid/internal/proto"
)

// ToSnapshot captures st's wire-visible state as a proto.GameStateSnapshot
// (§4.E/§4.F): every live entity's networked fields, and the player slot
// table. Entity fields absent from proto.EntitySnapshot are left off the
// wire: physics handles, the Grid->Box index and scanner sweep results,
// and also LocalOffset, PlayerSquad and MissileOwningSquad, among others; a
// receiver reconstructs Boxes by scanning for matching ParentGrid.
func ToSnapshot(st *State) proto.GameStateSnapshot {
	snap := proto.GameStateSnapshot{Tick: st.Tick}

	st.Store.Each(func(id entities.EntityID, e *entities.Entity) {
		snap.Entities = append(snap.Entities, entitySnapshotOf(id, e))
	})

	for i := range st.Slots {
		snap.Slots[i] = proto.PlayerSlotSnapshot{
			Connected: st.Slots[i].Connected,
			Player:    st.Slots[i].Player,
		}
	}
	return snap
}

func entitySnapshotOf(id entities.EntityID, e *entities.Entity) proto.EntitySnapshot {
	return proto.EntitySnapshot{
		ID:              id,
		Kind:            e.Kind,
		Position:        e.Position,
		Rotation:        e.Rotation,
		LinearVelocity:  e.LinearVelocity,
		AngularVelocity: e.AngularVelocity,
		OwningSquad:     uint8(e.OwningSquad),
		Damage:          e.Damage,

		BoxKind:           e.BoxKind,
		ParentGrid:        e.ParentGrid,
		CompassRotation:   int32(e.CompassRotation),
		EnergyUsed:        e.EnergyUsed,
		Thrust:            e.Thrust,
		SunAmount:         e.SunAmount,
		CloakingPower:     e.CloakingPower,
		ScannerHeadRotate: e.ScannerHeadRotate,
		PlayerInside:      e.PlayerInside,
		Indestructible:    e.Indestructible,
		IsPlatonic:        e.IsPlatonic,

		CurrentlyInsideOf: e.CurrentlyInsideOf,
		SquadInvitedTo:    uint8(e.SquadInvitedTo),

		Radius:    e.Radius,
		Mass:      e.Mass,
		SunIsSafe: e.SunIsSafe,

		BurnRemaining:     e.BurnRemaining,
		ExplosionProgress: e.ExplosionProgress,
		ExplosionRadius:   e.ExplosionRadius,
	}
}

// ApplySnapshot replaces st's entities and slot table with the contents
// of snap, as the client does on reconciliation (§4.G step 3: replace
// local GameState with the decoded one before replaying queued input).
// A snapshot carries no physics handle and no body is created here:
// every restored entity has Body == physics.NilBody. Grid->Box indices are rebuilt from each
// Box's ParentGrid rather than carried on the wire.
func ApplySnapshot(st *State, snap *proto.GameStateSnapshot, world *physics.World) {
	st.Tick = snap.Tick
	st.Store = entities.NewStore()
	st.Physics = world

	idToEntity := make(map[entities.EntityID]*entities.Entity, len(snap.Entities))
	for _, es := range snap.Entities {
		id, err := st.Store.NewAt(es.ID)
		if err != nil {
			continue
		}
		e, _ := st.Store.Get(id)
		applyEntitySnapshot(e, &es)
		idToEntity[id] = e
	}

	for id, e := range idToEntity {
		if e.Kind != entities.KindBox || e.ParentGrid.IsNil() {
			continue
		}
		if grid, ok := idToEntity[e.ParentGrid]; ok {
			grid.Boxes = append(grid.Boxes, id)
		}
	}

	for i := range st.Slots {
		st.Slots[i].Connected = snap.Slots[i].Connected
		st.Slots[i].Player = snap.Slots[i].Player
	}
}

func applyEntitySnapshot(e *entities.Entity, es *proto.EntitySnapshot) {
	e.Kind = es.Kind
	e.Position = es.Position
	e.Rotation = es.Rotation
	e.LinearVelocity = es.LinearVelocity
	e.AngularVelocity = es.AngularVelocity
	e.OwningSquad = entities.Squad(es.OwningSquad)
	e.Damage = es.Damage

	e.BoxKind = es.BoxKind
	e.ParentGrid = es.ParentGrid
	e.CompassRotation = int(es.CompassRotation)
	e.EnergyUsed = es.EnergyUsed
	e.Thrust = es.Thrust
	e.SunAmount = es.SunAmount
	e.CloakingPower = es.CloakingPower
	e.ScannerHeadRotate = es.ScannerHeadRotate
	e.PlayerInside = es.PlayerInside
	e.Indestructible = es.Indestructible
	e.IsPlatonic = es.IsPlatonic

	e.CurrentlyInsideOf = es.CurrentlyInsideOf
	e.SquadInvitedTo = entities.Squad(es.SquadInvitedTo)

	e.Radius = es.Radius
	e.Mass = es.Mass
	e.SunIsSafe = es.SunIsSafe

	e.BurnRemaining = es.BurnRemaining
	e.ExplosionProgress = es.ExplosionProgress
	e.ExplosionRadius = es.ExplosionRadius
}
