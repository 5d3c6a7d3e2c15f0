package proto

import (
	"github.com/orbitalrush/grid/internal/codec"
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// EntitySnapshot is the wire shape of entities.Entity: the fields below,
// present unconditionally, with the receiver expected to only look at
// the fields meaningful for Kind — the same flat tagged-union
// discipline the in-memory Entity struct follows (§3). Entity fields not
// listed here, among them LocalOffset, PlayerSquad, MissileOwningSquad,
// UnlockedExplosives and MissileChargeAccum, are not carried.
type EntitySnapshot struct {
	ID   entities.EntityID
	Kind entities.Kind

	Position        mathutil.Vec2
	Rotation        float64
	LinearVelocity  mathutil.Vec2
	AngularVelocity float64
	OwningSquad     uint8
	Damage          float64

	// Box
	BoxKind           entities.BoxKind
	ParentGrid        entities.EntityID
	CompassRotation   int32
	EnergyUsed        float64
	Thrust            float64
	SunAmount         float64
	CloakingPower     float64
	ScannerHeadRotate float64
	PlayerInside      entities.EntityID
	Indestructible    bool
	IsPlatonic        bool

	// Player
	CurrentlyInsideOf entities.EntityID
	SquadInvitedTo    uint8

	// Sun
	Radius    float64
	Mass      float64
	SunIsSafe bool

	// Missile / Explosion
	BurnRemaining     float64
	ExplosionProgress float64
	ExplosionRadius   float64
}

func (e *EntitySnapshot) Visit(s *codec.SerState) codec.Result {
	if r := s.EntityID(&e.ID); r.Failed {
		return r
	}
	var kind uint8
	if s.Mode() == codec.ModeEncode {
		kind = uint8(e.Kind)
	}
	if r := s.U8(&kind); r.Failed {
		return r
	}
	if s.Mode() == codec.ModeDecode {
		if kind > uint8(entities.KindOrb) {
			return codec.Result{Failed: true, Expr: "EntitySnapshot.Kind out of range"}
		}
		e.Kind = entities.Kind(kind)
	}

	fields := []func() codec.Result{
		func() codec.Result { return s.Vec2(&e.Position) },
		func() codec.Result { return s.F64(&e.Rotation) },
		func() codec.Result { return s.Vec2(&e.LinearVelocity) },
		func() codec.Result { return s.F64(&e.AngularVelocity) },
		func() codec.Result { return s.U8(&e.OwningSquad) },
		func() codec.Result { return s.F64(&e.Damage) },
	}
	for _, f := range fields {
		if r := f(); r.Failed {
			return r
		}
	}

	var boxKind uint8
	if s.Mode() == codec.ModeEncode {
		boxKind = uint8(e.BoxKind)
	}
	if r := s.U8(&boxKind); r.Failed {
		return r
	}
	if s.Mode() == codec.ModeDecode {
		e.BoxKind = entities.BoxKind(boxKind)
	}

	boxFields := []func() codec.Result{
		func() codec.Result { return s.EntityID(&e.ParentGrid) },
		func() codec.Result { return s.I32(&e.CompassRotation) },
		func() codec.Result { return s.F64(&e.EnergyUsed) },
		func() codec.Result { return s.F64(&e.Thrust) },
		func() codec.Result { return s.F64(&e.SunAmount) },
		func() codec.Result { return s.F64(&e.CloakingPower) },
		func() codec.Result { return s.F64(&e.ScannerHeadRotate) },
		func() codec.Result { return s.OptionalEntityID(&e.PlayerInside) },
		func() codec.Result { return s.Bool(&e.Indestructible) },
		func() codec.Result { return s.Bool(&e.IsPlatonic) },
		func() codec.Result { return s.OptionalEntityID(&e.CurrentlyInsideOf) },
		func() codec.Result { return s.U8(&e.SquadInvitedTo) },
		func() codec.Result { return s.F64(&e.Radius) },
		func() codec.Result { return s.F64(&e.Mass) },
		func() codec.Result { return s.Bool(&e.SunIsSafe) },
		func() codec.Result { return s.F64(&e.BurnRemaining) },
		func() codec.Result { return s.F64(&e.ExplosionProgress) },
		func() codec.Result { return s.F64(&e.ExplosionRadius) },
	}
	for _, f := range boxFields {
		if r := f(); r.Failed {
			return r
		}
	}
	return codec.Result{}
}

// PlayerSlotSnapshot is one row of the fixed-size player slot table,
// mapping a connection slot to the Player entity occupying it.
type PlayerSlotSnapshot struct {
	Connected bool
	Player    entities.EntityID
}

func (p *PlayerSlotSnapshot) Visit(s *codec.SerState) codec.Result {
	if r := s.Bool(&p.Connected); r.Failed {
		return r
	}
	return s.EntityID(&p.Player)
}

// GameStateSnapshot is the wire shape of the full authoritative state:
// tick, every live entity, and the player slot table.
type GameStateSnapshot struct {
	Tick     uint64
	Entities []EntitySnapshot
	Slots    [config.MaxPlayers]PlayerSlotSnapshot
}

func (g *GameStateSnapshot) Visit(s *codec.SerState) codec.Result {
	if r := s.U64(&g.Tick); r.Failed {
		return r
	}

	var count uint32
	if s.Mode() == codec.ModeEncode {
		count = uint32(len(g.Entities))
	}
	if r := s.Len(&count); r.Failed {
		return r
	}
	if count > config.MaxEntities {
		return codec.Result{Failed: true, Expr: "GameStateSnapshot.Entities exceeds MaxEntities"}
	}
	if s.Mode() == codec.ModeDecode {
		g.Entities = make([]EntitySnapshot, count)
	}
	for i := range g.Entities {
		if r := g.Entities[i].Visit(s); r.Failed {
			return r
		}
	}

	for i := range g.Slots {
		if r := g.Slots[i].Visit(s); r.Failed {
			return r
		}
	}
	return codec.Result{}
}
