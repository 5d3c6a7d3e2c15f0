package rules

import (
	"math"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/physics"
)

// subsystemPhase runs phase 3 of Step: every Box subsystem update,
// visiting each live Box once and dispatching on BoxKind. Per-box
// energy bookkeeping is clamped against a shared per-grid battery pool.
func subsystemPhase(st *State, dt float64) {
	cfg := st.Config

	st.Store.EachKind(entities.KindBox, func(id entities.EntityID, box *entities.Entity) {
		if box.Damage >= 1.0 {
			return
		}
		switch box.BoxKind {
		case entities.BoxBattery:
			box.EnergyUsed = clamp(box.EnergyUsed, 0, config.BatteryCapacity)
		case entities.BoxSolarPanel:
			updateSolarPanel(st, box, dt)
		case entities.BoxThruster:
			updateThruster(st, box, dt, cfg.Physics.ThrusterMaxForce, cfg.Energy.ThrusterDrainRate)
		case entities.BoxGyroscope:
			updateGyroscope(st, box, dt, cfg.Energy.GyroscopeDrainRate)
		case entities.BoxMedbay:
			updateMedbay(st, box, dt, cfg.Energy.MedbayHealRate)
		case entities.BoxCloaking:
			updateCloaking(st, box, dt, cfg.Energy.CloakingDrainRate)
		case entities.BoxMissileLauncher:
			updateMissileLauncher(st, id, box, dt, cfg.Missile.ChargeRate)
		case entities.BoxScanner:
			updateScanner(st, id, box, dt)
		case entities.BoxLandingGear:
			updateLandingGear(st, box)
		case entities.BoxMerge:
			updateMerge(st, id, box)
		}
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// gridBattery returns the first Battery box on grid, or nil
// if the grid has none — energy transactions against a missing
// battery degrade silently (§7).
func gridBattery(st *State, gridID entities.EntityID) *entities.Entity {
	grid, ok := st.Store.Get(gridID)
	if !ok {
		return nil
	}
	for _, boxID := range grid.Boxes {
		box, ok := st.Store.Get(boxID)
		if ok && box.BoxKind == entities.BoxBattery {
			return box
		}
	}
	return nil
}

// drainEnergy removes amount from grid's battery, returning false
// (and draining nothing) if the battery can't fully cover it.
func drainEnergy(st *State, gridID entities.EntityID, amount float64) bool {
	battery := gridBattery(st, gridID)
	if battery == nil || battery.EnergyUsed < amount {
		return false
	}
	battery.EnergyUsed -= amount
	return true
}

func depositEnergy(st *State, gridID entities.EntityID, amount float64) {
	battery := gridBattery(st, gridID)
	if battery == nil {
		return
	}
	battery.EnergyUsed = clamp(battery.EnergyUsed+amount, 0, config.BatteryCapacity)
}

// facingVector returns the world-space unit vector box faces, derived
// from its grid's rotation plus the box's own compass rotation.
func facingVector(st *State, box *entities.Entity) mathutil.Vec2 {
	grid, ok := st.Store.Get(box.ParentGrid)
	rotation := 0.0
	if ok {
		rotation = grid.Rotation
	}
	return mathutil.FromAngle(rotation + mathutil.CompassToRadians(box.CompassRotation))
}

func updateSolarPanel(st *State, box *entities.Entity, dt float64) {
	best := 0.0
	st.Store.EachKind(entities.KindSun, func(_ entities.EntityID, sun *entities.Entity) {
		toSun := sun.Position.Sub(box.Position)
		dist := toSun.Length()
		if dist <= 0 {
			return
		}
		hit := st.Physics.RayCast(box.Position, toSun, dist)
		if hit.Hit && hit.Fraction < 0.99 {
			return // occluded
		}
		facing := facingVector(st, box)
		alignment := facing.Dot(toSun.Normalize())
		if alignment <= 0 {
			return
		}
		intensity := alignment * (sun.Radius * sun.Radius) / (dist * dist)
		if intensity > best {
			best = intensity
		}
	})
	box.SunAmount = clamp(best, 0, 1)
	depositEnergy(st, box.ParentGrid, box.SunAmount*st.Config.Energy.SolarChargeRate*dt)
}

func updateThruster(st *State, box *entities.Entity, dt, maxForce, drainRate float64) {
	if box.Thrust <= 0 {
		return
	}
	cost := box.Thrust * drainRate * dt
	if !drainEnergy(st, box.ParentGrid, cost) {
		box.Thrust = 0
		return
	}
	box.EnergyUsed += cost
	grid, ok := st.Store.Get(box.ParentGrid)
	if !ok || grid.Body == physics.NilBody {
		return
	}
	force := facingVector(st, box).Scale(box.Thrust * maxForce)
	st.Physics.ApplyForce(grid.Body, force, st.Physics.Position(grid.Body))
}

func updateGyroscope(st *State, box *entities.Entity, dt, drainRate float64) {
	grid, ok := st.Store.Get(box.ParentGrid)
	if !ok || grid.AngularVelocity == 0 {
		return
	}
	cost := drainRate * dt
	if drainEnergy(st, box.ParentGrid, cost) {
		box.EnergyUsed += cost
	}
}

func updateMedbay(st *State, box *entities.Entity, dt, healRate float64) {
	if box.PlayerInside.IsNil() {
		return
	}
	patient, ok := st.Store.Get(box.PlayerInside)
	if !ok {
		box.PlayerInside = entities.Nil
		return
	}
	if !drainEnergy(st, box.ParentGrid, healRate*dt) {
		return
	}
	patient.Damage = clamp(patient.Damage-healRate*dt, 0, 1)
}

func updateCloaking(st *State, box *entities.Entity, dt, drainRate float64) {
	if box.CloakingPower >= 1.0 {
		return
	}
	cost := drainRate * dt
	if !drainEnergy(st, box.ParentGrid, cost) {
		return
	}
	box.EnergyUsed += cost
	box.CloakingPower = clamp(box.CloakingPower+dt, 0, 1)
}

func updateMissileLauncher(st *State, launcherID entities.EntityID, box *entities.Entity, dt, chargeRate float64) {
	box.MissileChargeAccum += chargeRate * dt
	if box.MissileChargeAccum < 1.0 {
		return
	}
	targetID, dist := nearestEnemyGrid(st, box)
	if targetID.IsNil() || dist > config.MissileRange {
		return
	}
	spawnMissile(st, launcherID, box, targetID)
	box.MissileChargeAccum = 0
}

func nearestEnemyGrid(st *State, box *entities.Entity) (entities.EntityID, float64) {
	best := entities.Nil
	bestDist := -1.0
	st.Store.EachKind(entities.KindGrid, func(id entities.EntityID, grid *entities.Entity) {
		if grid.OwningSquad == box.OwningSquad {
			return
		}
		if isCloaked(st, grid, box.OwningSquad) {
			return
		}
		d := grid.Position.Sub(box.Position).Length()
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = id
		}
	})
	return best, bestDist
}

// entitySquad returns e's owning squad, accounting for Missile's own
// MissileOwningSquad field rather than the universal OwningSquad (§3).
func entitySquad(e *entities.Entity) entities.Squad {
	if e.Kind == entities.KindMissile {
		return e.MissileOwningSquad
	}
	return e.OwningSquad
}

// isCloaked reports whether target is concealed from viewerSquad: it
// belongs to some other, non-neutral squad and lies within
// config.CloakingRadius of one of that squad's fully-active Cloaking
// boxes (§4.D: cloaking "hides friendly missiles and scanner returns
// within radius").
func isCloaked(st *State, target *entities.Entity, viewerSquad entities.Squad) bool {
	targetSquad := entitySquad(target)
	if targetSquad == entities.SquadNone || targetSquad == viewerSquad {
		return false
	}
	hidden := false
	st.Store.EachKind(entities.KindBox, func(_ entities.EntityID, box *entities.Entity) {
		if hidden || box.BoxKind != entities.BoxCloaking || box.CloakingPower < 1.0 {
			return
		}
		if box.OwningSquad != targetSquad {
			return
		}
		if box.Position.Sub(target.Position).Length() <= config.CloakingRadius {
			hidden = true
		}
	})
	return hidden
}

func spawnMissile(st *State, launcherID entities.EntityID, launcher *entities.Entity, target entities.EntityID) {
	id, err := st.Store.New(entities.KindMissile)
	if err != nil {
		return
	}
	missile, _ := st.Store.Get(id)
	missile.Position = launcher.Position
	missile.MissileOwningSquad = entities.Squad(launcher.OwningSquad)
	missile.BurnRemaining = st.Config.Missile.BurnDuration
	missile.Body = st.Physics.CreateBody(physics.BodyDynamic, missile.Position, facingAngle(st, launcher))

	targetEntity, ok := st.Store.Get(target)
	direction := mathutil.FromAngle(missile.Rotation)
	if ok {
		direction = targetEntity.Position.Sub(missile.Position).Normalize()
	}
	missile.LinearVelocity = direction.Scale(20)
	st.Physics.SetLinearVelocity(missile.Body, missile.LinearVelocity)
}

func facingAngle(st *State, box *entities.Entity) float64 {
	v := facingVector(st, box)
	return math.Atan2(v.Y, v.X)
}

func updateScanner(st *State, scannerID entities.EntityID, box *entities.Entity, dt float64) {
	box.ScannerHeadRotate = mathutil.NormalizeAngle(box.ScannerHeadRotate + dt)

	box.ScannerPointsLen = 0
	st.Store.Each(func(id entities.EntityID, other *entities.Entity) {
		if id == scannerID || box.ScannerPointsLen >= config.ScannerMaxPoints {
			return
		}
		toOther := other.Position.Sub(box.Position)
		dist := toOther.Length()
		if dist > config.ScannerRadius || dist == 0 {
			return
		}
		otherSquad := entitySquad(other)
		if otherSquad != box.OwningSquad && otherSquad != entities.SquadNone && isCloaked(st, other, box.OwningSquad) {
			return
		}
		tag := entities.ScannerTagNeutral
		switch {
		case other.IsPlatonic:
			tag = entities.ScannerTagPlatonic
		case otherSquad != box.OwningSquad && otherSquad != entities.SquadNone:
			tag = entities.ScannerTagEnemy
		}
		box.ScannerPoints[box.ScannerPointsLen] = entities.ScannerPoint{
			Target: id, Direction: toOther.Normalize(), Distance: dist, Tag: tag,
		}
		box.ScannerPointsLen++
	})

	box.DetectedPlatonicsLen = 0
	st.Store.Each(func(id entities.EntityID, other *entities.Entity) {
		if !other.IsPlatonic || box.DetectedPlatonicsLen >= config.ScannerMaxPlatonics {
			return
		}
		toOther := other.Position.Sub(box.Position)
		dist := toOther.Length()
		if dist == 0 {
			return
		}
		box.DetectedPlatonics[box.DetectedPlatonicsLen] = entities.PlatonicPing{
			Target: id, Direction: toOther.Normalize(), Intensity: 1.0 / (1.0 + dist),
		}
		box.DetectedPlatonicsLen++
	})
}

// updateLandingGear welds onto the nearest compatible body once it's
// close and slow-moving relative to the gear's own grid. Nothing in the
// step clears LandedConstraint or releases the weld; the weld goes away
// only when the gear box itself is destroyed.
func updateLandingGear(st *State, box *entities.Entity) {
	if box.LandedConstraint != physics.NilConstraint {
		return
	}
	grid, ok := st.Store.Get(box.ParentGrid)
	if !ok || grid.Body == physics.NilBody {
		return
	}
	nearBody, found := st.Physics.NearestBody(box.Position, 1.5)
	if !found || nearBody == grid.Body {
		return
	}
	relVel := st.Physics.LinearVelocity(grid.Body).Sub(st.Physics.LinearVelocity(nearBody)).Length()
	if relVel > 0.5 {
		return
	}
	box.LandedConstraint = st.Physics.CreateWeld(grid.Body, nearBody, box.Position)
}

// updateMerge fuses box's grid with the grid of the nearest Merge box on
// another grid lying within 1.1 box sizes. Only that distance is
// checked; relative velocity and alignment of the two boxes are not.
func updateMerge(st *State, mergeID entities.EntityID, box *entities.Entity) {
	grid, ok := st.Store.Get(box.ParentGrid)
	if !ok || grid.Body == physics.NilBody {
		return
	}
	var partner entities.EntityID
	bestDist := -1.0
	st.Store.EachKind(entities.KindBox, func(id entities.EntityID, other *entities.Entity) {
		if id == mergeID || other.BoxKind != entities.BoxMerge || other.ParentGrid == box.ParentGrid {
			return
		}
		d := other.Position.Sub(box.Position).Length()
		if d > config.BoxSize*1.1 {
			return
		}
		if bestDist < 0 || d < bestDist {
			bestDist = d
			partner = id
		}
	})
	if partner.IsNil() {
		return
	}
	partnerBox, _ := st.Store.Get(partner)
	partnerGrid, ok := st.Store.Get(partnerBox.ParentGrid)
	if !ok || partnerGrid.Body == physics.NilBody {
		return
	}
	st.Physics.CreateWeld(grid.Body, partnerGrid.Body, box.Position)
}
