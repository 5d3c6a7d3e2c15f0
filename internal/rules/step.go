package rules

import (
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/physics"
)

// Step advances st by one fixed timestep, in the ten ordered phases
// of §4.D. Step is pure with respect to st: every mutation happens
// through st's own Store/Physics/Slots, with no package-level hidden
// state, generalized from a single ship/sun pair to the full entity
// arena.
func Step(st *State, dt float64) {
	applyInputPhase(st, dt)
	subsystemPhase(st, dt)
	missilePhase(st, dt)
	explosionPhase(st, dt)
	sunInteractionPhase(st, dt)
	damagePhase(st)
	boundaryPhase(st)
	st.Physics.Step(dt)
	st.Tick++
}

// sunInteractionPhase is phase 6: every entity feels gravity from
// every Sun, and takes ramping damage if within a Sun's lethal radius
// while that Sun isn't marked safe.
func sunInteractionPhase(st *State, dt float64) {
	st.Store.EachKind(entities.KindSun, func(_ entities.EntityID, sun *entities.Entity) {
		applyGravityFromSun(st, sun)
		if sun.SunIsSafe {
			return
		}
		applyLethalRadiusDamage(st, sun, dt)
	})
}

func applyGravityFromSun(st *State, sun *entities.Entity) {
	st.Store.Each(func(_ entities.EntityID, e *entities.Entity) {
		if e == sun || e.Body == physics.NilBody {
			return
		}
		toSun := sun.Position.Sub(e.Position)
		distSq := toSun.LengthSq()
		if distSq < 1e-6 {
			return
		}
		g := st.Config.Physics.GravitationalConstant
		accelMag := g * sun.Mass / distSq
		if accelMag > st.Config.Physics.MaxGravityAccel {
			accelMag = st.Config.Physics.MaxGravityAccel
		}
		mass := st.Physics.Mass(e.Body)
		if mass <= 0 {
			mass = 1
		}
		force := toSun.Normalize().Scale(accelMag * mass)
		st.Physics.ApplyForce(e.Body, force, e.Position)
	})
}

func applyLethalRadiusDamage(st *State, sun *entities.Entity, dt float64) {
	st.Store.Each(func(_ entities.EntityID, e *entities.Entity) {
		if e == sun {
			return
		}
		dist := e.Position.Sub(sun.Position).Length()
		if dist > sun.Radius {
			return
		}
		ramp := 1.0 - dist/sun.Radius
		e.Damage = clamp(e.Damage+ramp*dt, 0, 1)
	})
}

// damagePhase is phase 7: destroys any Box or Grid whose Damage has
// reached 1.0 in this tick's input/subsystem/missile/sun phases,
// cascading a Grid's destruction onto all of its remaining child Boxes
// and destroying any Grid left with zero Boxes afterward (§3:
// "destroying a Grid destroys all its Boxes in the same step"). A Box
// marked Indestructible never dies from its own Damage, only from its
// parent Grid being destroyed out from under it.
func damagePhase(st *State) {
	var destroyedGrids []entities.EntityID
	st.Store.EachKind(entities.KindGrid, func(id entities.EntityID, grid *entities.Entity) {
		if grid.Damage >= 1.0 {
			destroyedGrids = append(destroyedGrids, id)
		}
	})
	destroyedGridSet := make(map[entities.EntityID]bool, len(destroyedGrids))
	for _, id := range destroyedGrids {
		destroyedGridSet[id] = true
	}

	var destroyedBoxes []entities.EntityID
	st.Store.EachKind(entities.KindBox, func(id entities.EntityID, box *entities.Entity) {
		if destroyedGridSet[box.ParentGrid] || (box.Damage >= 1.0 && !box.Indestructible) {
			destroyedBoxes = append(destroyedBoxes, id)
		}
	})
	for _, id := range destroyedBoxes {
		box, ok := st.Store.Get(id)
		if !ok {
			continue
		}
		parentID := box.ParentGrid
		if box.LandedConstraint != physics.NilConstraint {
			st.Physics.DestroyConstraint(box.LandedConstraint)
		}
		st.Store.Destroy(id, nil)
		removeBoxFromGrid(st, parentID, id)
	}

	for _, id := range destroyedGrids {
		st.Store.Destroy(id, entities.ReleasePhysics(st.Physics))
	}

	var emptied []entities.EntityID
	st.Store.EachKind(entities.KindGrid, func(id entities.EntityID, grid *entities.Entity) {
		if len(grid.Boxes) == 0 {
			emptied = append(emptied, id)
		}
	})
	for _, id := range emptied {
		st.Store.Destroy(id, entities.ReleasePhysics(st.Physics))
	}
}

func removeBoxFromGrid(st *State, gridID, boxID entities.EntityID) {
	grid, ok := st.Store.Get(gridID)
	if !ok {
		return
	}
	for i, id := range grid.Boxes {
		if id == boxID {
			grid.Boxes = append(grid.Boxes[:i], grid.Boxes[i+1:]...)
			return
		}
	}
}

// boundaryPhase is phase 8: destroy any entity past the world's
// instant-death radius from the origin.
func boundaryPhase(st *State) {
	var toDestroy []entities.EntityID
	st.Store.Each(func(id entities.EntityID, e *entities.Entity) {
		if e.Position.Length() > config.InstantDeathDistanceFromCenter {
			toDestroy = append(toDestroy, id)
		}
	})
	for _, id := range toDestroy {
		st.Store.Destroy(id, entities.ReleasePhysics(st.Physics))
	}
}
