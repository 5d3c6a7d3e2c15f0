package rules

import (
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/entities"
	"github.com/orbitalrush/grid/internal/physics"
)

// missilePhase is phase 4 of Step: burning missiles thrust forward and
// detonate on contact or timeout, producing an Explosion entity.
func missilePhase(st *State, dt float64) {
	var toDetonate []entities.EntityID

	st.Store.EachKind(entities.KindMissile, func(id entities.EntityID, missile *entities.Entity) {
		missile.BurnRemaining -= dt
		if missile.Body != physics.NilBody {
			forward := missile.LinearVelocity.Normalize()
			st.Physics.ApplyForce(missile.Body, forward.Scale(st.Config.Missile.BurnAcceleration), st.Physics.Position(missile.Body))
			missile.Position = st.Physics.Position(missile.Body)
		}

		if missile.BurnRemaining <= 0 {
			toDetonate = append(toDetonate, id)
			return
		}

		hit, found := st.Physics.NearestBody(missile.Position, st.Config.Missile.DetonationRadius)
		if found && hit != missile.Body {
			toDetonate = append(toDetonate, id)
		}
	})

	for _, id := range toDetonate {
		detonate(st, id)
	}
}

func detonate(st *State, missileID entities.EntityID) {
	missile, ok := st.Store.Get(missileID)
	if !ok {
		return
	}
	pos := missile.Position

	explosionID, err := st.Store.New(entities.KindExplosion)
	if err == nil {
		explosion, _ := st.Store.Get(explosionID)
		explosion.Position = pos
		explosion.ExplosionRadius = st.Config.Missile.DetonationRadius * 3
		explosion.ExplosionProgress = 0
	}

	st.Store.Destroy(missileID, entities.ReleasePhysics(st.Physics))
}

// explosionPhase is phase 5 of Step: advance each Explosion's
// progress, apply impulse and damage to nearby entities once (on the
// tick it first overlaps), and destroy explosions whose progress has
// run out.
func explosionPhase(st *State, dt float64) {
	var toDestroy []entities.EntityID

	st.Store.EachKind(entities.KindExplosion, func(id entities.EntityID, explosion *entities.Entity) {
		wasFresh := explosion.ExplosionProgress == 0
		explosion.ExplosionProgress += dt
		if wasFresh {
			applyExplosionEffects(st, explosion)
		}
		if explosion.ExplosionProgress >= config.ExplosionTime {
			toDestroy = append(toDestroy, id)
		}
	})

	for _, id := range toDestroy {
		st.Store.Destroy(id, nil)
	}
}

func applyExplosionEffects(st *State, explosion *entities.Entity) {
	st.Store.Each(func(id entities.EntityID, e *entities.Entity) {
		if e == explosion || e.Kind == entities.KindExplosion {
			return
		}
		toTarget := e.Position.Sub(explosion.Position)
		dist := toTarget.Length()
		if dist > explosion.ExplosionRadius {
			return
		}
		falloff := 1.0
		if dist > 0 {
			falloff = 1.0 - dist/explosion.ExplosionRadius
		}
		if e.Body != physics.NilBody {
			impulse := toTarget.Normalize().Scale(st.Config.Missile.ExplosionImpulse * falloff)
			st.Physics.ApplyImpulse(e.Body, impulse, e.Position)
		}
		if !boolPtrIndestructible(e) {
			e.Damage = clamp(e.Damage+st.Config.Missile.ExplosionMaxDamage*falloff, 0, 1)
		}
	})
}

func boolPtrIndestructible(e *entities.Entity) bool {
	return e.Kind == entities.KindBox && e.Indestructible
}
