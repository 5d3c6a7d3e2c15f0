// Package physics is a narrow facade over github.com/ByteArena/box2d,
// the rigid-body engine used to step ship hulls, boxes, and free
// bodies. Callers never touch box2d types directly: everything is
// addressed by BodyHandle/ConstraintHandle, mirroring the generational
// addressing used by internal/entities so that the simulation layer
// never needs an import on the physics engine's own types.
package physics

import (
	"github.com/ByteArena/box2d"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// BodyHandle addresses a rigid body created through World.
type BodyHandle uint32

// ConstraintHandle addresses a joint (pivot/slide/weld) created through World.
type ConstraintHandle uint32

// NilBody and NilConstraint are the zero handles, never returned by a
// successful Create call.
const (
	NilBody       BodyHandle       = 0
	NilConstraint ConstraintHandle = 0
)

// World wraps a box2d.B2World plus the handle tables needed to expose
// a narrow, engine-agnostic API to the simulation step function.
type World struct {
	b2 box2d.B2World

	bodies      map[BodyHandle]*box2d.B2Body
	nextBody    BodyHandle
	constraints map[ConstraintHandle]box2d.B2JointInterface
	nextCons    ConstraintHandle
}

// VelocityIterations and PositionIterations are the box2d solver
// iteration counts used by World.Step. These affect constraint
// stiffness, not correctness, and are fixed so that stepping the same
// inputs on one machine is deterministic (§4.B).
const (
	VelocityIterations = 8
	PositionIterations = 3
)

// NewWorld creates a physics world with no global gravity; per-entity
// gravity from Suns is applied explicitly by internal/rules each tick
// rather than through box2d's built-in uniform gravity field.
func NewWorld() *World {
	w := &World{
		b2:          box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)),
		bodies:      make(map[BodyHandle]*box2d.B2Body),
		nextBody:    1,
		constraints: make(map[ConstraintHandle]box2d.B2JointInterface),
		nextCons:    1,
	}
	return w
}

// Step advances the physics world by dt seconds using the fixed solver
// iteration counts above.
func (w *World) Step(dt float64) {
	w.b2.Step(dt, VelocityIterations, PositionIterations)
}

func vecToB2(v mathutil.Vec2) box2d.B2Vec2 {
	return box2d.MakeB2Vec2(v.X, v.Y)
}

func vecFromB2(v box2d.B2Vec2) mathutil.Vec2 {
	return mathutil.NewVec2(v.X, v.Y)
}

func (w *World) body(h BodyHandle) *box2d.B2Body {
	return w.bodies[h]
}
