package physics

import (
	"github.com/ByteArena/box2d"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// CreatePivot creates a pivot (revolute) constraint joining bodyA and
// bodyB at worldAnchor, used for the merge-fusing "soft weld" while two
// grids align, and for any future hinged attachment.
func (w *World) CreatePivot(bodyA, bodyB BodyHandle, worldAnchor mathutil.Vec2) ConstraintHandle {
	a, okA := w.bodies[bodyA]
	b, okB := w.bodies[bodyB]
	if !okA || !okB {
		return NilConstraint
	}

	def := box2d.MakeB2RevoluteJointDef()
	def.Initialize(a, b, vecToB2(worldAnchor))
	joint := w.b2.CreateJoint(&def)

	handle := w.nextCons
	w.nextCons++
	w.constraints[handle] = joint
	return handle
}

// CreateWeld creates a weld constraint rigidly joining bodyA and bodyB
// at worldAnchor with no relative motion allowed. Used by landing gear
// to lock onto a compatible body, and by merges to fuse two grids into
// one rigid assembly.
func (w *World) CreateWeld(bodyA, bodyB BodyHandle, worldAnchor mathutil.Vec2) ConstraintHandle {
	a, okA := w.bodies[bodyA]
	b, okB := w.bodies[bodyB]
	if !okA || !okB {
		return NilConstraint
	}

	def := box2d.MakeB2WeldJointDef()
	def.Initialize(a, b, vecToB2(worldAnchor))
	joint := w.b2.CreateJoint(&def)

	handle := w.nextCons
	w.nextCons++
	w.constraints[handle] = joint
	return handle
}

// CreateSlide creates a prismatic (slide) constraint joining bodyA and
// bodyB, constrained to translate along axis through worldAnchor.
func (w *World) CreateSlide(bodyA, bodyB BodyHandle, worldAnchor, axis mathutil.Vec2) ConstraintHandle {
	a, okA := w.bodies[bodyA]
	b, okB := w.bodies[bodyB]
	if !okA || !okB {
		return NilConstraint
	}

	def := box2d.MakeB2PrismaticJointDef()
	def.Initialize(a, b, vecToB2(worldAnchor), vecToB2(axis))
	joint := w.b2.CreateJoint(&def)

	handle := w.nextCons
	w.nextCons++
	w.constraints[handle] = joint
	return handle
}

// DestroyConstraint removes a joint. Idempotent.
func (w *World) DestroyConstraint(h ConstraintHandle) {
	joint, ok := w.constraints[h]
	if !ok {
		return
	}
	w.b2.DestroyJoint(joint)
	delete(w.constraints, h)
}
