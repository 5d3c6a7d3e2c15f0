package physics

import (
	"github.com/ByteArena/box2d"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// BodyKind selects static vs. dynamic box2d body types.
type BodyKind uint8

const (
	BodyDynamic BodyKind = iota
	BodyStatic
	BodyKinematic
)

func (k BodyKind) b2Type() box2d.B2BodyType {
	switch k {
	case BodyStatic:
		return box2d.B2BodyType_B2_staticBody
	case BodyKinematic:
		return box2d.B2BodyType_B2_kinematicBody
	default:
		return box2d.B2BodyType_B2_dynamicBody
	}
}

// CreateBody creates a rigid body with no shapes attached yet at the
// given position and rotation (radians). Shapes are attached
// separately via AttachBox so that a Grid's child Boxes can be added
// incrementally as they're built.
func (w *World) CreateBody(kind BodyKind, pos mathutil.Vec2, rotation float64) BodyHandle {
	def := box2d.MakeB2BodyDef()
	def.Type = kind.b2Type()
	def.Position = vecToB2(pos)
	def.Angle = rotation
	def.AllowSleep = true

	b2body := w.b2.CreateBody(&def)

	handle := w.nextBody
	w.nextBody++
	w.bodies[handle] = b2body
	return handle
}

// DestroyBody removes a body and every fixture/joint attached to it.
// Idempotent: destroying an already-destroyed or unknown handle is a
// no-op, matching the entity store's idempotent Destroy contract.
func (w *World) DestroyBody(h BodyHandle) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	w.b2.DestroyBody(body)
	delete(w.bodies, h)
}

// AttachBox attaches a box-shaped fixture of the given half-extents,
// centered at localOffset in the body's local frame (used to place a
// Box at its grid-cell offset from the Grid's rigid-body origin).
// density and friction follow box2d's usual fixture semantics; mass
// and moment of inertia are derived from them by box2d, not set
// directly, so that composite grids (many boxes on one body) get a
// physically consistent combined mass.
func (w *World) AttachBox(h BodyHandle, halfExtents, localOffset mathutil.Vec2, density, friction float64) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	shape := box2d.NewB2PolygonShape()
	shape.SetAsBoxOffsetCenterAngle(halfExtents.X, halfExtents.Y, vecToB2(localOffset), 0)

	fixture := box2d.MakeB2FixtureDef()
	fixture.Shape = shape
	fixture.Density = density
	fixture.Friction = friction
	body.CreateFixtureFromDef(&fixture)
	body.ResetMassData()
}

// Position returns a body's world-space position.
func (w *World) Position(h BodyHandle) mathutil.Vec2 {
	body, ok := w.bodies[h]
	if !ok {
		return mathutil.Zero()
	}
	return vecFromB2(body.GetPosition())
}

// Rotation returns a body's rotation in radians.
func (w *World) Rotation(h BodyHandle) float64 {
	body, ok := w.bodies[h]
	if !ok {
		return 0
	}
	return body.GetAngle()
}

// SetTransform teleports a body to a position and rotation, bypassing
// the solver. Used when restoring a snapshot on the client.
func (w *World) SetTransform(h BodyHandle, pos mathutil.Vec2, rotation float64) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.SetTransform(vecToB2(pos), rotation)
}

// LinearVelocity returns a body's linear velocity.
func (w *World) LinearVelocity(h BodyHandle) mathutil.Vec2 {
	body, ok := w.bodies[h]
	if !ok {
		return mathutil.Zero()
	}
	return vecFromB2(body.GetLinearVelocity())
}

// SetLinearVelocity sets a body's linear velocity directly.
func (w *World) SetLinearVelocity(h BodyHandle, v mathutil.Vec2) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.SetLinearVelocity(vecToB2(v))
}

// AngularVelocity returns a body's angular velocity in radians/second.
func (w *World) AngularVelocity(h BodyHandle) float64 {
	body, ok := w.bodies[h]
	if !ok {
		return 0
	}
	return body.GetAngularVelocity()
}

// SetAngularVelocity sets a body's angular velocity directly.
func (w *World) SetAngularVelocity(h BodyHandle, omega float64) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.SetAngularVelocity(omega)
}

// ApplyForce applies a continuous force at a world point, e.g. a
// thruster's thrust or a sun's gravitational pull.
func (w *World) ApplyForce(h BodyHandle, force, worldPoint mathutil.Vec2) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.ApplyForce(vecToB2(force), vecToB2(worldPoint), true)
}

// ApplyImpulse applies an instantaneous impulse at a world point, e.g.
// an explosion's push or a missile's detonation.
func (w *World) ApplyImpulse(h BodyHandle, impulse, worldPoint mathutil.Vec2) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.ApplyLinearImpulse(vecToB2(impulse), vecToB2(worldPoint), true)
}

// ApplyTorque applies a continuous torque, e.g. a Gyroscope's output.
func (w *World) ApplyTorque(h BodyHandle, torque float64) {
	body, ok := w.bodies[h]
	if !ok {
		return
	}
	body.ApplyTorque(torque, true)
}

// Mass returns a body's total mass as derived from its attached fixtures.
func (w *World) Mass(h BodyHandle) float64 {
	body, ok := w.bodies[h]
	if !ok {
		return 0
	}
	return body.GetMass()
}
