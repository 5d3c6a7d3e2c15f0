package physics

import (
	"github.com/ByteArena/box2d"
	"github.com/orbitalrush/grid/internal/mathutil"
)

// RayHit describes the nearest fixture struck by a ray.
type RayHit struct {
	Body     BodyHandle
	Point    mathutil.Vec2
	Fraction float64
	Hit      bool
}

// rayCastClosest collects only the closest fixture along the ray, per
// box2d's B2RayCastCallback contract (ReportFixture returns the new
// fraction to continue clipping the ray at, or a negative value to
// ignore the fixture).
type rayCastClosest struct {
	world  *World
	best   RayHit
	bodies map[*box2d.B2Body]BodyHandle
}

func (r *rayCastClosest) ReportFixture(fixture *box2d.B2Fixture, point box2d.B2Vec2, normal box2d.B2Vec2, fraction float64) float64 {
	handle, ok := r.bodies[fixture.GetBody()]
	if !ok {
		return fraction
	}
	r.best = RayHit{Body: handle, Point: vecFromB2(point), Fraction: fraction, Hit: true}
	return fraction
}

// RayCast casts a ray from origin to origin+direction*maxDistance and
// returns the closest fixture struck, if any. Used by scanners and
// build-hand snapping to find an occluder or target along a line.
func (w *World) RayCast(origin, direction mathutil.Vec2, maxDistance float64) RayHit {
	end := origin.Add(direction.Normalize().Scale(maxDistance))
	callback := &rayCastClosest{world: w, bodies: w.reverseBodies()}
	w.b2.RayCast(callback, vecToB2(origin), vecToB2(end))
	return callback.best
}

// nearestQuery accumulates the nearest fixture within a query AABB,
// per box2d's B2QueryCallback contract (ReportFixture returns true to
// keep searching, false to stop early).
type nearestQuery struct {
	center     box2d.B2Vec2
	radius     float64
	bodies     map[*box2d.B2Body]BodyHandle
	bestHandle BodyHandle
	bestDistSq float64
	found      bool
}

func (q *nearestQuery) ReportFixture(fixture *box2d.B2Fixture) bool {
	handle, ok := q.bodies[fixture.GetBody()]
	if !ok {
		return true
	}
	pos := fixture.GetBody().GetPosition()
	dx := pos.X - q.center.X
	dy := pos.Y - q.center.Y
	distSq := dx*dx + dy*dy
	if distSq > q.radius*q.radius {
		return true
	}
	if !q.found || distSq < q.bestDistSq {
		q.found = true
		q.bestDistSq = distSq
		q.bestHandle = handle
	}
	return true
}

// NearestBody returns the body whose shape lies within radius of
// center and is closest to it, used for landing-gear attach checks and
// missile target acquisition.
func (w *World) NearestBody(center mathutil.Vec2, radius float64) (BodyHandle, bool) {
	aabb := box2d.MakeB2AABB()
	aabb.LowerBound = box2d.MakeB2Vec2(center.X-radius, center.Y-radius)
	aabb.UpperBound = box2d.MakeB2Vec2(center.X+radius, center.Y+radius)

	callback := &nearestQuery{center: vecToB2(center), radius: radius, bodies: w.reverseBodies()}
	w.b2.QueryAABB(callback, aabb)
	return callback.bestHandle, callback.found
}

func (w *World) reverseBodies() map[*box2d.B2Body]BodyHandle {
	reverse := make(map[*box2d.B2Body]BodyHandle, len(w.bodies))
	for handle, body := range w.bodies {
		reverse[body] = handle
	}
	return reverse
}
