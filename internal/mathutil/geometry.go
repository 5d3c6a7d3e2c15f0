package mathutil

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max Vec2
}

// NewAABB creates an AABB from a center point and half-extents.
func NewAABB(center, halfExtents Vec2) AABB {
	return AABB{
		Min: center.Sub(halfExtents),
		Max: center.Add(halfExtents),
	}
}

// Contains reports whether p lies within the AABB, inclusive of edges.
func (b AABB) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Overlaps reports whether two AABBs intersect, inclusive of edges.
func (b AABB) Overlaps(other AABB) bool {
	if b.Max.X < other.Min.X || b.Min.X > other.Max.X {
		return false
	}
	if b.Max.Y < other.Min.Y || b.Min.Y > other.Max.Y {
		return false
	}
	return true
}

// OrientedBox is a rectangle with a center, half-extents, and a rotation
// (radians, positive counter-clockwise) applied about its center.
type OrientedBox struct {
	Center      Vec2
	HalfExtents Vec2
	Rotation    float64
}

// Contains reports whether world point p lies within the oriented box,
// by transforming p into the box's local (unrotated) frame.
func (b OrientedBox) Contains(p Vec2) bool {
	local := p.Sub(b.Center).Rotate(-b.Rotation)
	return math.Abs(local.X) <= b.HalfExtents.X && math.Abs(local.Y) <= b.HalfExtents.Y
}

// GridSnap rounds a world point to the nearest multiple of cellSize in
// the local frame of a grid located at origin with the given rotation,
// then transforms the snapped local point back to world space. This is
// used to snap a build-hand position to the nearest cell on a ship's
// hull grid.
func GridSnap(worldPoint, gridOrigin Vec2, gridRotation float64, cellSize float64) Vec2 {
	local := worldPoint.Sub(gridOrigin).Rotate(-gridRotation)
	snapped := Vec2{
		X: math.Round(local.X/cellSize) * cellSize,
		Y: math.Round(local.Y/cellSize) * cellSize,
	}
	return snapped.Rotate(gridRotation).Add(gridOrigin)
}

// CompassToRadians converts a compass-rotation value in {0,1,2,3} (used
// by Box.CompassRotation) to a radians angle, 0 facing +X, increasing
// counter-clockwise in 90-degree steps.
func CompassToRadians(compass int) float64 {
	return float64(compass%4) * (math.Pi / 2)
}
