package entities

import "github.com/orbitalrush/grid/internal/mathutil"

// ScannerPoint is one sampled return populating Box.ScannerPoints.
type ScannerPoint struct {
	Target    EntityID
	Direction mathutil.Vec2
	Distance  float64
	Tag       ScannerTag
}

// PlatonicPing is one long-range return populating Box.DetectedPlatonics:
// a direction and intensity toward a platonic entity anywhere in the
// world, regardless of ScannerRadius.
type PlatonicPing struct {
	Target    EntityID
	Direction mathutil.Vec2
	Intensity float64
}
