package entities

import (
	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/mathutil"
	"github.com/orbitalrush/grid/internal/physics"
)

// Squad identifies a team of players. SquadNone marks an entity with no
// owning squad (e.g. a neutral Sun or a freshly-built, uncrewed Grid).
type Squad uint8

const SquadNone Squad = 0

// Entity is the single, flat representation for every simulated object.
// Per Design Notes §9, subsystems switch on Kind/BoxKind rather than
// type-asserting through an interface hierarchy; unused fields for a
// given Kind are simply left zero. Grouping below follows the
// kind-specific sections of §3.
type Entity struct {
	Kind Kind

	// Universal transform and motion, meaningful for every Kind.
	Position        mathutil.Vec2
	Rotation         float64
	LinearVelocity  mathutil.Vec2
	AngularVelocity float64

	// OwningSquad attributes a Grid or Box to a team; a Player's team is
	// PlayerSquad and a Missile's is MissileOwningSquad.
	OwningSquad Squad

	// Damage is normalized [0,1]. Sun and explosion damage apply to
	// every Kind and a Medbay heals a seated Player; only a Grid or Box
	// is destroyed on reaching 1.0.
	Damage float64

	// Body is the physics handle backing Grid (one rigid body per
	// grid) and free-flying Missile/Orb entities. Boxes share their
	// parent Grid's body and instead record their fixture placement.
	Body physics.BodyHandle

	// --- Grid-specific ---
	Boxes []EntityID // child Box entities; each Box's cell is its LocalOffset

	// --- Box-specific ---
	BoxKind              BoxKind
	LocalOffset          mathutil.Vec2 // cell offset within the parent Grid
	ParentGrid           EntityID
	CompassRotation      int // 0..3, 90 degrees per step (§3)
	EnergyUsed           float64
	Thrust               float64 // current thruster output, 0..1
	SunAmount            float64 // SolarPanel: energy harvested this tick
	CloakingPower        float64 // Cloaking: 0..1 activation level
	ScannerHeadRotate    float64 // Scanner: sweep angle, radians
	PlayerInside         EntityID
	LandedConstraint     physics.ConstraintHandle // LandingGear: non-nil while latched
	MissileChargeAccum   float64                  // MissileLauncher: builds toward 1.0
	Indestructible       bool
	IsPlatonic           bool
	DetectedPlatonics    [config.ScannerMaxPlatonics]PlatonicPing
	DetectedPlatonicsLen int
	ScannerPoints        [config.ScannerMaxPoints]ScannerPoint
	ScannerPointsLen     int

	// --- Player-specific ---
	PlayerSquad        Squad
	CurrentlyInsideOf  EntityID
	SquadInvitedTo     Squad
	Input              PlayerInput
	UnlockedExplosives bool // gates building BoxExplosive (§4.D phase 2)

	// --- Sun-specific ---
	Radius     float64
	Mass       float64
	SunIsSafe  bool

	// --- Missile-specific ---
	MissileOwningSquad Squad
	BurnRemaining      float64

	// --- Explosion-specific ---
	ExplosionProgress float64
	ExplosionRadius   float64
}

// PlayerInput is the input frame applied to a Player entity on the
// current tick. It is replaced every tick, by that tick's frame or by
// zero input when none arrived.
type PlayerInput struct {
	Thrust      mathutil.Vec2
	Torque      float64
	Fire        bool
	Interact    bool
	BuildTarget mathutil.Vec2
	BuildBox    BoxKind
}
