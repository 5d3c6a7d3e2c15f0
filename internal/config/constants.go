package config

import "time"

// Constants in this file are the §6 wire-compatibility set: both sides
// of a connection must be built from the same values, since they size
// fixed buffers and gate the codec. They are not YAML-tunable — a
// server and client that disagree on any of these cannot meaningfully
// exchange InputFrame/ServerToClient messages.
const (
	// ProtocolVersion is the first field of every wire message (§6).
	ProtocolVersion uint32 = 1

	// BoxSize is the edge length, in world units, of one grid cell.
	BoxSize float64 = 1.0

	// Timestep is the fixed simulation step duration (1/60s, §6).
	Timestep = time.Second / 60

	// TimestepSeconds is Timestep expressed as a float64 for physics math.
	TimestepSeconds float64 = 1.0 / 60.0

	// MaxEntities bounds the entity arena (§4.C).
	MaxEntities = 4096

	// MaxPlayers bounds the player slot table (§3, §4.F).
	MaxPlayers = 16

	// LocalInputQueueMax bounds the client's committed-input queue and
	// the InputFrame queue carried in every ClientToServer message (§4.E).
	LocalInputQueueMax = 64

	// VoipSampleRate is the voice payload's expected sample rate in Hz.
	VoipSampleRate = 48000

	// VoipExpectedFrameCount is the expected Opus frame size in samples.
	VoipExpectedFrameCount = 960 // 20ms at 48kHz

	// VoipPacketMaxSize bounds a single opaque voice payload, in bytes.
	VoipPacketMaxSize = 4000

	// VoipPacketBufferSize bounds the voice packet queue carried per
	// ClientToServer/ServerToClient message.
	VoipPacketBufferSize = 8

	// ScannerRadius is the local-detection radius for Scanner boxes.
	ScannerRadius float64 = 500.0

	// ScannerMaxPlatonics bounds Box.DetectedPlatonics.
	ScannerMaxPlatonics = 4

	// ScannerMaxPoints bounds Box.ScannerPoints.
	ScannerMaxPoints = 32

	// MissileRange is the maximum lock-on distance for missile launchers.
	MissileRange float64 = 300.0

	// CloakingRadius is how far a fully-active Cloaking box's concealment
	// reaches: a friendly missile or grid within this distance of the
	// cloaking box is hidden from enemy scanner returns and missile
	// lock-on.
	CloakingRadius float64 = 75.0

	// ExplosionTime is how long (seconds) an Explosion entity persists.
	ExplosionTime float64 = 1.0

	// InstantDeathDistanceFromCenter is the boundary radius beyond which
	// any entity is destroyed (§4.D phase 7).
	InstantDeathDistanceFromCenter float64 = 50000.0

	// BatteryCapacity is the maximum energy a Battery box can store.
	BatteryCapacity float64 = 1000.0

	// MaxHandReach bounds how far a player's build/interact hand position
	// may be from their own entity.
	MaxHandReach float64 = 15.0

	// MaxServerToClient bounds the post-compression size of a single
	// ServerToClient datagram, in bytes (§6, 1 MiB).
	MaxServerToClient = 1 << 20

	// DisconnectReasonServerFull is the distinguishable reason code sent
	// when a connect attempt finds no free slot (§8 scenario 4).
	DisconnectReasonServerFull uint8 = 69
)
