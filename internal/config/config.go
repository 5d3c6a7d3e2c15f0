// Package config provides configuration loading and access for the
// simulation: tunable gameplay parameters plus server/telemetry
// settings. Wire-compatibility constants (§6) live in constants.go and
// are not part of this YAML-tunable surface.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all tunable simulation and server parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Energy     EnergyConfig     `yaml:"energy"`
	Missile    MissileConfig    `yaml:"missile"`
	Server     ServerConfig     `yaml:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Prediction PredictionConfig `yaml:"prediction"`
}

// PhysicsConfig holds gravitational and thrust tuning.
type PhysicsConfig struct {
	GravitationalConstant float64 `yaml:"gravitational_constant"`
	MaxGravityAccel       float64 `yaml:"max_gravity_accel"`
	ThrusterMaxForce      float64 `yaml:"thruster_max_force"`
	GyroscopeMaxTorque    float64 `yaml:"gyroscope_max_torque"`
	PlayerMovementImpulse float64 `yaml:"player_movement_impulse"`
}

// EnergyConfig holds battery/solar/consumption tuning.
type EnergyConfig struct {
	SolarChargeRate     float64 `yaml:"solar_charge_rate"`
	ThrusterDrainRate   float64 `yaml:"thruster_drain_rate"`
	GyroscopeDrainRate  float64 `yaml:"gyroscope_drain_rate"`
	CloakingDrainRate   float64 `yaml:"cloaking_drain_rate"`
	MedbayHealRate      float64 `yaml:"medbay_heal_rate"`
	BuildEnergyCost     float64 `yaml:"build_energy_cost"`
}

// MissileConfig holds missile launcher/flight tuning.
type MissileConfig struct {
	ChargeRate          float64 `yaml:"charge_rate"`
	BurnAcceleration    float64 `yaml:"burn_acceleration"`
	BurnDuration        float64 `yaml:"burn_duration"`
	DetonationRadius    float64 `yaml:"detonation_radius"`
	ExplosionImpulse    float64 `yaml:"explosion_impulse"`
	ExplosionMaxDamage  float64 `yaml:"explosion_max_damage"`
}

// ServerConfig holds server-loop tuning.
type ServerConfig struct {
	Port                   string  `yaml:"port"`
	TimeBetweenWorldSave   float64 `yaml:"time_between_world_save"`
	SnapshotSubsample      int     `yaml:"snapshot_subsample"`
	MaxAccumulatorTicks    int     `yaml:"max_accumulator_ticks"`
	TimeBetweenInputPkts   float64 `yaml:"time_between_input_packets"`
	ConnectHandshakeSecs   float64 `yaml:"connect_handshake_seconds"`
}

// TelemetryConfig holds CSV telemetry output tuning.
type TelemetryConfig struct {
	OutputDir      string  `yaml:"output_dir"`
	FlushInterval  float64 `yaml:"flush_interval_seconds"`
}

// PredictionConfig holds client-side prediction/reconciliation tuning.
type PredictionConfig struct {
	MaxMsSpentRepredicting float64 `yaml:"max_ms_spent_repredicting"`
	TicksBehindDoSnap      int     `yaml:"ticks_behind_do_snap"`
	DilationMargin         int     `yaml:"dilation_margin"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults.yaml: %w", err)
	}
	return &cfg, nil
}

// Load reads the embedded defaults, then overlays a YAML file at path
// if path is non-empty. Fields absent from the overlay keep their
// default value.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// WriteYAML writes the effective configuration to path as YAML, for
// archiving alongside recorded telemetry.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %q: %w", path, err)
	}
	return nil
}
