// Package config handles physics configuration loading and management.
package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Config holds all settings.
type Config struct {
	Physics PhysicsConfig `yaml:"physics"`
	Vehicle VehicleConfig `yaml:"vehicle"`
	Cloth   ClothConfig   `yaml:"cloth"`
	Loop    LoopConfig    `yaml:"loop"`
	Logging LoggingConfig `yaml:"logging"`
}

// PhysicsConfig holds world and clock settings.
type PhysicsConfig struct {
	Gravity         math.Vec3 `yaml:"gravity"`
	FixedTimeStep   float32   `yaml:"fixed_time_step"`
	MaxSubSteps     int       `yaml:"max_sub_steps"`
	WorldHalfExtent float32   `yaml:"world_half_extent"` // bodies leaving this cube are destroyed
	SoftBody        bool      `yaml:"soft_body"`
	CollisionMargin float32   `yaml:"collision_margin"`
	AirDensity      float32   `yaml:"air_density"`
	MaxDisplacement float32   `yaml:"max_displacement"`
}

// VehicleConfig holds raycast vehicle tuning.
type VehicleConfig struct {
	WheelSize             float32 `yaml:"wheel_size"`
	Friction              float32 `yaml:"friction"`
	SuspensionStiffness   float32 `yaml:"suspension_stiffness"`
	SuspensionDamping     float32 `yaml:"suspension_damping"`
	SuspensionCompression float32 `yaml:"suspension_compression"`
	SuspensionRestLength  float32 `yaml:"suspension_rest_length"`
	RollInfluence         float32 `yaml:"roll_influence"`
	SteeringIncrement     float32 `yaml:"steering_increment"`
	SteeringClamp         float32 `yaml:"steering_clamp"`
	MaxEngineForce        float32 `yaml:"max_engine_force"`
	MaxBreakingForce      float32 `yaml:"max_breaking_force"`
	MaxSuspensionTravelCm float32 `yaml:"max_suspension_travel_cm"`
	MaxSuspensionForce    float32 `yaml:"max_suspension_force"`
	HandbrakeForce        float32 `yaml:"handbrake_force"`
	BoostFactor           float32 `yaml:"boost_factor"`
}

// ClothConfig holds soft body patch defaults.
type ClothConfig struct {
	Mass               float32 `yaml:"mass"`
	Margin             float32 `yaml:"margin"`
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
	LinearStiffness    float32 `yaml:"linear_stiffness"`
	AngularStiffness   float32 `yaml:"angular_stiffness"`
	AnchorInfluence    float32 `yaml:"anchor_influence"`
	BendingDistance    int     `yaml:"bending_distance"`
}

// LoopConfig holds frame loop settings for headless runs.
type LoopConfig struct {
	Frames    int           `yaml:"frames"`
	FrameTime time.Duration `yaml:"frame_time"`
	Watch     bool          `yaml:"watch"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Physics: PhysicsConfig{
			Gravity:         math.Vec3{X: 0, Y: -9.8, Z: 0},
			FixedTimeStep:   1.0 / 60.0,
			MaxSubSteps:     1,
			WorldHalfExtent: 1000,
			SoftBody:        false,
			CollisionMargin: 0.04,
			AirDensity:      1.2,
			MaxDisplacement: 0.5,
		},
		Vehicle: DefaultVehicle(),
		Cloth: ClothConfig{
			Mass:               1,
			Margin:             0.05,
			VelocityIterations: 10,
			PositionIterations: 10,
			LinearStiffness:    0.4,
			AngularStiffness:   0.4,
			AnchorInfluence:    0.5,
			BendingDistance:    2,
		},
		Loop: LoopConfig{
			Frames:    600,
			FrameTime: time.Second / 60,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// DefaultVehicle returns the stock vehicle tuning.
func DefaultVehicle() VehicleConfig {
	return VehicleConfig{
		WheelSize:             1,
		Friction:              1000,
		SuspensionStiffness:   20.0,
		SuspensionDamping:     0.8,
		SuspensionCompression: 0.6,
		SuspensionRestLength:  0.35,
		RollInfluence:         0.15,
		SteeringIncrement:     0.04,
		SteeringClamp:         0.35,
		MaxEngineForce:        1000,
		MaxBreakingForce:      60,
		MaxSuspensionTravelCm: 500,
		MaxSuspensionForce:    6000,
		HandbrakeForce:        30,
		BoostFactor:           1.8,
	}
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	p := c.Physics
	check(p.FixedTimeStep > 0, "physics.fixed_time_step must be positive, got %v", p.FixedTimeStep)
	check(p.MaxSubSteps >= 1, "physics.max_sub_steps must be at least 1, got %d", p.MaxSubSteps)
	check(p.WorldHalfExtent > 0, "physics.world_half_extent must be positive, got %v", p.WorldHalfExtent)
	check(p.CollisionMargin >= 0, "physics.collision_margin must not be negative, got %v", p.CollisionMargin)

	v := c.Vehicle
	check(v.SteeringIncrement > 0, "vehicle.steering_increment must be positive, got %v", v.SteeringIncrement)
	check(v.SteeringClamp >= 0, "vehicle.steering_clamp must not be negative, got %v", v.SteeringClamp)
	check(v.SuspensionRestLength > 0, "vehicle.suspension_rest_length must be positive, got %v", v.SuspensionRestLength)
	check(v.WheelSize > 0, "vehicle.wheel_size must be positive, got %v", v.WheelSize)

	cl := c.Cloth
	check(cl.Mass > 0, "cloth.mass must be positive, got %v", cl.Mass)
	check(cl.AnchorInfluence >= 0 && cl.AnchorInfluence <= 1, "cloth.anchor_influence must be in [0,1], got %v", cl.AnchorInfluence)

	check(c.Loop.FrameTime > 0, "loop.frame_time must be positive, got %v", c.Loop.FrameTime)
	return err
}
