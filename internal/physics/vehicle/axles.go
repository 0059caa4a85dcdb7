package vehicle

import (
	"fmt"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/physics/shape"
)

// Axle groups wheels that share steering, engine and brake coefficients.
// The first axle is the front axle.
type Axle struct {
	Wheels   int
	Steering float32
	Engine   float32
	Brake    float32
}

// DefaultAxles returns n two-wheel axles: a steered front axle braking at
// half force and full-brake rear axles. Every wheel is driven.
func DefaultAxles(n int) []Axle {
	axles := make([]Axle, n)
	for i := range axles {
		axles[i] = Axle{Wheels: 2, Engine: 1, Brake: 1}
	}
	if n > 0 {
		axles[0].Steering = 1
		axles[0].Brake = 0.5
	}
	return axles
}

// TandemAxles is the ten wheel truck layout: three steered axles with
// decreasing lock followed by two fixed rear axles.
func TandemAxles() []Axle {
	return []Axle{
		{Wheels: 2, Steering: 1, Engine: 1, Brake: 0.5},
		{Wheels: 2, Steering: 0.5, Engine: 1, Brake: 1},
		{Wheels: 2, Steering: 0.25, Engine: 1, Brake: 1},
		{Wheels: 2, Engine: 1, Brake: 1},
		{Wheels: 2, Engine: 1, Brake: 1},
	}
}

// Kind names a vehicle preset.
type Kind int

const (
	Pickup Kind = iota
	Truck
	FireTruck
	LargePickup
)

func (k Kind) String() string {
	switch k {
	case Pickup:
		return "pickup"
	case Truck:
		return "truck"
	case FireTruck:
		return "fire-truck"
	case LargePickup:
		return "large-pickup"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a preset name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k := Pickup; k <= LargePickup; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle kind %q", s)
}

// Preset bundles the chassis mass, tuning and wheel layout of a stock
// vehicle.
type Preset struct {
	Kind        Kind
	ChassisMass float32
	Tuning      Tuning
	Offsets     []Offset
	Axles       []Axle
}

// PresetFor returns the stock preset for k.
func PresetFor(k Kind) (Preset, error) {
	t := config.DefaultVehicle()
	p := Preset{Kind: k}

	switch k {
	case Pickup:
		p.ChassisMass = 1000
		t.SuspensionStiffness = 10
		t.SuspensionDamping = 0.5
		t.SuspensionCompression = 0.8
		t.SuspensionRestLength = 0.7
		t.RollInfluence = 0.9
		t.SteeringIncrement = 0.002
		t.SteeringClamp = 0.4
		t.MaxEngineForce = 1300
		t.MaxBreakingForce = 50
		t.MaxSuspensionTravelCm = 100
		p.Offsets = fourWheels(1.1, 1.9, -1.8)
	case Truck:
		p.ChassisMass = 5000
		t.WheelSize = 1.3
		t.SuspensionStiffness = 5
		t.SuspensionDamping = 0.1
		t.SuspensionCompression = 0.4
		t.SuspensionRestLength = 0.9
		t.RollInfluence = 0.9
		t.SteeringIncrement = 0.004
		t.SteeringClamp = 0.4
		t.MaxEngineForce = 1000
		t.MaxBreakingForce = 100
		t.MaxSuspensionTravelCm = 100
		p.Offsets = []Offset{
			{X: 1.8, Z: 5.8}, {X: -1.8, Z: 5.8},
			{X: 1.8, Z: 1.4}, {X: -1.8, Z: 1.4},
			{X: 1.8, Z: 0}, {X: -1.8, Z: 0},
			{X: 1.8, Z: -4.2}, {X: -1.8, Z: -4.2},
			{X: 1.8, Z: -5.6}, {X: -1.8, Z: -5.6},
		}
		p.Axles = TandemAxles()
	case FireTruck:
		p.ChassisMass = 3000
		t.WheelSize = 1.1
		t.Friction = 10
		t.SuspensionStiffness = 8
		t.SuspensionDamping = 0.1
		t.SuspensionCompression = 0.2
		t.SuspensionRestLength = 0.7
		t.RollInfluence = 0.99
		t.SteeringIncrement = 0.003
		t.SteeringClamp = 0.35
		t.MaxEngineForce = 1500
		t.MaxBreakingForce = 50
		t.MaxSuspensionTravelCm = 135
		p.Offsets = fourWheels(1.44, 2.8, -2.55)
	case LargePickup:
		const scale = 0.3
		p.ChassisMass = 1000 * scale
		t.WheelSize = scale
		t.Friction = 100
		t.SuspensionStiffness = 30
		t.SuspensionDamping = 1
		t.SuspensionCompression = 1
		t.SuspensionRestLength = 0.08
		t.RollInfluence = 0.5
		t.SteeringIncrement = 0.004
		t.SteeringClamp = 0.35
		t.MaxEngineForce = 300
		t.MaxBreakingForce = 10
		t.MaxSuspensionTravelCm = 135
		p.Offsets = fourWheels(1.2*scale, 1.25*scale, -1.25*scale)
	default:
		return Preset{}, fmt.Errorf("unknown vehicle kind %d", int(k))
	}

	p.Tuning = t
	if p.Axles == nil {
		p.Axles = DefaultAxles(len(p.Offsets) / 2)
	}
	return p, nil
}

func fourWheels(x, front, rear float32) []Offset {
	return []Offset{
		{X: x, Z: front}, {X: -x, Z: front},
		{X: x, Z: rear}, {X: -x, Z: rear},
	}
}

// ChassisOptions returns rigid body options for a chassis with the given
// collision shape. The chassis never sleeps and collides as a vehicle.
func (p Preset) ChassisOptions(desc shape.Descriptor) rigidbody.Options {
	return rigidbody.Options{
		Shape:           desc,
		Mass:            p.ChassisMass,
		LinearDamping:   0.2,
		AngularDamping:  0.2,
		ActivationState: engine.DisableDeactivation,
		Group:           engine.GroupVehicle,
		Mask:            engine.GroupAll,
	}
}
