// Package vehicle drives a raycast vehicle on top of a chassis rigid body.
//
// Wheels are grouped into axles. Each axle scales the shared steering,
// engine and brake values, so a four wheel pickup and a ten wheel truck run
// through the same per-frame code.
package vehicle

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Chassis continuous collision settings.
const (
	ChassisCcdMotionThreshold   = 25
	ChassisCcdSweptSphereRadius = 0.375
)

// Tuning is the vehicle tuning block of the configuration.
type Tuning = config.VehicleConfig

// Control is a driver input.
type Control int

const (
	Accelerate Control = iota
	Brake
	Left
	Right
	Handbrake
	Boost
	numControls
)

func (c Control) String() string {
	switch c {
	case Accelerate:
		return "accelerate"
	case Brake:
		return "brake"
	case Left:
		return "left"
	case Right:
		return "right"
	case Handbrake:
		return "handbrake"
	case Boost:
		return "boost"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

// Offset shifts a wheel from the wheel template position, in chassis space.
type Offset struct {
	X, Z float32
}

// Vehicle is a raycast vehicle bound to a chassis body.
type Vehicle struct {
	log      *zap.Logger
	world    *physics.World
	chassis  *rigidbody.Body
	template *scene.Node
	offsets  []Offset
	axles    []Axle
	tuning   Tuning

	native    engine.RaycastVehicle
	wheels    []*scene.Node
	wheelAxle []int
	radius    float32

	controls [numControls]bool
	input    bool
	steering float32
	engine   float32
	brake    float32
	speed    float32

	ready     *physics.Future[*Vehicle]
	err       error
	started   bool
	destroyed bool
	undep     func()
	unswitch  func()
}

// New declares a vehicle. One wheel is created per offset; wheel i belongs
// to the axle that covers it in axles order. A nil axles slice uses
// DefaultAxles.
func New(world *physics.World, chassis *rigidbody.Body, wheelTemplate *scene.Node, offsets []Offset, axles []Axle, tuning Tuning) *Vehicle {
	if axles == nil {
		axles = DefaultAxles((len(offsets) + 1) / 2)
	}
	return &Vehicle{
		log:      logger.Named("vehicle"),
		world:    world,
		chassis:  chassis,
		template: wheelTemplate,
		offsets:  offsets,
		axles:    axles,
		tuning:   tuning,
		input:    true,
		ready:    physics.NewFuture[*Vehicle](),
	}
}

// Start validates the declaration and builds the native vehicle once the
// chassis is ready.
func (v *Vehicle) Start() error {
	if v.world == nil || v.chassis == nil || v.template == nil {
		return &physics.ConfigurationError{Component: "vehicle", Reason: "needs a world, a chassis and a wheel template"}
	}
	if len(v.offsets) == 0 {
		return &physics.ConfigurationError{Component: "vehicle", Reason: "no wheel offsets"}
	}
	wheelAxle, err := assignAxles(v.axles, len(v.offsets))
	if err != nil {
		return err
	}
	if v.started {
		return nil
	}
	v.started = true
	v.wheelAxle = wheelAxle

	v.chassis.OnReady(func(*rigidbody.Body) {
		if v.destroyed {
			return
		}
		if err := v.build(); err != nil {
			v.err = err
			v.log.Error("vehicle build failed", zap.Error(err))
			return
		}
		v.ready.Resolve(v)
	})
	return nil
}

func assignAxles(axles []Axle, wheels int) ([]int, error) {
	out := make([]int, 0, wheels)
	for i, a := range axles {
		for j := 0; j < a.Wheels && len(out) < wheels; j++ {
			out = append(out, i)
		}
	}
	if len(out) < wheels {
		return nil, &physics.ConfigurationError{
			Component: "vehicle",
			Reason:    fmt.Sprintf("axles cover %d of %d wheels", len(out), wheels),
		}
	}
	return out, nil
}

func (v *Vehicle) build() error {
	if err := v.buildNative(); err != nil {
		return err
	}
	v.undep = v.chassis.AddDependent(rigidbody.Dependent{
		Teardown: v.teardown,
		Release:  v.releaseNative,
		Rebuild:  v.rebuild,
	})
	v.unswitch = v.world.OnSwitch(v.discard)

	v.log.Debug("vehicle created",
		zap.String("chassis", v.chassis.Node().Name),
		zap.Int("wheels", len(v.wheels)),
		zap.Float32("radius", v.radius))
	return nil
}

// buildNative creates the native vehicle on the current chassis body.
// Wheel nodes are created once and reused by later rebuilds.
func (v *Vehicle) buildNative() error {
	chassis := v.chassis.Native()
	if chassis == nil {
		return &physics.ConfigurationError{Component: "vehicle", Reason: "chassis has no native body"}
	}
	chassis.SetCcdMotionThreshold(ChassisCcdMotionThreshold)
	chassis.SetCcdSweptSphereRadius(ChassisCcdSweptSphereRadius)

	t := v.tuning
	native, err := v.world.Backend().NewRaycastVehicle(v.world.Native(), chassis, engine.VehicleTuning{
		SuspensionStiffness:   t.SuspensionStiffness,
		SuspensionCompression: t.SuspensionCompression,
		SuspensionDamping:     t.SuspensionDamping,
		MaxSuspensionTravelCm: t.MaxSuspensionTravelCm,
		FrictionSlip:          t.Friction,
		MaxSuspensionForce:    t.MaxSuspensionForce,
	})
	if err != nil {
		return fmt.Errorf("create raycast vehicle: %w", err)
	}
	v.native = native
	v.world.AddAction(native)

	if v.wheels == nil {
		v.wheels = make([]*scene.Node, len(v.offsets))
		for i := range v.offsets {
			w := v.template.Clone()
			w.Name = fmt.Sprintf("%s.wheel%d", v.chassis.Node().Name, i)
			w.Scale = math.Vec3One.Scale(t.WheelSize)
			v.wheels[i] = w
		}
	}
	// The radius comes from the scaled template and is fixed for the
	// vehicle's lifetime.
	if v.radius == 0 {
		v.radius = v.wheels[0].Bounds().Size().Y / 2
	}

	base := v.template.WorldPosition()
	for i, off := range v.offsets {
		front := v.wheelAxle[i] == 0
		x := -base.X
		if i%2 == 1 {
			x = base.X
		}
		z := -base.Z
		if front {
			z = base.Z
		}
		native.AddWheel(engine.WheelSpec{
			ConnectionPoint:     math.Vec3{X: x + off.X, Y: v.radius, Z: z + off.Z},
			Direction:           math.Vec3{Y: -1},
			Axle:                math.Vec3{X: -1},
			RestLength:          t.SuspensionRestLength,
			Radius:              v.radius,
			IsFront:             front,
			SuspensionStiffness: t.SuspensionStiffness,
			DampingRelaxation:   t.SuspensionDamping,
			DampingCompression:  t.SuspensionCompression,
			FrictionSlip:        t.Friction,
			RollInfluence:       t.RollInfluence,
			MaxSuspensionTravel: t.MaxSuspensionTravelCm,
			MaxSuspensionForce:  t.MaxSuspensionForce,
		})
	}
	return nil
}

// releaseNative drops the native vehicle while the chassis rebuilds. Wheel
// nodes and driver state are kept.
func (v *Vehicle) releaseNative() {
	if v.native == nil {
		return
	}
	v.world.RemoveAction(v.native)
	v.native.Destroy()
	v.native = nil
}

// rebuild attaches a new native vehicle to the rebuilt chassis.
func (v *Vehicle) rebuild() {
	if v.destroyed || v.native != nil {
		return
	}
	if err := v.buildNative(); err != nil {
		v.err = err
		v.log.Error("vehicle rebuild failed", zap.Error(err))
		return
	}
	v.log.Debug("vehicle rebuilt", zap.String("chassis", v.chassis.Node().Name))
}

// SetControl presses or releases a driver input.
func (v *Vehicle) SetControl(c Control, on bool) {
	if c < 0 || c >= numControls {
		return
	}
	v.controls[c] = on
}

// Control reports whether a driver input is held.
func (v *Vehicle) Control(c Control) bool {
	if c < 0 || c >= numControls {
		return false
	}
	return v.controls[c]
}

// EnableInput turns driver input on or off. Disabling releases every
// control; the vehicle keeps its last wheel values and coasts.
func (v *Vehicle) EnableInput(on bool) {
	v.input = on
	if !on {
		v.controls = [numControls]bool{}
	}
}

// InputEnabled reports whether driver input is processed.
func (v *Vehicle) InputEnabled() bool { return v.input }

// SetTuning replaces the driving tuning. Wheel geometry and suspension
// are fixed when the vehicle is built; steering and force limits apply
// from the next update.
func (v *Vehicle) SetTuning(t Tuning) { v.tuning = t }

// Tuning returns the current tuning.
func (v *Vehicle) Tuning() Tuning { return v.tuning }

// Steer integrates the steering value for one frame. scale is the frame
// length in 60 Hz frames.
func (v *Vehicle) Steer(scale float32) {
	inc, clamp := v.tuning.SteeringIncrement, v.tuning.SteeringClamp
	step := inc * scale
	switch {
	case v.controls[Left]:
		if v.steering < clamp {
			v.steering = min(v.steering+step, clamp)
		}
	case v.controls[Right]:
		if v.steering > -clamp {
			v.steering = max(v.steering-step, -clamp)
		}
	case v.steering < -inc:
		v.steering += step
	case v.steering > inc:
		v.steering -= step
	default:
		v.steering = 0
	}
}

// resolveForces turns held controls into engine and brake values for the
// current speed.
func (v *Vehicle) resolveForces() {
	t := v.tuning
	v.engine, v.brake = 0, 0

	boost := float32(1)
	if v.controls[Boost] {
		boost = t.BoostFactor
	}
	if v.controls[Accelerate] {
		if v.speed < -1 {
			v.brake = t.MaxBreakingForce
		} else {
			v.engine = t.MaxEngineForce * boost
		}
	}
	if v.controls[Brake] {
		if v.speed > 1 {
			v.brake = t.MaxBreakingForce
		} else {
			v.engine = -t.MaxEngineForce / 2
		}
	}
}

func (v *Vehicle) applyWheels() {
	handbrake := v.controls[Handbrake]
	for i := range v.wheels {
		axle := v.axles[v.wheelAxle[i]]
		v.native.SetSteeringValue(v.steering*axle.Steering, i)
		v.native.SetBrake(v.brake*axle.Brake, i)
		if handbrake {
			v.native.ApplyEngineForce(0, i)
			if v.wheelAxle[i] != 0 {
				v.native.SetBrake(v.tuning.HandbrakeForce, i)
			}
			continue
		}
		v.native.ApplyEngineForce(v.engine*axle.Engine, i)
	}
}

// Update applies driver input for a frame of dt seconds and copies the
// wheel and chassis transforms into their nodes.
func (v *Vehicle) Update(dt float32) {
	if v.native == nil {
		return
	}
	if v.input {
		v.speed = v.native.CurrentSpeedKmHour()
		v.Steer(dt * 60)
		v.resolveForces()
		v.applyWheels()
	}

	for i, w := range v.wheels {
		v.native.UpdateWheelTransform(i, true)
		xf := v.native.WheelTransform(i)
		w.SetWorldTransform(xf.Origin, xf.Rotation)
	}
	v.chassis.SyncNode()
}

// Destroy removes the vehicle action and the wheel nodes. The chassis
// body is left alone.
func (v *Vehicle) Destroy() {
	if v.destroyed {
		return
	}
	if v.undep != nil {
		v.undep()
		v.undep = nil
	}
	v.teardown()
}

// teardown runs when the chassis body is destroyed.
func (v *Vehicle) teardown() {
	v.destroyed = true
	if v.unswitch != nil {
		v.unswitch()
		v.unswitch = nil
	}
	v.releaseNative()
	v.destroyWheels()
	v.log.Debug("vehicle destroyed")
}

// discard drops the native vehicle when the world is replaced.
func (v *Vehicle) discard() {
	v.native = nil
	v.undep = nil
	v.unswitch = nil
	v.destroyed = true
	v.destroyWheels()
}

func (v *Vehicle) destroyWheels() {
	for _, w := range v.wheels {
		w.Destroy()
	}
	v.wheels = nil
}

// Ready resolves once the native vehicle exists.
func (v *Vehicle) Ready() *physics.Future[*Vehicle] { return v.ready }

// Err returns the deferred build error, if any.
func (v *Vehicle) Err() error { return v.err }

// Native returns the native vehicle, nil until ready or after destroy.
func (v *Vehicle) Native() engine.RaycastVehicle { return v.native }

// Chassis returns the chassis body.
func (v *Vehicle) Chassis() *rigidbody.Body { return v.chassis }

// Wheels returns the wheel nodes in wheel index order.
func (v *Vehicle) Wheels() []*scene.Node { return v.wheels }

// WheelRadius returns the radius inferred from the wheel template.
func (v *Vehicle) WheelRadius() float32 { return v.radius }

// Steering returns the current steering value.
func (v *Vehicle) Steering() float32 { return v.steering }

// EngineForce returns the engine force resolved in the last update.
func (v *Vehicle) EngineForce() float32 { return v.engine }

// BrakeForce returns the brake force resolved in the last update.
func (v *Vehicle) BrakeForce() float32 { return v.brake }

// Speed returns the speed in km/h sampled in the last update with input
// enabled.
func (v *Vehicle) Speed() float32 { return v.speed }

// Destroyed reports whether the vehicle was torn down.
func (v *Vehicle) Destroyed() bool { return v.destroyed }
