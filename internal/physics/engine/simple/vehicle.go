package simple

import (
	gomath "math"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type wheel struct {
	spec engine.WheelSpec

	steering    float32
	engineForce float32
	brake       float32

	suspensionLength float32
	rotation         float32
	inContact        bool
	transform        engine.Transform
}

// vehicle is a raycast vehicle: one suspension ray per wheel against the
// world, with engine, brake and lateral friction impulses applied to the
// chassis center. The chassis coordinate system is right X, up Y, forward Z.
type vehicle struct {
	backend *Backend
	world   *world
	chassis *rigidBody
	tuning  engine.VehicleTuning
	wheels  []*wheel

	destroyed bool
}

func newVehicle(b *Backend, w *world, chassis *rigidBody, tuning engine.VehicleTuning) *vehicle {
	return &vehicle{backend: b, world: w, chassis: chassis, tuning: tuning}
}

func (v *vehicle) Chassis() engine.RigidBody { return v.chassis }

func (v *vehicle) AddWheel(spec engine.WheelSpec) int {
	v.wheels = append(v.wheels, &wheel{
		spec:             spec,
		suspensionLength: spec.RestLength,
		transform:        engine.IdentityTransform(),
	})
	return len(v.wheels) - 1
}

func (v *vehicle) NumWheels() int { return len(v.wheels) }

func (v *vehicle) Wheel(i int) engine.WheelSpec { return v.wheels[i].spec }

func (v *vehicle) SetSteeringValue(s float32, i int) { v.wheels[i].steering = s }
func (v *vehicle) SteeringValue(i int) float32       { return v.wheels[i].steering }
func (v *vehicle) ApplyEngineForce(f float32, i int) { v.wheels[i].engineForce = f }
func (v *vehicle) EngineForce(i int) float32         { return v.wheels[i].engineForce }
func (v *vehicle) SetBrake(b float32, i int)         { v.wheels[i].brake = b }
func (v *vehicle) Brake(i int) float32               { return v.wheels[i].brake }
func (v *vehicle) WheelInContact(i int) bool         { return v.wheels[i].inContact }

func (v *vehicle) forward() math.Vec3 {
	return v.chassis.xf.Rotation.Rotate(math.Vec3{Z: 1})
}

func (v *vehicle) CurrentSpeedKmHour() float32 {
	return 3.6 * v.chassis.linVel.Dot(v.forward())
}

func (v *vehicle) updateAction(h float32) {
	c := v.chassis
	if c.invMass == 0 || !c.IsActive() {
		return
	}
	xf := c.xf
	fwd := v.forward()
	right := xf.Rotation.Rotate(math.Vec3{X: 1})
	mass := c.mass

	var contacts int
	var steerSum float32
	var steerCount int
	var frontZ, rearZ float32
	var haveFront, haveRear bool

	for _, w := range v.wheels {
		from := xf.Apply(w.spec.ConnectionPoint)
		dir := xf.Rotation.Rotate(w.spec.Direction).Normalize()
		reach := w.spec.RestLength + w.spec.Radius
		hit, ok := v.world.rayTest(from, from.Add(dir.Scale(reach)), c)
		w.inContact = ok
		if !ok {
			w.suspensionLength = w.spec.RestLength
			continue
		}
		contacts++

		length := hit.Fraction*reach - w.spec.Radius
		maxTravel := w.spec.MaxSuspensionTravel / 100
		if maxTravel > 0 {
			length = max(length, w.spec.RestLength-maxTravel)
		}
		length = max(length, 0)
		compression := w.spec.RestLength - length

		// Relative velocity along the suspension, positive when compressing.
		projVel := c.linVel.Dot(dir)
		damping := w.spec.DampingRelaxation
		if projVel > 0 {
			damping = w.spec.DampingCompression
		}
		force := (w.spec.SuspensionStiffness*compression + damping*projVel) * mass
		if w.spec.MaxSuspensionForce > 0 {
			force = min(force, w.spec.MaxSuspensionForce)
		}
		force = max(force, 0)
		c.ApplyCentralImpulse(dir.Scale(-force * h))
		w.suspensionLength = length

		// Longitudinal drive and braking at the contact. Brake values are
		// per-step impulse caps, as in the native vehicle.
		c.ApplyCentralImpulse(fwd.Scale(w.engineForce * h))
		if w.brake > 0 {
			vf := c.linVel.Dot(fwd)
			stop := min(w.brake, gomath32Abs(vf)*mass)
			if vf > 0 {
				stop = -stop
			}
			c.ApplyCentralImpulse(fwd.Scale(stop))
		}

		if w.spec.IsFront {
			steerSum += w.steering
			steerCount++
			frontZ, haveFront = w.spec.ConnectionPoint.Z, true
		} else {
			rearZ, haveRear = w.spec.ConnectionPoint.Z, true
		}
	}

	if contacts == 0 {
		return
	}

	// Lateral friction removes sideways slip proportionally to grip.
	share := float32(contacts) / float32(len(v.wheels))
	grip := clamp01(v.tuning.FrictionSlip * h / 10)
	side := c.linVel.Dot(right)
	c.linVel = c.linVel.Sub(right.Scale(side * grip * share))

	// Kinematic bicycle model for yaw.
	if steerCount > 0 && haveFront && haveRear {
		wheelBase := gomath32Abs(frontZ - rearZ)
		if wheelBase > 0 {
			steer := steerSum / float32(steerCount)
			vf := c.linVel.Dot(fwd)
			yaw := vf * float32(gomath.Tan(float64(steer))) / wheelBase
			up := xf.Rotation.Rotate(math.Vec3Up)
			c.angVel = up.Scale(yaw)
		}
	}

	for _, w := range v.wheels {
		if w.inContact && w.spec.Radius > 0 {
			w.rotation += c.linVel.Dot(fwd) * h / w.spec.Radius
		}
	}
}

// UpdateWheelTransform places the wheel at the end of its suspension,
// steered around the chassis up axis and spun around its axle.
func (v *vehicle) UpdateWheelTransform(i int, interpolated bool) {
	w := v.wheels[i]
	chassis := v.chassis.xf
	if interpolated {
		chassis = v.chassis.motion
	}

	hub := w.spec.ConnectionPoint.Add(w.spec.Direction.Normalize().Scale(w.suspensionLength))
	steer := math.QuatFromAxisAngle(w.spec.Direction.Neg().Normalize(), w.steering)
	spin := math.QuatFromAxisAngle(w.spec.Axle.Normalize(), -w.rotation)

	w.transform = engine.Transform{
		Origin:   chassis.Apply(hub),
		Rotation: chassis.Rotation.Mul(steer).Mul(spin).Normalize(),
	}
}

func (v *vehicle) WheelTransform(i int) engine.Transform { return v.wheels[i].transform }

func (v *vehicle) Destroy() {
	if v.destroyed {
		return
	}
	v.world.RemoveAction(v)
	v.destroyed = true
	v.backend.stats.Vehicles--
}

func gomath32Abs(f float32) float32 {
	return float32(gomath.Abs(float64(f)))
}
