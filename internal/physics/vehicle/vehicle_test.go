package vehicle

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine/simple"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/physics/shape"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const frame = float32(1.0 / 60.0)

type rig struct {
	world    *physics.World
	backend  *simple.Backend
	chassis  *rigidbody.Body
	template *scene.Node
}

func newRig(t *testing.T) *rig {
	t.Helper()
	b := simple.New()
	w, err := physics.NewWorld(b, config.Default().Physics)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}

	ground := scene.NewBox("ground", math.Vec3{X: 100, Y: 1, Z: 100})
	ground.Position = math.Vec3{Y: -0.5}
	if err := rigidbody.New(w, ground, rigidbody.Options{Shape: shape.Descriptor{Kind: shape.Box}}).Start(); err != nil {
		t.Fatalf("ground Start failed: %v", err)
	}

	node := scene.NewBox("pickup", math.Vec3{X: 2, Y: 0.5, Z: 4})
	node.Position = math.Vec3{Y: 1}
	p, _ := PresetFor(Pickup)
	chassis := rigidbody.New(w, node, p.ChassisOptions(shape.Descriptor{Kind: shape.Box}))

	return &rig{
		world:    w,
		backend:  b,
		chassis:  chassis,
		template: scene.NewBox("wheel", math.Vec3{X: 0.3, Y: 0.8, Z: 0.8}),
	}
}

func testTuning() Tuning {
	t := config.DefaultVehicle()
	t.SteeringIncrement = 0.01
	t.SteeringClamp = 0.35
	return t
}

func (r *rig) start(t *testing.T, offsets []Offset, axles []Axle) *Vehicle {
	t.Helper()
	if err := r.chassis.Start(); err != nil {
		t.Fatalf("chassis Start failed: %v", err)
	}
	v := New(r.world, r.chassis, r.template, offsets, axles, testTuning())
	if err := v.Start(); err != nil {
		t.Fatalf("vehicle Start failed: %v", err)
	}
	if !v.Ready().Resolved() {
		t.Fatal("vehicle should be ready once the chassis is")
	}
	return v
}

func approx(a, b float32) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}

func TestSteeringIntegrator(t *testing.T) {
	v := New(nil, nil, nil, nil, nil, testTuning())

	v.SetControl(Left, true)
	for i := 0; i < 10; i++ {
		v.Steer(1)
	}
	if !approx(v.Steering(), 0.1) {
		t.Errorf("expected 0.1 after 10 frames, got %v", v.Steering())
	}
	for i := 0; i < 100; i++ {
		v.Steer(1)
	}
	if v.Steering() != 0.35 {
		t.Errorf("expected steering clamped at 0.35, got %v", v.Steering())
	}

	v.SetControl(Left, false)
	v.Steer(1)
	if !approx(v.Steering(), 0.34) {
		t.Errorf("expected relax to 0.34, got %v", v.Steering())
	}
	for i := 0; i < 40; i++ {
		v.Steer(1)
	}
	if v.Steering() != 0 {
		t.Errorf("expected steering to settle at 0, got %v", v.Steering())
	}

	v.SetControl(Right, true)
	for i := 0; i < 100; i++ {
		v.Steer(1)
	}
	if v.Steering() != -0.35 {
		t.Errorf("expected steering clamped at -0.35, got %v", v.Steering())
	}
}

func TestSteeringScalesWithFrameLength(t *testing.T) {
	v := New(nil, nil, nil, nil, nil, testTuning())
	v.SetControl(Left, true)
	v.Steer(2)
	if !approx(v.Steering(), 0.02) {
		t.Errorf("expected a double frame to steer 0.02, got %v", v.Steering())
	}
}

func TestSpeedRules(t *testing.T) {
	tuning := testTuning()
	tests := []struct {
		name     string
		controls []Control
		speed    float32
		engine   float32
		brake    float32
	}{
		{"accelerate from rest", []Control{Accelerate}, 0, tuning.MaxEngineForce, 0},
		{"accelerate while reversing", []Control{Accelerate}, -5, 0, tuning.MaxBreakingForce},
		{"boost", []Control{Accelerate, Boost}, 10, tuning.MaxEngineForce * tuning.BoostFactor, 0},
		{"brake while moving", []Control{Brake}, 5, 0, tuning.MaxBreakingForce},
		{"brake at rest reverses", []Control{Brake}, 0.5, -tuning.MaxEngineForce / 2, 0},
		{"idle", nil, 20, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(nil, nil, nil, nil, nil, tuning)
			for _, c := range tt.controls {
				v.SetControl(c, true)
			}
			v.speed = tt.speed
			v.resolveForces()
			if !approx(v.EngineForce(), tt.engine) {
				t.Errorf("engine: expected %v, got %v", tt.engine, v.EngineForce())
			}
			if !approx(v.BrakeForce(), tt.brake) {
				t.Errorf("brake: expected %v, got %v", tt.brake, v.BrakeForce())
			}
		})
	}
}

func TestEnableInputReleasesControls(t *testing.T) {
	v := New(nil, nil, nil, nil, nil, testTuning())
	v.SetControl(Accelerate, true)
	v.SetControl(Handbrake, true)
	v.EnableInput(false)
	if v.Control(Accelerate) || v.Control(Handbrake) {
		t.Error("disabling input should release every control")
	}
	if v.InputEnabled() {
		t.Error("input should be disabled")
	}
}

func TestStartBuildsWheels(t *testing.T) {
	r := newRig(t)
	v := r.start(t, fourWheels(1, 1.5, -1.5), nil)

	n := v.Native()
	if n.NumWheels() != 4 || len(v.Wheels()) != 4 {
		t.Fatalf("expected 4 wheels, got %d native and %d nodes", n.NumWheels(), len(v.Wheels()))
	}
	if !approx(v.WheelRadius(), 0.4) {
		t.Errorf("expected radius 0.4 from the template, got %v", v.WheelRadius())
	}

	want := []math.Vec3{{X: 1, Y: 0.4, Z: 1.5}, {X: -1, Y: 0.4, Z: 1.5}, {X: 1, Y: 0.4, Z: -1.5}, {X: -1, Y: 0.4, Z: -1.5}}
	for i, p := range want {
		spec := n.Wheel(i)
		if !spec.ConnectionPoint.ApproxEqual(p, 1e-5) {
			t.Errorf("wheel %d: expected connection %v, got %v", i, p, spec.ConnectionPoint)
		}
		if spec.IsFront != (i < 2) {
			t.Errorf("wheel %d: unexpected front flag %v", i, spec.IsFront)
		}
		if spec.Direction != (math.Vec3{Y: -1}) || spec.Axle != (math.Vec3{X: -1}) {
			t.Errorf("wheel %d: unexpected direction %v or axle %v", i, spec.Direction, spec.Axle)
		}
	}
	if r.backend.Stats().Vehicles != 1 {
		t.Errorf("expected 1 live vehicle, got %d", r.backend.Stats().Vehicles)
	}
}

func TestWheelTemplatePositionMirrors(t *testing.T) {
	r := newRig(t)
	r.template.Position = math.Vec3{X: 0.5, Z: 2}
	v := r.start(t, []Offset{{}, {}, {}, {}}, nil)

	want := []math.Vec3{{X: -0.5, Z: 2}, {X: 0.5, Z: 2}, {X: -0.5, Z: -2}, {X: 0.5, Z: -2}}
	for i, p := range want {
		got := v.Native().Wheel(i).ConnectionPoint
		if !approx(got.X, p.X) || !approx(got.Z, p.Z) {
			t.Errorf("wheel %d: expected x=%v z=%v, got %v", i, p.X, p.Z, got)
		}
	}
}

func TestStartWaitsForChassis(t *testing.T) {
	r := newRig(t)
	v := New(r.world, r.chassis, r.template, fourWheels(1, 1.5, -1.5), nil, testTuning())
	if err := v.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if v.Ready().Resolved() || v.Native() != nil {
		t.Fatal("vehicle should wait for the chassis")
	}
	if err := r.chassis.Start(); err != nil {
		t.Fatalf("chassis Start failed: %v", err)
	}
	if !v.Ready().Resolved() {
		t.Fatal("vehicle should be built once the chassis is ready")
	}
}

func TestStartValidation(t *testing.T) {
	r := newRig(t)

	v := New(r.world, nil, r.template, fourWheels(1, 1, -1), nil, testTuning())
	if err := v.Start(); !errors.Is(err, physics.ErrConfiguration) {
		t.Errorf("missing chassis: expected configuration error, got %v", err)
	}

	v = New(r.world, r.chassis, r.template, nil, nil, testTuning())
	if err := v.Start(); !errors.Is(err, physics.ErrConfiguration) {
		t.Errorf("no offsets: expected configuration error, got %v", err)
	}

	v = New(r.world, r.chassis, r.template, fourWheels(1, 1, -1), []Axle{{Wheels: 2}}, testTuning())
	if err := v.Start(); !errors.Is(err, physics.ErrConfiguration) {
		t.Errorf("short axles: expected configuration error, got %v", err)
	}
}

func TestAxleCoefficients(t *testing.T) {
	r := newRig(t)
	p, _ := PresetFor(Truck)
	v := r.start(t, p.Offsets, TandemAxles())
	n := v.Native()

	v.steering, v.engine, v.brake = 0.2, 100, 10
	v.applyWheels()

	steer := []float32{0.2, 0.2, 0.1, 0.1, 0.05, 0.05, 0, 0, 0, 0}
	for i, want := range steer {
		if !approx(n.SteeringValue(i), want) {
			t.Errorf("wheel %d: expected steering %v, got %v", i, want, n.SteeringValue(i))
		}
		if !approx(n.EngineForce(i), 100) {
			t.Errorf("wheel %d: expected engine 100, got %v", i, n.EngineForce(i))
		}
	}
	if !approx(n.Brake(0), 5) || !approx(n.Brake(9), 10) {
		t.Errorf("expected front brake 5 and rear brake 10, got %v and %v", n.Brake(0), n.Brake(9))
	}

	v.SetControl(Handbrake, true)
	v.applyWheels()
	for i := 0; i < n.NumWheels(); i++ {
		if n.EngineForce(i) != 0 {
			t.Errorf("wheel %d: handbrake should cut the engine, got %v", i, n.EngineForce(i))
		}
	}
	if !approx(n.Brake(1), 5) {
		t.Errorf("handbrake should leave the front brake alone, got %v", n.Brake(1))
	}
	if !approx(n.Brake(2), testTuning().HandbrakeForce) {
		t.Errorf("expected rear handbrake force %v, got %v", testTuning().HandbrakeForce, n.Brake(2))
	}
}

func TestUpdateSyncsNodes(t *testing.T) {
	r := newRig(t)
	v := r.start(t, fourWheels(1, 1.5, -1.5), nil)

	for i := 0; i < 10; i++ {
		r.world.Step(frame)
		v.Update(frame)
	}

	for i, w := range v.Wheels() {
		want := v.Native().WheelTransform(i).Origin
		if !w.Position.ApproxEqual(want, 1e-5) {
			t.Errorf("wheel %d: node at %v, native at %v", i, w.Position, want)
		}
	}
	want := r.chassis.Native().MotionState().Origin
	if got := r.chassis.Node().Position; !got.ApproxEqual(want, 1e-5) {
		t.Errorf("chassis node at %v, motion state at %v", got, want)
	}
}

func TestChassisDestroyTearsDownVehicle(t *testing.T) {
	r := newRig(t)
	v := r.start(t, fourWheels(1, 1.5, -1.5), nil)
	wheels := v.Wheels()

	r.chassis.Destroy()

	if !v.Destroyed() || v.Native() != nil {
		t.Error("vehicle should be torn down with its chassis")
	}
	for i, w := range wheels {
		if !w.Destroyed() {
			t.Errorf("wheel node %d should be destroyed", i)
		}
	}
	if r.backend.Stats().Vehicles != 0 {
		t.Errorf("expected no live vehicles, got %d", r.backend.Stats().Vehicles)
	}
	v.Destroy()
}

func TestChassisSetMassKeepsVehicle(t *testing.T) {
	r := newRig(t)
	v := r.start(t, fourWheels(1, 1.5, -1.5), nil)
	wheels := v.Wheels()
	v.SetControl(Left, true)
	v.Update(frame)
	steering := v.Steering()
	old := v.Native()

	if err := r.chassis.SetMass(1200); err != nil {
		t.Fatalf("SetMass failed: %v", err)
	}
	if v.Destroyed() || v.Native() == nil {
		t.Fatal("vehicle should survive a chassis rebuild")
	}
	if v.Native() == old {
		t.Error("expected a new native vehicle")
	}
	if v.Native().NumWheels() != 4 {
		t.Errorf("expected 4 wheels after rebuild, got %d", v.Native().NumWheels())
	}
	for i, w := range v.Wheels() {
		if w != wheels[i] || w.Destroyed() {
			t.Errorf("wheel node %d should be reused", i)
		}
	}
	if v.Steering() != steering {
		t.Errorf("steering should carry over, got %v want %v", v.Steering(), steering)
	}
	if r.backend.Stats().Vehicles != 1 || r.chassis.NumDependents() != 1 {
		t.Errorf("expected one live vehicle and one dependent, got %d and %d",
			r.backend.Stats().Vehicles, r.chassis.NumDependents())
	}

	for i := 0; i < 30; i++ {
		r.world.Step(frame)
		v.Update(frame)
	}
	if !v.Native().WheelInContact(0) {
		t.Error("rebuilt vehicle should still touch the ground")
	}
}

func TestDestroyLeavesChassis(t *testing.T) {
	r := newRig(t)
	v := r.start(t, fourWheels(1, 1.5, -1.5), nil)

	v.Destroy()
	if r.chassis.State() != rigidbody.Active {
		t.Errorf("chassis should stay active, got %v", r.chassis.State())
	}
	if r.chassis.NumDependents() != 0 {
		t.Errorf("vehicle should unregister from the chassis, %d dependents left", r.chassis.NumDependents())
	}
	v.Update(frame)
}

func TestPresets(t *testing.T) {
	for k := Pickup; k <= LargePickup; k++ {
		p, err := PresetFor(k)
		if err != nil {
			t.Fatalf("%v: %v", k, err)
		}
		if _, err := assignAxles(p.Axles, len(p.Offsets)); err != nil {
			t.Errorf("%v: axles do not cover the wheels: %v", k, err)
		}
		if p.ChassisMass <= 0 {
			t.Errorf("%v: chassis mass should be positive", k)
		}
		parsed, err := ParseKind(k.String())
		if err != nil || parsed != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), parsed, err)
		}
	}

	truck, _ := PresetFor(Truck)
	if len(truck.Offsets) != 10 || len(truck.Axles) != 5 {
		t.Errorf("truck should have 10 wheels on 5 axles, got %d on %d", len(truck.Offsets), len(truck.Axles))
	}
	if _, err := PresetFor(Kind(42)); err == nil {
		t.Error("unknown kind should fail")
	}
}
