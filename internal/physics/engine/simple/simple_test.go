package simple

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const step = float32(1.0 / 60.0)

var gravity = math.Vec3{Y: -9.8}

func newTestWorld(t *testing.T, b *Backend, soft bool, g math.Vec3) engine.World {
	t.Helper()
	w, err := b.NewWorld(engine.WorldConfig{Gravity: g, SoftBody: soft, AirDensity: 1.2, MaxDisplacement: 0.5})
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	return w
}

func newBox(t *testing.T, b *Backend, half math.Vec3, mass float32, pos math.Vec3) engine.RigidBody {
	t.Helper()
	s, err := b.NewShape(engine.ShapeDesc{Kind: engine.ShapeBox, HalfExtents: half})
	if err != nil {
		t.Fatalf("NewShape failed: %v", err)
	}
	body, err := b.NewRigidBody(engine.RigidBodyInfo{
		Mass:         mass,
		Shape:        s,
		Start:        engine.Transform{Origin: pos, Rotation: math.QuatIdentity()},
		LocalInertia: s.CalculateLocalInertia(mass),
	})
	if err != nil {
		t.Fatalf("NewRigidBody failed: %v", err)
	}
	if mass <= 0 {
		body.SetCollisionFlags(body.CollisionFlags() | engine.CFStaticObject)
	}
	return body
}

func TestStepSimulationFixedSteps(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	body := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 10})
	w.AddRigidBody(body, nil)

	if n := w.StepSimulation(step, 1, step); n != 1 {
		t.Errorf("expected 1 step, got %d", n)
	}
	if body.WorldTransform().Origin.Y >= 10 {
		t.Error("body should fall under gravity")
	}

	half := step / 2
	if n := w.StepSimulation(half, 1, step); n != 0 {
		t.Errorf("expected half a frame to take no step, got %d", n)
	}
	if n := w.StepSimulation(half, 1, step); n != 1 {
		t.Errorf("expected accumulated time to take 1 step, got %d", n)
	}

	if n := w.StepSimulation(5*step, 1, step); n != 1 {
		t.Errorf("expected steps capped at 1, got %d", n)
	}
}

func TestMotionStateInterpolation(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	body := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 10})
	w.AddRigidBody(body, nil)

	w.StepSimulation(step, 1, step)
	if body.MotionState().Origin != body.WorldTransform().Origin {
		t.Errorf("expected motion state %v to equal world transform %v after a whole step",
			body.MotionState().Origin, body.WorldTransform().Origin)
	}

	w.StepSimulation(step/2, 1, step)
	if body.MotionState().Origin.Y >= body.WorldTransform().Origin.Y {
		t.Errorf("expected motion state to extrapolate below %v, got %v",
			body.WorldTransform().Origin.Y, body.MotionState().Origin.Y)
	}
}

func TestBoxRestsOnGround(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	box := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 3})
	w.AddRigidBody(ground, nil)
	w.AddRigidBody(box, nil)

	for i := 0; i < 240; i++ {
		w.StepSimulation(step, 1, step)
	}

	y := box.WorldTransform().Origin.Y
	if y < 0.4 || y > 0.6 {
		t.Errorf("expected box to rest at y=0.5, got %v", y)
	}
	if ground.WorldTransform().Origin.Y != -0.5 {
		t.Errorf("static ground moved to %v", ground.WorldTransform().Origin.Y)
	}
}

func TestBoxStacksOnBox(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	lower := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 0.5})
	upper := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 2})
	w.AddRigidBody(ground, nil)
	w.AddRigidBody(lower, nil)
	w.AddRigidBody(upper, nil)

	for i := 0; i < 240; i++ {
		w.StepSimulation(step, 1, step)
	}

	if y := upper.WorldTransform().Origin.Y; y < 1.3 || y > 1.7 {
		t.Errorf("expected upper box to rest on the lower one at y=1.5, got %v", y)
	}
}

func TestNoContactResponseFallsThrough(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	box := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 1})
	box.SetCollisionFlags(engine.CFNoContactResponse)
	w.AddRigidBody(ground, nil)
	w.AddRigidBody(box, nil)

	for i := 0; i < 60; i++ {
		w.StepSimulation(step, 1, step)
	}
	if y := box.WorldTransform().Origin.Y; y > 0 {
		t.Errorf("expected box without contact response to fall through, got y=%v", y)
	}

	// Clearing the flag makes it solid again.
	box.SetCollisionFlags(0)
	box.SetWorldTransform(engine.Transform{Origin: math.Vec3{Y: 3}, Rotation: math.QuatIdentity()})
	box.SetLinearVelocity(math.Vec3{})
	for i := 0; i < 240; i++ {
		w.StepSimulation(step, 1, step)
	}
	if y := box.WorldTransform().Origin.Y; y < 0.4 || y > 0.6 {
		t.Errorf("expected box to land once solid, got y=%v", y)
	}
}

func TestContactHandlerReportsLanding(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	box := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{Y: 2})
	box.SetCollisionFlags(engine.CFCustomMaterialCallback)
	w.AddRigidBody(ground, nil)
	w.AddRigidBody(box, nil)

	var got []engine.Contact
	w.SetContactHandler(func(c engine.Contact) { got = append(got, c) })
	for i := 0; i < 120; i++ {
		w.StepSimulation(step, 1, step)
	}

	if len(got) == 0 {
		t.Fatal("expected the landing to be reported")
	}
	var impulse float32
	for _, c := range got {
		if c.BodyA != box || c.BodyB != ground {
			t.Fatalf("expected the flagged box as BodyA, got %+v", c)
		}
		impulse = max(impulse, c.Impulse)
	}
	first := got[0]
	if first.Normal.Y < 0.99 {
		t.Errorf("expected an upward normal, got %v", first.Normal)
	}
	if y := first.Point.Y; y < -0.1 || y > 0.1 {
		t.Errorf("expected the contact on the ground surface, got y=%v", y)
	}
	if impulse <= 0 {
		t.Error("expected the landing to carry an impulse")
	}

	got = nil
	w.SetContactHandler(nil)
	w.StepSimulation(step, 1, step)
	if len(got) != 0 {
		t.Errorf("expected no reports after clearing the handler, got %d", len(got))
	}
}

func TestContactHandlerNeedsFlagAndFilter(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	plain := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{X: -3, Y: 0.5})
	filtered := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{X: 3, Y: 0.5})
	filtered.SetCollisionFlags(engine.CFCustomMaterialCallback)
	w.AddRigidBody(ground, &engine.CollisionFilter{Group: engine.GroupTerrain, Mask: engine.GroupAll})
	w.AddRigidBody(plain, nil)
	w.AddRigidBody(filtered, &engine.CollisionFilter{Group: engine.GroupDynamic1, Mask: engine.GroupDynamic1})

	calls := 0
	w.SetContactHandler(func(engine.Contact) { calls++ })
	for i := 0; i < 30; i++ {
		w.StepSimulation(step, 1, step)
	}
	if calls != 0 {
		t.Errorf("expected no reports for unflagged or filtered pairs, got %d", calls)
	}
}

func TestSliderMotorStopsAtLimit(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, math.Vec3{})
	body := newBox(t, b, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, 1, math.Vec3{})
	w.AddRigidBody(body, nil)
	body.SetActivationState(engine.DisableDeactivation)

	frame := engine.IdentityTransform()
	c, err := b.NewConstraint(engine.ConstraintSpec{
		Kind:               engine.ConstraintSlider,
		BodyA:              body,
		FrameA:             &frame,
		UseReferenceFrameA: true,
	})
	if err != nil {
		t.Fatalf("NewConstraint failed: %v", err)
	}
	s := c.(engine.SliderConstraint)
	s.SetLinearLimits(-1, 1)
	s.SetPoweredLinearMotor(true)
	s.SetTargetLinearMotorVelocity(2)
	s.SetMaxLinearMotorForce(1000)
	w.AddConstraint(s, true)

	for i := 0; i < 120; i++ {
		w.StepSimulation(step, 1, step)
	}
	if pos := s.LinearPosition(); pos < 0.999 || pos > 1.001 {
		t.Errorf("expected slider at upper limit 1, got %v", pos)
	}
	o := body.WorldTransform().Origin
	if o.Y != 0 || o.Z != 0 {
		t.Errorf("expected motion along X only, got %v", o)
	}

	if w.NumConstraints() != 1 {
		t.Fatalf("expected 1 constraint, got %d", w.NumConstraints())
	}
	s.Destroy()
	if w.NumConstraints() != 0 {
		t.Errorf("expected destroy to remove the constraint, got %d", w.NumConstraints())
	}
}

func TestFixedConstraintNeedsTwoBodies(t *testing.T) {
	b := New()
	body := newBox(t, b, math.Vec3{X: 1, Y: 1, Z: 1}, 1, math.Vec3{})
	if _, err := b.NewConstraint(engine.ConstraintSpec{Kind: engine.ConstraintFixed, BodyA: body}); err == nil {
		t.Error("expected error for single-body fixed constraint")
	}
}

func TestClothFixedNodeHolds(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, true, gravity)
	sb, err := b.NewClothPatch(w, engine.PatchSpec{
		Corners: [4]math.Vec3{
			{X: -1, Y: 1}, {X: 1, Y: 1},
			{X: -1, Y: -1}, {X: 1, Y: -1},
		},
		ResX:               3,
		ResY:               3,
		TotalMass:          1,
		LinearStiffness:    0.4,
		PositionIterations: 10,
	})
	if err != nil {
		t.Fatalf("NewClothPatch failed: %v", err)
	}
	w.AddSoftBody(sb, nil)

	if sb.NumNodes() != 9 {
		t.Fatalf("expected 9 nodes, got %d", sb.NumNodes())
	}
	if sb.NodePosition(2) != (math.Vec3{X: 1, Y: 1}) {
		t.Errorf("expected node 2 at the 10 corner, got %v", sb.NodePosition(2))
	}

	sb.FixNode(0)
	if sb.NodeInverseMass(0) != 0 {
		t.Error("fixed node should have zero inverse mass")
	}
	start := sb.NodePosition(8)
	for i := 0; i < 30; i++ {
		w.StepSimulation(step, 1, step)
	}
	if sb.NodePosition(0) != (math.Vec3{X: -1, Y: 1}) {
		t.Errorf("fixed node moved to %v", sb.NodePosition(0))
	}
	if sb.NodePosition(8).Y >= start.Y {
		t.Errorf("free node should fall, got %v", sb.NodePosition(8))
	}
}

func TestClothAnchorFollowsBody(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, true, math.Vec3{})
	body := newBox(t, b, math.Vec3{X: 0.1, Y: 0.1, Z: 0.1}, 1, math.Vec3{X: -1, Y: 1})
	w.AddRigidBody(body, nil)
	body.SetActivationState(engine.DisableDeactivation)

	sb, err := b.NewClothPatch(w, engine.PatchSpec{
		Corners:            [4]math.Vec3{{X: -1, Y: 1}, {X: 1, Y: 1}, {X: -1, Y: -1}, {X: 1, Y: -1}},
		ResX:               2,
		ResY:               2,
		TotalMass:          1,
		PositionIterations: 4,
	})
	if err != nil {
		t.Fatalf("NewClothPatch failed: %v", err)
	}
	w.AddSoftBody(sb, nil)
	sb.AppendAnchor(0, body, false, 1)
	if sb.NumAnchors() != 1 {
		t.Fatalf("expected 1 anchor, got %d", sb.NumAnchors())
	}

	body.SetLinearVelocity(math.Vec3{X: 3})
	for i := 0; i < 30; i++ {
		w.StepSimulation(step, 1, step)
	}
	if got, want := sb.NodePosition(0), body.WorldTransform().Origin; !got.ApproxEqual(want, 0.001) {
		t.Errorf("expected anchored node at %v, got %v", want, got)
	}

	sb.ClearAnchors()
	if sb.NumAnchors() != 0 {
		t.Error("expected anchors cleared")
	}
}

func TestClothNeedsSoftWorld(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	_, err := b.NewClothPatch(w, engine.PatchSpec{ResX: 2, ResY: 2})
	if !errors.Is(err, engine.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestVehicleWheelsTouchGround(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	ground := newBox(t, b, math.Vec3{X: 50, Y: 0.5, Z: 50}, 0, math.Vec3{Y: -0.5})
	chassis := newBox(t, b, math.Vec3{X: 1, Y: 0.25, Z: 2}, 800, math.Vec3{Y: 0.8})
	w.AddRigidBody(ground, nil)
	w.AddRigidBody(chassis, nil)
	chassis.SetActivationState(engine.DisableDeactivation)

	v, err := b.NewRaycastVehicle(w, chassis, engine.VehicleTuning{FrictionSlip: 1000})
	if err != nil {
		t.Fatalf("NewRaycastVehicle failed: %v", err)
	}
	w.AddAction(v)
	for _, p := range []math.Vec3{{X: 1, Z: 1.5}, {X: -1, Z: 1.5}, {X: 1, Z: -1.5}, {X: -1, Z: -1.5}} {
		v.AddWheel(engine.WheelSpec{
			ConnectionPoint:     p,
			Direction:           math.Vec3{Y: -1},
			Axle:                math.Vec3{X: -1},
			RestLength:          0.35,
			Radius:              0.5,
			IsFront:             p.Z > 0,
			SuspensionStiffness: 20,
			DampingRelaxation:   0.8,
			DampingCompression:  0.6,
			MaxSuspensionTravel: 500,
			MaxSuspensionForce:  6000,
		})
	}
	if v.NumWheels() != 4 {
		t.Fatalf("expected 4 wheels, got %d", v.NumWheels())
	}

	w.StepSimulation(step, 1, step)
	for i := 0; i < v.NumWheels(); i++ {
		if !v.WheelInContact(i) {
			t.Errorf("wheel %d should touch the ground", i)
		}
	}

	chassis.SetLinearVelocity(math.Vec3{Z: 10})
	if got := v.CurrentSpeedKmHour(); got < 35.99 || got > 36.01 {
		t.Errorf("expected 36 km/h, got %v", got)
	}

	v.UpdateWheelTransform(0, true)
	if v.WheelTransform(0).Origin.X <= 0 {
		t.Errorf("expected wheel 0 on the right side, got %v", v.WheelTransform(0).Origin)
	}
}

func TestStatsTrackLiveObjects(t *testing.T) {
	b := New()
	w := newTestWorld(t, b, false, gravity)
	body := newBox(t, b, math.Vec3{X: 1, Y: 1, Z: 1}, 1, math.Vec3{})
	w.AddRigidBody(body, nil)

	if s := b.Stats(); s.Shapes != 1 || s.Bodies != 1 || s.Worlds != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	body.Destroy()
	body.Shape().Destroy()
	w.Destroy()
	if s := b.Stats(); s != (Stats{}) {
		t.Errorf("expected no live objects, got %+v", s)
	}
	if w.NumRigidBodies() != 0 {
		t.Errorf("expected destroyed body to leave the world")
	}
}
