package game

import (
	"context"
	"errors"
	"testing"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine/simple"
	"github.com/Faultbox/midgard-physics/internal/physics/vehicle"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const frame = float32(1.0 / 60.0)

func newWorld(t *testing.T, soft bool) (*physics.World, *simple.Backend) {
	t.Helper()
	cfg := config.Default().Physics
	cfg.SoftBody = soft
	b := simple.New()
	w, err := physics.NewWorld(b, cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	return w, b
}

func TestTickUpdatesInOrder(t *testing.T) {
	w, _ := newWorld(t, false)
	l := NewLoop(w)

	var order []string
	l.Add(
		ComponentFunc(func(float32) { order = append(order, "a") }),
		ComponentFunc(func(float32) { order = append(order, "b") }),
	)

	if n := l.Tick(frame); n != 1 {
		t.Errorf("expected one fixed step, got %d", n)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("unexpected update order %v", order)
	}
	if l.Frame() != 1 || l.Steps() != 1 {
		t.Errorf("expected frame 1 and step 1, got %d and %d", l.Frame(), l.Steps())
	}
}

func TestTickAppliesReloads(t *testing.T) {
	w, _ := newWorld(t, false)
	l := NewLoop(w)

	updates := make(chan *config.Config, 2)
	errs := make(chan error, 1)
	l.Watch(updates, errs)

	var reloaded []*config.Config
	l.OnReload(func(cfg *config.Config) { reloaded = append(reloaded, cfg) })

	good := config.Default()
	good.Physics.Gravity = math.Vec3{Y: -1.62}
	bad := config.Default()
	bad.Physics.FixedTimeStep = 0
	updates <- good
	updates <- bad
	errs <- errors.New("parse failure")

	l.Tick(frame)

	if got := w.Config().Gravity; got != good.Physics.Gravity {
		t.Errorf("expected reloaded gravity, got %v", got)
	}
	if w.Config().FixedTimeStep <= 0 {
		t.Error("an invalid reload should be rejected")
	}
	if len(reloaded) != 1 || reloaded[0] != good {
		t.Errorf("expected one accepted reload, got %d", len(reloaded))
	}

	close(updates)
	close(errs)
	l.Tick(frame)
	l.Tick(frame)
	if l.Frame() != 3 {
		t.Errorf("closed channels should not stall the loop, frame %d", l.Frame())
	}
}

func TestRunFrames(t *testing.T) {
	w, _ := newWorld(t, false)
	l := NewLoop(w)
	var updates int
	l.Add(ComponentFunc(func(float32) { updates++ }))

	if err := l.Run(context.Background(), 30, frame); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if l.Frame() != 30 || updates != 30 {
		t.Errorf("expected 30 frames, got %d frames and %d updates", l.Frame(), updates)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _ := newWorld(t, false)
	l := NewLoop(w)

	ctx, cancel := context.WithCancel(context.Background())
	l.Add(ComponentFunc(func(float32) {
		if l.Frame() == 9 {
			cancel()
		}
	}))

	err := l.Run(ctx, 0, frame)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if l.Frame() != 10 {
		t.Errorf("expected the loop to stop after frame 10, got %d", l.Frame())
	}
}

func TestDemoRigidWorld(t *testing.T) {
	w, _ := newWorld(t, false)
	d, err := BuildDemo(w, config.Default(), vehicle.Pickup)
	if err != nil {
		t.Fatalf("BuildDemo failed: %v", err)
	}
	if d.Flag != nil {
		t.Error("a rigid world should not get a flag")
	}
	if len(d.Crates) != crateCount {
		t.Errorf("expected %d crates, got %d", crateCount, len(d.Crates))
	}
	if !d.Vehicle.Ready().Resolved() {
		t.Error("vehicle should be ready")
	}
	if w.NumConstraints() != 1 {
		t.Errorf("expected the platform slider, got %d constraints", w.NumConstraints())
	}

	l := NewLoop(w)
	d.Attach(l)
	crateY := d.Crates[2].Node().Position.Y
	platformX := d.Platform.Node().Position.X
	if err := l.Run(context.Background(), 120, frame); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := d.Crates[2].Node().Position.Y; got >= crateY {
		t.Errorf("crate should fall, still at %v", got)
	}
	if got := d.Platform.Node().Position.X; got == platformX {
		t.Error("platform should slide")
	}
	if d.Impacts() == 0 {
		t.Error("falling crates should report impacts")
	}
}

func TestDemoSoftWorldFlag(t *testing.T) {
	w, _ := newWorld(t, true)
	d, err := BuildDemo(w, config.Default(), vehicle.LargePickup)
	if err != nil {
		t.Fatalf("BuildDemo failed: %v", err)
	}
	if d.Flag == nil || d.Flag.Native() == nil {
		t.Fatal("a soft world should get an anchored flag")
	}
	if !d.Flag.Anchored() {
		t.Error("flag should be anchored to the vehicle")
	}

	l := NewLoop(w)
	d.Attach(l)
	for i := 0; i < 10; i++ {
		l.Tick(frame)
	}
	mesh := d.Flag.Node.Meshes[0]
	if got, want := mesh.Positions[0], d.Flag.Native().NodePosition(0); got != want {
		t.Errorf("flag mesh should track the patch: %v vs %v", got, want)
	}
}

func TestDemoDestroy(t *testing.T) {
	w, b := newWorld(t, true)
	d, err := BuildDemo(w, config.Default(), vehicle.Truck)
	if err != nil {
		t.Fatalf("BuildDemo failed: %v", err)
	}
	if n := d.Vehicle.Native().NumWheels(); n != 10 {
		t.Errorf("truck should have 10 wheels, got %d", n)
	}

	d.Destroy()
	if w.RemoveContactHandler(crateImpactHandler) {
		t.Error("Destroy should remove the crate impact handler")
	}
	if w.NumRigidBodies() != 0 || w.NumConstraints() != 0 || w.Native().NumSoftBodies() != 0 {
		t.Errorf("expected an empty world, got %d bodies, %d constraints, %d soft bodies",
			w.NumRigidBodies(), w.NumConstraints(), w.Native().NumSoftBodies())
	}
	if s := b.Stats(); s.Vehicles != 0 || s.Bodies != 0 || s.SoftBodies != 0 {
		t.Errorf("expected every native released, got %+v", s)
	}
}

func TestDriveScript(t *testing.T) {
	v := vehicle.New(nil, nil, nil, nil, nil, config.DefaultVehicle())
	s := DriveScript(100)

	s.Apply(v, 0)
	if !v.Control(vehicle.Accelerate) {
		t.Error("frame 0 should press accelerate")
	}
	s.Apply(v, 25)
	if !v.Control(vehicle.Left) {
		t.Error("frame 25 should turn left")
	}
	s.Apply(v, 40)
	if v.Control(vehicle.Left) {
		t.Error("frame 40 should release left")
	}
	s.Apply(v, 70)
	if v.Control(vehicle.Accelerate) || !v.Control(vehicle.Brake) {
		t.Error("frame 70 should swap accelerate for brake")
	}
	s.Apply(v, 71)
	if !v.Control(vehicle.Brake) {
		t.Error("frames without cues should leave controls alone")
	}
}

func TestDriverRecordsSpeed(t *testing.T) {
	w, _ := newWorld(t, false)
	d, err := BuildDemo(w, config.Default(), vehicle.Pickup)
	if err != nil {
		t.Fatalf("BuildDemo failed: %v", err)
	}
	l := NewLoop(w)
	driver := &Driver{Vehicle: d.Vehicle, Script: DriveScript(60)}
	l.Add(driver)
	d.Attach(l)

	if err := l.Run(context.Background(), 60, frame); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(driver.Speeds()) != 60 {
		t.Errorf("expected 60 samples, got %d", len(driver.Speeds()))
	}
}
