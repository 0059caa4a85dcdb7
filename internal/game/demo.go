package game

import (
	gomath "math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/constraint"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/physics/shape"
	"github.com/Faultbox/midgard-physics/internal/physics/softbody"
	"github.com/Faultbox/midgard-physics/internal/physics/vehicle"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Demo scene layout.
const (
	crateCount       = 3
	platformTravel   = 4
	platformSpeed    = 2
	platformPause    = 1
	wheelRadius      = 0.4
	wheelWidth       = 0.3
	chassisHeight    = 0.6
	chassisSpawnY    = 2
	flagWidth        = 0.5
	flagHeight       = 0.33
	flagSegmentsW    = 10
	flagSegmentsH    = 7
	flagPoleHeight   = 1.2
	groundHalfExtent = 100

	// crateImpactHandler counts crate hits harder than minImpact.
	crateImpactHandler = "demo-crate-impacts"
	minImpact          = 0.5
)

// Demo is the stock scene: a ground slab, falling crates, a platform
// sliding back and forth, a vehicle and, in soft body worlds, a flag
// anchored to the vehicle.
type Demo struct {
	Ground   *rigidbody.Body
	Crates   []*rigidbody.Body
	Platform *rigidbody.Body
	Slider   *constraint.Slider
	Motor    *constraint.SliderMotor
	Vehicle  *vehicle.Vehicle
	Flag     *softbody.Cloth

	log     *zap.Logger
	world   *physics.World
	nodes   []*scene.Node
	impacts int
}

// BuildDemo creates and starts every object of the demo scene in w.
// Setup errors are collected; objects that failed to start are left out.
func BuildDemo(w *physics.World, cfg *config.Config, kind vehicle.Kind) (*Demo, error) {
	preset, err := vehicle.PresetFor(kind)
	if err != nil {
		return nil, err
	}
	d := &Demo{log: logger.Named("demo"), world: w}
	var errs error

	ground := d.node(scene.NewBox("ground", math.Vec3{X: 2 * groundHalfExtent, Y: 1, Z: 2 * groundHalfExtent}))
	ground.Position = math.Vec3{Y: -0.5}
	d.Ground = rigidbody.New(w, ground, rigidbody.Options{
		Shape:    shape.Descriptor{Kind: shape.Box},
		Friction: 1,
		Group:    engine.GroupTerrain,
		Mask:     engine.GroupAll,
	})
	errs = multierr.Append(errs, d.Ground.Start())

	for i := 0; i < crateCount; i++ {
		crate := d.node(scene.NewBox("crate", math.Vec3One))
		crate.Position = math.Vec3{X: float32(i)*1.5 - 1.5, Y: 3 + float32(i)*1.5, Z: 8}
		body := rigidbody.New(w, crate, rigidbody.Options{
			Shape:          shape.Descriptor{Kind: shape.Box},
			Mass:           1,
			Restitution:    0.2,
			CollisionFlags: engine.CFCustomMaterialCallback,
		})
		if err := body.Start(); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		d.Crates = append(d.Crates, body)
	}

	w.OnContact(crateImpactHandler, d.countImpact)

	errs = multierr.Append(errs, d.buildPlatform(w))
	errs = multierr.Append(errs, d.buildVehicle(w, preset))
	if w.SoftBody() {
		errs = multierr.Append(errs, d.buildFlag(w, cfg.Cloth))
	}

	d.log.Info("demo scene built",
		zap.Stringer("vehicle", kind),
		zap.Int("crates", len(d.Crates)),
		zap.Bool("flag", d.Flag != nil),
		zap.Int("rigidBodies", w.NumRigidBodies()),
		zap.Int("constraints", w.NumConstraints()))
	return d, errs
}

func (d *Demo) countImpact(c physics.Contact) {
	if c.Impulse < minImpact {
		return
	}
	d.impacts++
	other := "unknown"
	if c.NodeB != nil {
		other = c.NodeB.Name
	}
	d.log.Debug("crate impact",
		zap.String("against", other),
		zap.Float32("impulse", c.Impulse))
}

// Impacts returns the number of crate hits seen so far.
func (d *Demo) Impacts() int { return d.impacts }

func (d *Demo) node(n *scene.Node) *scene.Node {
	d.nodes = append(d.nodes, n)
	return n
}

func (d *Demo) buildPlatform(w *physics.World) error {
	node := d.node(scene.NewBox("platform", math.Vec3{X: 3, Y: 0.3, Z: 3}))
	node.Position = math.Vec3{X: 12, Y: 1}
	zero := math.Vec3{}
	d.Platform = rigidbody.New(w, node, rigidbody.Options{
		Shape:           shape.Descriptor{Kind: shape.Box},
		Mass:            5,
		ActivationState: engine.DisableDeactivation,
		Gravity:         &zero,
	})
	if err := d.Platform.Start(); err != nil {
		return err
	}

	d.Slider = constraint.NewSlider(d.Platform)
	d.Motor = constraint.NewSliderMotor(d.Slider, platformSpeed, platformPause)
	d.Motor.SetMotorLimit(-platformTravel, platformTravel)
	return d.Slider.Start()
}

func (d *Demo) buildVehicle(w *physics.World, p vehicle.Preset) error {
	var maxX, maxZ float32
	for _, o := range p.Offsets {
		maxX = max(maxX, abs32(o.X))
		maxZ = max(maxZ, abs32(o.Z))
	}
	chassis := d.node(scene.NewBox(p.Kind.String(), math.Vec3{X: 2*maxX - wheelWidth, Y: chassisHeight, Z: 2*maxZ + 2*wheelRadius}))
	chassis.Position = math.Vec3{Y: chassisSpawnY}
	body := rigidbody.New(w, chassis, p.ChassisOptions(shape.Descriptor{Kind: shape.Box}))
	if err := body.Start(); err != nil {
		return err
	}

	wheel := scene.NewCylinder("wheel", wheelRadius, wheelWidth, 16)
	wheel.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, gomath.Pi/2)
	d.Vehicle = vehicle.New(w, body, wheel, p.Offsets, p.Axles, p.Tuning)
	return d.Vehicle.Start()
}

func (d *Demo) buildFlag(w *physics.World, cfg config.ClothConfig) error {
	if d.Vehicle == nil {
		return nil
	}
	flag := d.node(scene.NewPlane("flag", flagWidth, flagHeight, flagSegmentsW, flagSegmentsH))
	d.Flag = softbody.New(w, flag, cfg)
	d.Flag.Anchor = d.Vehicle.Chassis()
	d.Flag.AnchorIndices = []softbody.NodeRef{softbody.At(softbody.LeftTop), softbody.At(softbody.LeftBottom)}
	d.Flag.RelativePosition = math.Vec3{Y: flagPoleHeight}
	d.Flag.AbsoluteRotation = math.Vec3{Y: 90}
	return d.Flag.Start()
}

// Attach registers the demo components with l in update order and
// applies reloaded vehicle tuning.
func (d *Demo) Attach(l *Loop) {
	for _, b := range d.Crates {
		l.Add(bodyUpdater{b})
	}
	if d.Platform != nil {
		l.Add(bodyUpdater{d.Platform})
	}
	if d.Motor != nil {
		l.Add(d.Motor)
	}
	if d.Vehicle != nil {
		l.Add(d.Vehicle)
		l.OnReload(func(cfg *config.Config) { d.Vehicle.SetTuning(cfg.Vehicle) })
	}
	if d.Flag != nil {
		l.Add(ComponentFunc(func(float32) { d.Flag.Update() }))
	}
}

// Destroy tears the scene down by destroying every node.
func (d *Demo) Destroy() {
	d.world.RemoveContactHandler(crateImpactHandler)
	if d.Vehicle != nil {
		d.Vehicle.Destroy()
	}
	if d.Slider != nil {
		d.Slider.Destroy()
	}
	for _, n := range d.nodes {
		n.Destroy()
	}
	d.nodes = nil
}

type bodyUpdater struct{ b *rigidbody.Body }

func (u bodyUpdater) Update(float32) { u.b.Update() }

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
