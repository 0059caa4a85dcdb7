// Package rigidbody ties a scene node to a native rigid body for the
// node's lifetime.
package rigidbody

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/shape"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// State is the lifecycle state of a Body.
type State int

const (
	Uninitialized State = iota
	Building
	Active
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	case Active:
		return "active"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options declares a body. Zero values mean "leave the native default".
type Options struct {
	Shape shape.Descriptor
	// Mass <= 0 makes the body static.
	Mass float32

	Restitution     float32
	Friction        float32
	RollingFriction float32
	LinearDamping   float32
	AngularDamping  float32

	ActivationState engine.ActivationState
	// CollisionFlags are added to the static flag derived from Mass.
	CollisionFlags engine.CollisionFlags

	CcdMotionThreshold   float32
	CcdSweptSphereRadius float32

	// Group and Mask are only applied when both are set.
	Group engine.CollisionGroup
	Mask  engine.CollisionGroup

	Gravity *math.Vec3
}

// Dependent is an object built on a body's native handle.
type Dependent struct {
	// Teardown runs before the body is destroyed for good.
	Teardown func()
	// Release and Rebuild bracket a native rebuild such as SetMass.
	// Release runs while the old native body still exists, Rebuild once
	// the new one is in the world. A dependent without Release is torn
	// down instead.
	Release func()
	Rebuild func()
}

type dependent struct {
	id int
	Dependent
}

// Body is a scene node's rigid body.
type Body struct {
	log     *zap.Logger
	world   *physics.World
	factory *shape.Factory
	node    *scene.Node
	opts    Options

	// desc holds the resolved descriptor after the first build so
	// rebuilds never infer dimensions again.
	desc     shape.Descriptor
	resolved bool
	offset   math.Vec3

	native      engine.RigidBody
	nativeShape engine.Shape
	state       State
	ready       *physics.Future[*Body]

	dependents   []dependent
	nextDepID    int
	cancelSwitch func()
}

// New declares a body for node. Nothing native exists until Start. The
// body is destroyed with the node.
func New(world *physics.World, node *scene.Node, opts Options) *Body {
	b := &Body{
		log:   logger.Named("rigidbody"),
		world: world,
		node:  node,
		opts:  opts,
		ready: physics.NewFuture[*Body](),
	}
	if world != nil {
		b.factory = shape.NewFactory(world)
	}
	if node != nil {
		node.OnDestroy(b.Destroy)
	}
	return b
}

// Start builds the native body and inserts it into the world. Ready
// callbacks run in registration order before the body turns Active. A
// destroyed body, including one dropped by a world mode switch, cannot be
// started again.
func (b *Body) Start() error {
	if b.state == Destroyed {
		return &physics.ConfigurationError{Component: "rigid body", Reason: "body destroyed; create a new one"}
	}
	if b.state != Uninitialized {
		return nil
	}
	if b.world == nil || b.node == nil {
		return &physics.ConfigurationError{Component: "rigid body", Reason: "needs a world and a node"}
	}

	b.state = Building
	if err := b.build(); err != nil {
		b.state = Uninitialized
		return fmt.Errorf("start rigid body %q: %w", b.node.Name, err)
	}
	b.cancelSwitch = b.world.OnSwitch(b.discard)

	b.ready.Resolve(b)
	if b.state == Building {
		b.state = Active
	}
	return nil
}

func (b *Body) build() error {
	desc := b.opts.Shape
	if b.resolved {
		desc = b.desc
	}
	built, err := b.factory.Build(b.node, desc, b.opts.Mass)
	if err != nil {
		return err
	}
	b.desc, b.resolved = built.Desc, true
	b.offset = built.Offset
	b.native, b.nativeShape = built.Body, built.Shape

	b.applyOptions()
	b.world.AddRigidBody(b.native, b.filter())
	b.log.Debug("rigid body built",
		zap.String("node", b.node.Name),
		zap.String("shape", string(b.desc.Kind)),
		zap.Float32("mass", b.opts.Mass))
	return nil
}

func (b *Body) applyOptions() {
	n, o := b.native, b.opts
	if o.Restitution != 0 {
		n.SetRestitution(o.Restitution)
	}
	if o.Friction != 0 {
		n.SetFriction(o.Friction)
	}
	if o.RollingFriction != 0 {
		n.SetRollingFriction(o.RollingFriction)
	}
	if o.LinearDamping != 0 || o.AngularDamping != 0 {
		n.SetDamping(o.LinearDamping, o.AngularDamping)
	}
	if o.ActivationState != 0 {
		n.SetActivationState(o.ActivationState)
	}

	flags := n.CollisionFlags() | o.CollisionFlags
	if o.Mass <= 0 {
		flags |= engine.CFStaticObject
	}
	n.SetCollisionFlags(flags)

	if o.CcdMotionThreshold != 0 {
		n.SetCcdMotionThreshold(o.CcdMotionThreshold)
	}
	if o.CcdSweptSphereRadius != 0 {
		n.SetCcdSweptSphereRadius(o.CcdSweptSphereRadius)
	}
	if o.Gravity != nil {
		n.SetGravity(*o.Gravity)
	}
}

func (b *Body) filter() *engine.CollisionFilter {
	if b.opts.Group == 0 || b.opts.Mask == 0 {
		return nil
	}
	return &engine.CollisionFilter{Group: b.opts.Group, Mask: b.opts.Mask}
}

// OnReady runs fn once the native body exists.
func (b *Body) OnReady(fn func(*Body)) { b.ready.Then(fn) }

// Ready resolves when the native body exists.
func (b *Body) Ready() *physics.Future[*Body] { return b.ready }

// Update copies the interpolated native transform into the node and
// destroys the body once the node leaves the world bounds.
func (b *Body) Update() {
	if b.state != Active {
		return
	}
	if b.native.IsActive() {
		b.SyncNode()
	}

	if pos := b.node.WorldPosition(); !b.world.InBounds(pos) {
		b.log.Info("body left world bounds",
			zap.String("node", b.node.Name),
			zap.Float32("x", pos.X), zap.Float32("y", pos.Y), zap.Float32("z", pos.Z))
		b.native.SetActivationState(engine.DisableSimulation)
		b.Destroy()
	}
}

// SyncNode copies the interpolated native transform into the node
// regardless of the activation state.
func (b *Body) SyncNode() {
	if b.native == nil {
		return
	}
	xf := b.native.MotionState()
	b.node.SetWorldTransform(xf.Origin.Sub(xf.Rotation.Rotate(b.offset)), xf.Rotation)
}

// Reset teleports the body, defaulting to the node's current world
// transform, and clears its forces and velocities.
func (b *Body) Reset(pos *math.Vec3, rot *math.Quat) {
	if b.state != Active {
		return
	}
	p, r := b.node.WorldPosition(), b.node.WorldRotation()
	if pos != nil {
		p = *pos
	}
	if rot != nil {
		r = *rot
	}
	xf := engine.Transform{Origin: p.Add(r.Rotate(b.offset)), Rotation: r}

	b.native.SetWorldTransform(xf)
	b.native.ClearForces()
	b.native.SetLinearVelocity(math.Vec3{})
	b.native.SetAngularVelocity(math.Vec3{})
	b.native.SetMotionState(xf)
	b.native.Activate(true)
	b.node.SetWorldTransform(p, r)
}

// SetMass rebuilds the native body with a new mass. The old native body
// and its shape are destroyed; dependents are released before and rebuilt
// after, so this is meant for setup and tuning rather than per-frame use.
// Velocities carry over.
func (b *Body) SetMass(m float32) error {
	b.opts.Mass = m
	if b.state != Active {
		return nil
	}

	linVel, angVel := b.native.LinearVelocity(), b.native.AngularVelocity()
	kept := b.releaseDependents()
	b.releaseNative()
	if err := b.build(); err != nil {
		b.teardownDependents()
		b.finish()
		return fmt.Errorf("rebuild rigid body %q: %w", b.node.Name, err)
	}
	b.native.SetLinearVelocity(linVel)
	b.native.SetAngularVelocity(angVel)
	for _, d := range kept {
		if d.Rebuild != nil {
			d.Rebuild()
		}
	}
	b.log.Debug("rigid body rebuilt",
		zap.String("node", b.node.Name),
		zap.Float32("mass", m),
		zap.Int("dependents", len(kept)))
	return nil
}

// AddDependent registers d against the native body. The returned func
// removes the registration.
func (b *Body) AddDependent(d Dependent) (remove func()) {
	b.nextDepID++
	id := b.nextDepID
	b.dependents = append(b.dependents, dependent{id: id, Dependent: d})
	return func() { b.removeDependent(id) }
}

func (b *Body) removeDependent(id int) {
	for i, d := range b.dependents {
		if d.id == id {
			b.dependents = append(b.dependents[:i], b.dependents[i+1:]...)
			return
		}
	}
}

// NumDependents returns the number of registered dependents.
func (b *Body) NumDependents() int { return len(b.dependents) }

func (b *Body) teardownDependents() {
	deps := b.dependents
	b.dependents = nil
	for _, d := range deps {
		if d.Teardown != nil {
			d.Teardown()
		}
	}
}

// releaseDependents releases every dependent that can be rebuilt and tears
// down the rest. It returns the released ones.
func (b *Body) releaseDependents() []dependent {
	deps := slices.Clone(b.dependents)
	kept := deps[:0]
	for _, d := range deps {
		if d.Release == nil {
			b.removeDependent(d.id)
			if d.Teardown != nil {
				d.Teardown()
			}
			continue
		}
		d.Release()
		kept = append(kept, d)
	}
	return kept
}

func (b *Body) releaseNative() {
	if b.native == nil {
		return
	}
	b.world.RemoveRigidBody(b.native)
	b.world.Mapping().Unregister(b.node)
	b.native.Destroy()
	b.nativeShape.Destroy()
	b.native, b.nativeShape = nil, nil
}

// Destroy tears down dependents, removes the body from the world and
// releases the native body and shape. It is safe to call more than once.
func (b *Body) Destroy() {
	if b.state == Destroyed {
		return
	}
	b.teardownDependents()
	b.releaseNative()
	b.finish()
	if b.node != nil {
		b.log.Debug("rigid body destroyed", zap.String("node", b.node.Name))
	}
}

func (b *Body) finish() {
	if b.cancelSwitch != nil {
		b.cancelSwitch()
		b.cancelSwitch = nil
	}
	b.state = Destroyed
}

// discard drops the native body without touching the world that owned it.
func (b *Body) discard() {
	b.dependents = nil
	b.native, b.nativeShape = nil, nil
	b.cancelSwitch = nil
	b.state = Destroyed
}

// State returns the lifecycle state.
func (b *Body) State() State { return b.state }

// Native returns the native body, nil unless Active or Building.
func (b *Body) Native() engine.RigidBody { return b.native }

// Node returns the owning node.
func (b *Body) Node() *scene.Node { return b.node }

// World returns the physics world.
func (b *Body) World() *physics.World { return b.world }

// Mass returns the declared mass.
func (b *Body) Mass() float32 { return b.opts.Mass }

// Descriptor returns the resolved shape descriptor once built.
func (b *Body) Descriptor() shape.Descriptor {
	if b.resolved {
		return b.desc
	}
	return b.opts.Shape
}

// SetLinearVelocity sets the native linear velocity and wakes the body.
func (b *Body) SetLinearVelocity(v math.Vec3) {
	if b.native != nil {
		b.native.Activate(true)
		b.native.SetLinearVelocity(v)
	}
}

// ApplyCentralImpulse pushes the body through its center of mass.
func (b *Body) ApplyCentralImpulse(i math.Vec3) {
	if b.native != nil {
		b.native.Activate(true)
		b.native.ApplyCentralImpulse(i)
	}
}

// SetGravity overrides gravity for this body.
func (b *Body) SetGravity(g math.Vec3) {
	b.opts.Gravity = &g
	if b.native != nil {
		b.native.SetGravity(g)
	}
}

// Wake activates a sleeping body.
func (b *Body) Wake() {
	if b.native != nil {
		b.native.Activate(true)
	}
}

// SetActivationState sets the native activation state.
func (b *Body) SetActivationState(s engine.ActivationState) {
	b.opts.ActivationState = s
	if b.native != nil {
		b.native.SetActivationState(s)
	}
}

// SetCollisionFlags replaces the user collision flags. The static flag
// still follows the mass.
func (b *Body) SetCollisionFlags(f engine.CollisionFlags) {
	b.opts.CollisionFlags = f
	if b.native == nil {
		return
	}
	if b.opts.Mass <= 0 {
		f |= engine.CFStaticObject
	}
	b.native.SetCollisionFlags(f)
}
