package simple

import (
	"github.com/akmonengine/feather/actor"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const (
	sleepLinearThreshold  = 0.8
	sleepAngularThreshold = 1.0
	timeToSleep           = 2.0
)

type rigidBody struct {
	backend *Backend
	world   *world
	shape   *shape

	mass    float32
	invMass float32
	inertia math.Vec3

	xf     engine.Transform // last simulation step
	motion engine.Transform // interpolated, for rendering

	linVel  math.Vec3
	angVel  math.Vec3
	preVel  math.Vec3 // linVel before the current step
	force   math.Vec3
	gravity math.Vec3

	// fb is the feather body carrying the pose through a step; it exists
	// while the body is in a world.
	fb       *actor.RigidBody
	fbStatic bool
	ghost    bool

	flags      engine.CollisionFlags
	activation engine.ActivationState
	sleepTimer float32
	filter     engine.CollisionFilter

	restitution    float32
	friction       float32
	rollingFrict   float32
	linDamping     float32
	angDamping     float32
	ccdThreshold   float32
	ccdSweptRadius float32
	userIndex      int

	destroyed bool
}

func newRigidBody(b *Backend, s *shape, info engine.RigidBodyInfo) *rigidBody {
	start := info.Start
	if start.Rotation.IsZero() {
		start.Rotation = math.QuatIdentity()
	}
	rb := &rigidBody{
		backend:    b,
		shape:      s,
		mass:       info.Mass,
		inertia:    info.LocalInertia,
		xf:         start,
		motion:     start,
		activation: engine.ActiveTag,
		friction:   0.5,
		filter:     engine.CollisionFilter{Group: engine.GroupDefault1, Mask: engine.GroupAll},
		userIndex:  -1,
	}
	if info.Mass > 0 {
		rb.invMass = 1 / info.Mass
	}
	return rb
}

func (r *rigidBody) Shape() engine.Shape { return r.shape }
func (r *rigidBody) Mass() float32       { return r.mass }

func (r *rigidBody) WorldTransform() engine.Transform { return r.xf }

func (r *rigidBody) SetWorldTransform(t engine.Transform) {
	if t.Rotation.IsZero() {
		t.Rotation = math.QuatIdentity()
	}
	r.xf = t
}

func (r *rigidBody) MotionState() engine.Transform { return r.motion }

func (r *rigidBody) SetMotionState(t engine.Transform) {
	if t.Rotation.IsZero() {
		t.Rotation = math.QuatIdentity()
	}
	r.motion = t
}

func (r *rigidBody) isStaticOrKinematic() bool {
	return r.invMass == 0 || r.flags&(engine.CFStaticObject|engine.CFKinematicObject) != 0
}

func (r *rigidBody) IsActive() bool {
	return r.activation != engine.IslandSleeping && r.activation != engine.DisableSimulation
}

func (r *rigidBody) Activate(force bool) {
	if force || !r.isStaticOrKinematic() {
		if r.activation != engine.DisableDeactivation && r.activation != engine.DisableSimulation {
			r.activation = engine.ActiveTag
		}
		r.sleepTimer = 0
	}
}

func (r *rigidBody) ActivationState() engine.ActivationState { return r.activation }

func (r *rigidBody) SetActivationState(s engine.ActivationState) {
	r.activation = s
	r.sleepTimer = 0
}

func (r *rigidBody) CollisionFlags() engine.CollisionFlags     { return r.flags }
func (r *rigidBody) SetCollisionFlags(f engine.CollisionFlags) { r.flags = f }

func (r *rigidBody) SetRestitution(v float32)     { r.restitution = v }
func (r *rigidBody) SetFriction(v float32)        { r.friction = v }
func (r *rigidBody) SetRollingFriction(v float32) { r.rollingFrict = v }

func (r *rigidBody) SetDamping(linear, angular float32) {
	r.linDamping = clamp01(linear)
	r.angDamping = clamp01(angular)
}

func (r *rigidBody) SetCcdMotionThreshold(v float32)   { r.ccdThreshold = v }
func (r *rigidBody) SetCcdSweptSphereRadius(v float32) { r.ccdSweptRadius = v }
func (r *rigidBody) SetGravity(g math.Vec3)            { r.gravity = g }

func (r *rigidBody) LinearVelocity() math.Vec3      { return r.linVel }
func (r *rigidBody) SetLinearVelocity(v math.Vec3)  { r.linVel = v }
func (r *rigidBody) AngularVelocity() math.Vec3     { return r.angVel }
func (r *rigidBody) SetAngularVelocity(v math.Vec3) { r.angVel = v }

func (r *rigidBody) ApplyCentralForce(f math.Vec3) {
	r.force = r.force.Add(f)
}

func (r *rigidBody) ApplyCentralImpulse(i math.Vec3) {
	if r.invMass == 0 {
		return
	}
	r.linVel = r.linVel.Add(i.Scale(r.invMass))
}

func (r *rigidBody) ClearForces() { r.force = math.Vec3{} }

func (r *rigidBody) SetUserIndex(i int) { r.userIndex = i }
func (r *rigidBody) UserIndex() int     { return r.userIndex }

func (r *rigidBody) Destroy() {
	if r.destroyed {
		return
	}
	if r.world != nil {
		r.world.RemoveRigidBody(r)
	}
	r.destroyed = true
	r.backend.stats.Bodies--
}

// worldBounds returns the collision box in world space.
func (r *rigidBody) worldBounds() math.AABB {
	local := r.shape.LocalBounds()
	if r.shape.Kind() == engine.ShapePlane {
		return local
	}
	return local.Transform(math.Compose(r.xf.Origin, r.xf.Rotation, math.Vec3One))
}

func (r *rigidBody) simulated() bool {
	return !r.isStaticOrKinematic() && r.IsActive()
}

// integrateTransform advances t by the current velocities over h.
func (r *rigidBody) integrateTransform(t engine.Transform, h float32) engine.Transform {
	t.Origin = t.Origin.Add(r.linVel.Scale(h))
	if r.angVel != (math.Vec3{}) {
		w := r.angVel
		spin := math.Quat{X: w.X, Y: w.Y, Z: w.Z, W: 0}.Mul(t.Rotation)
		t.Rotation = math.Quat{
			X: t.Rotation.X + 0.5*h*spin.X,
			Y: t.Rotation.Y + 0.5*h*spin.Y,
			Z: t.Rotation.Z + 0.5*h*spin.Z,
			W: t.Rotation.W + 0.5*h*spin.W,
		}.Normalize()
	}
	return t
}

func (r *rigidBody) updateDeactivation(h float32) {
	if r.activation == engine.DisableDeactivation || r.activation == engine.IslandSleeping {
		return
	}
	if r.linVel.Length() < sleepLinearThreshold && r.angVel.Length() < sleepAngularThreshold {
		r.sleepTimer += h
	} else {
		r.sleepTimer = 0
	}
	if r.sleepTimer >= timeToSleep {
		r.activation = engine.IslandSleeping
		r.linVel = math.Vec3{}
		r.angVel = math.Vec3{}
	}
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
