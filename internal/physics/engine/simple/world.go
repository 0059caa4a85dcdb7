package simple

import (
	"slices"

	"github.com/akmonengine/feather"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type solver interface {
	engine.Constraint
	solve(h float32)
	base() *constraint
}

type world struct {
	backend *Backend
	cfg     engine.WorldConfig

	// phys holds every body that responds to contacts; ghosts are the
	// rest, integrated on their own.
	phys   *feather.World
	ghosts []*rigidBody

	bodies      []*rigidBody
	constraints []solver
	softBodies  []*cloth
	vehicles    []*vehicle

	onContact func(engine.Contact)

	// localTime is the unsimulated remainder used to extrapolate motion
	// states between fixed steps.
	localTime float32
	destroyed bool
}

func newWorld(b *Backend, cfg engine.WorldConfig) *world {
	return &world{backend: b, cfg: cfg, phys: newPhysics(cfg.Gravity)}
}

func (w *world) SupportsSoftBodies() bool { return w.cfg.SoftBody }

func (w *world) SetGravity(g math.Vec3) {
	w.cfg.Gravity = g
	w.phys.Gravity = vec64(g)
	for _, b := range w.bodies {
		if !b.isStaticOrKinematic() {
			b.gravity = g
		}
	}
}

func (w *world) Gravity() math.Vec3 { return w.cfg.Gravity }

func (w *world) AddRigidBody(body engine.RigidBody, filter *engine.CollisionFilter) {
	rb := body.(*rigidBody)
	if rb.world == w {
		return
	}
	rb.world = w
	if filter != nil {
		rb.filter = *filter
	}
	if rb.isStaticOrKinematic() {
		rb.activation = engine.IslandSleeping
	} else {
		rb.gravity = w.cfg.Gravity
	}
	w.bodies = append(w.bodies, rb)
	rb.attach()
	w.attachPhysics(rb)
}

func (w *world) RemoveRigidBody(body engine.RigidBody) {
	rb := body.(*rigidBody)
	if rb.world != w {
		return
	}
	rb.world = nil
	w.detachPhysics(rb)
	rb.fb = nil
	w.bodies = slices.DeleteFunc(w.bodies, func(b *rigidBody) bool { return b == rb })
}

func (w *world) attachPhysics(rb *rigidBody) {
	rb.ghost = rb.flags.Has(engine.CFNoContactResponse)
	if rb.ghost {
		w.ghosts = append(w.ghosts, rb)
		return
	}
	w.phys.AddBody(rb.fb)
}

func (w *world) detachPhysics(rb *rigidBody) {
	if rb.ghost {
		w.ghosts = slices.DeleteFunc(w.ghosts, func(b *rigidBody) bool { return b == rb })
		return
	}
	w.phys.RemoveBody(rb.fb)
}

func (w *world) NumRigidBodies() int { return len(w.bodies) }

func (w *world) AddConstraint(c engine.Constraint, disableCollisionsBetweenLinkedBodies bool) {
	s := c.(solver)
	base := s.base()
	if base.world == w {
		return
	}
	base.world = w
	base.disableLinkedCollisions = disableCollisionsBetweenLinkedBodies
	base.capture()
	w.constraints = append(w.constraints, s)
}

func (w *world) RemoveConstraint(c engine.Constraint) {
	s := c.(solver)
	if s.base().world != w {
		return
	}
	s.base().world = nil
	w.constraints = slices.DeleteFunc(w.constraints, func(o solver) bool { return o == s })
}

func (w *world) NumConstraints() int { return len(w.constraints) }

func (w *world) AddSoftBody(sb engine.SoftBody, filter *engine.CollisionFilter) {
	c := sb.(*cloth)
	if !w.cfg.SoftBody || c.world == w {
		return
	}
	c.world = w
	c.gravity = w.cfg.Gravity
	w.softBodies = append(w.softBodies, c)
}

func (w *world) RemoveSoftBody(sb engine.SoftBody) {
	c := sb.(*cloth)
	if c.world != w {
		return
	}
	c.world = nil
	w.softBodies = slices.DeleteFunc(w.softBodies, func(o *cloth) bool { return o == c })
}

func (w *world) NumSoftBodies() int { return len(w.softBodies) }

func (w *world) AddAction(v engine.RaycastVehicle) {
	veh := v.(*vehicle)
	if slices.Contains(w.vehicles, veh) {
		return
	}
	w.vehicles = append(w.vehicles, veh)
}

func (w *world) RemoveAction(v engine.RaycastVehicle) {
	veh := v.(*vehicle)
	w.vehicles = slices.DeleteFunc(w.vehicles, func(o *vehicle) bool { return o == veh })
}

// StepSimulation follows the native engine's clock: time accumulates and
// is consumed in whole fixed steps, at most maxSubSteps per call. With
// maxSubSteps <= 0 the world takes a single variable step of dt.
func (w *world) StepSimulation(dt float32, maxSubSteps int, fixedTimeStep float32) int {
	if w.destroyed || dt <= 0 {
		return 0
	}

	var steps int
	h := fixedTimeStep
	if maxSubSteps > 0 {
		w.localTime += dt
		if w.localTime >= fixedTimeStep {
			steps = int(w.localTime / fixedTimeStep)
			w.localTime -= float32(steps) * fixedTimeStep
		}
		// Steps beyond the cap are dropped, not queued.
		steps = min(steps, maxSubSteps)
	} else {
		w.localTime = 0
		h = dt
		steps = 1
	}

	for i := 0; i < steps; i++ {
		w.singleStep(h)
	}
	w.synchronizeMotionStates()

	for _, b := range w.bodies {
		b.ClearForces()
	}
	return steps
}

func (w *world) singleStep(h float32) {
	for _, v := range w.vehicles {
		v.updateAction(h)
	}

	w.stepPhysics(h)

	for _, c := range w.constraints {
		if c.IsEnabled() {
			c.solve(h)
		}
	}

	w.reportContacts()

	for _, sb := range w.softBodies {
		sb.step(h)
	}

	for _, b := range w.bodies {
		if !b.isStaticOrKinematic() {
			b.updateDeactivation(h)
		}
	}
}

// synchronizeMotionStates extrapolates each active body's render transform
// by the unsimulated remainder of the clock.
func (w *world) synchronizeMotionStates() {
	for _, b := range w.bodies {
		if !b.simulated() {
			b.motion = b.xf
			continue
		}
		b.motion = b.integrateTransform(b.xf, w.localTime)
	}
}

func (w *world) linkedWithoutCollision(a, b *rigidBody) bool {
	for _, c := range w.constraints {
		base := c.base()
		if !base.disableLinkedCollisions {
			continue
		}
		if (base.a == a && base.b == b) || (base.a == b && base.b == a) {
			return true
		}
	}
	return false
}

func axisVec(axis int) math.Vec3 {
	switch axis {
	case 0:
		return math.Vec3{X: 1}
	case 1:
		return math.Vec3{Y: 1}
	default:
		return math.Vec3{Z: 1}
	}
}

func (w *world) SetContactHandler(fn func(engine.Contact)) { w.onContact = fn }

func (w *world) RayTest(from, to math.Vec3) (engine.RayHit, bool) {
	return w.rayTest(from, to, nil)
}

func (w *world) rayTest(from, to math.Vec3, exclude *rigidBody) (engine.RayHit, bool) {
	length := to.Sub(from).Length()
	if length == 0 {
		return engine.RayHit{}, false
	}
	ray := math.NewRay(from, to)

	var hit engine.RayHit
	found := false
	closest := length
	for _, b := range w.bodies {
		if b == exclude || b.flags.Has(engine.CFNoContactResponse) {
			continue
		}
		t, ok := ray.IntersectAABB(b.worldBounds())
		if !ok || t > closest {
			continue
		}
		closest = t
		found = true
		hit = engine.RayHit{
			Body:     b,
			Point:    ray.At(t),
			Normal:   math.Vec3Up,
			Fraction: t / length,
		}
	}
	return hit, found
}

func (w *world) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	for _, b := range w.bodies {
		b.world = nil
		b.fb = nil
	}
	w.phys.Bodies = nil
	w.ghosts = nil
	w.onContact = nil
	for _, c := range w.constraints {
		c.base().world = nil
	}
	for _, sb := range w.softBodies {
		sb.world = nil
	}
	w.bodies, w.constraints, w.softBodies, w.vehicles = nil, nil, nil, nil
	w.backend.stats.Worlds--
}
