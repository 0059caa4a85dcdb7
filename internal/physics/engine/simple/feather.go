package simple

import (
	gomath "math"

	"github.com/akmonengine/feather"
	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const (
	// substeps per fixed step; feather solves each contact once per substep.
	substeps = 4

	gridCellSize  = 2.0
	gridTableSize = 4096

	// maxDampingRate stands in for a damping factor of 1, which has no
	// finite exponential rate.
	maxDampingRate = 1e3
)

// newPhysics creates the feather world that integrates and collides the
// rigid bodies of w.
func newPhysics(g math.Vec3) *feather.World {
	return &feather.World{
		Gravity:     vec64(g),
		Substeps:    substeps,
		Workers:     feather.DEFAULT_WORKERS,
		SpatialGrid: feather.NewSpatialGrid(gridCellSize, gridTableSize),
	}
}

// stepPhysics runs one fixed step of h through feather's pipeline:
// integrate, find contacts, solve positions, derive velocities, solve
// velocities. Sleep is left to updateDeactivation so the activation states
// of the port keep their meaning.
func (w *world) stepPhysics(h float32) {
	for _, b := range w.bodies {
		b.push(w, h)
	}

	p := w.phys
	sub := float64(h) / float64(substeps)
	for range substeps {
		for _, fb := range p.Bodies {
			fb.Integrate(sub, p.Gravity)
		}
		contacts := feather.NarrowPhase(feather.BroadPhase(p.SpatialGrid, p.Bodies, p.Workers), p.Workers)
		for _, c := range contacts {
			c.SolvePosition(sub)
		}
		for _, fb := range p.Bodies {
			fb.Update(sub)
		}
		for _, c := range contacts {
			c.SolveVelocity(sub)
		}

		// Bodies without contact response fly through everything.
		for _, b := range w.ghosts {
			if b.simulated() {
				b.fb.Integrate(sub, p.Gravity)
				b.fb.Update(sub)
			}
		}
	}

	for _, b := range w.bodies {
		b.pull()
	}
}

// attach creates the feather body. Static and kinematic bodies become
// feather static bodies, which the solver never moves.
func (r *rigidBody) attach() {
	kind := actor.BodyTypeDynamic
	density := 0.0
	fs := featherShape(r.shape)
	if r.isStaticOrKinematic() {
		kind = actor.BodyTypeStatic
	} else if unit := fs.ComputeMass(1); unit > 0 && !gomath.IsInf(unit, 0) {
		density = float64(r.mass) / unit
	} else {
		density = float64(r.mass)
	}
	r.fb = actor.NewRigidBody(transform64(r.xf), fs, kind, density)
	r.fbStatic = kind == actor.BodyTypeStatic
}

// push copies the port state into the feather body before a step. Gravity
// differing from the world's and accumulated forces are folded into the
// velocity, since feather only integrates world gravity.
func (r *rigidBody) push(w *world, h float32) {
	if r.fbStatic != r.isStaticOrKinematic() || r.ghost != r.flags.Has(engine.CFNoContactResponse) {
		w.detachPhysics(r)
		r.attach()
		w.attachPhysics(r)
	}
	r.preVel = r.linVel

	fb := r.fb
	fb.Transform = transform64(r.xf)
	fb.Material.Restitution = float64(r.restitution)
	fb.Material.StaticFriction = float64(r.friction)
	fb.Material.DynamicFriction = float64(r.friction)
	fb.Material.LinearDamping = dampingRate(r.linDamping)
	fb.Material.AngularDamping = dampingRate(r.angDamping)

	if !r.simulated() {
		fb.Velocity = mgl64.Vec3{}
		fb.AngularVelocity = mgl64.Vec3{}
		return
	}
	v := r.linVel.
		Add(r.gravity.Sub(w.cfg.Gravity).Scale(h)).
		Add(r.force.Scale(r.invMass * h))
	fb.Velocity = vec64(v)
	fb.AngularVelocity = vec64(r.angVel)
}

// pull copies the result back. Bodies that were not simulated keep their
// pose even if a contact nudged their feather twin.
func (r *rigidBody) pull() {
	if !r.simulated() {
		return
	}
	r.xf = engine.Transform{
		Origin:   vec32(r.fb.Transform.Position),
		Rotation: quat32(r.fb.Transform.Rotation),
	}
	r.linVel = vec32(r.fb.Velocity)
	r.angVel = vec32(r.fb.AngularVelocity)
}

// featherShape maps a port shape onto the closest feather primitive.
// Kinds feather has no primitive for collide as their local box.
func featherShape(s *shape) actor.ShapeInterface {
	switch s.desc.Kind {
	case engine.ShapeSphere:
		sc := s.scaling
		return &actor.Sphere{Radius: float64(s.desc.Radius * max(sc.X, sc.Y, sc.Z))}
	case engine.ShapePlane:
		n := s.desc.PlaneNormal
		if n == (math.Vec3{}) {
			n = math.Vec3Up
		}
		return &actor.Plane{Normal: vec64(n.Normalize()), Distance: float64(s.desc.PlaneConstant)}
	}
	half := s.LocalBounds().Size().Scale(0.5)
	return &actor.Box{HalfExtents: vec64(half)}
}

// dampingRate converts a per-second damping factor into the exponential
// rate feather applies.
func dampingRate(d float32) float64 {
	if d <= 0 {
		return 0
	}
	if d >= 1 {
		return maxDampingRate
	}
	return -gomath.Log(1 - float64(d))
}

func vec64(v math.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

func vec32(v mgl64.Vec3) math.Vec3 {
	return math.Vec3{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

func transform64(t engine.Transform) actor.Transform {
	q := t.Rotation
	if q.IsZero() {
		q = math.QuatIdentity()
	}
	return actor.Transform{
		Position: vec64(t.Origin),
		Rotation: mgl64.Quat{W: float64(q.W), V: mgl64.Vec3{float64(q.X), float64(q.Y), float64(q.Z)}},
	}
}

func quat32(q mgl64.Quat) math.Quat {
	return math.Quat{X: float32(q.V[0]), Y: float32(q.V[1]), Z: float32(q.V[2]), W: float32(q.W)}.Normalize()
}
