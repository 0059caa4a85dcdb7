package simple

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// constraint pins the constraint frames of its bodies together. Variants
// override solve to relax the degrees of freedom they leave free.
type constraint struct {
	backend *Backend
	world   *world
	kind    engine.ConstraintKind
	a, b    *rigidBody
	spec    engine.ConstraintSpec

	// localA/localB are the pivot frames in body space; worldRef stands in
	// for body B when the constraint is anchored to the world.
	localA   engine.Transform
	localB   engine.Transform
	worldRef engine.Transform
	relRot   math.Quat

	threshold               float32
	enabled                 bool
	disableLinkedCollisions bool
	destroyed               bool
}

func newConstraint(bk *Backend, spec engine.ConstraintSpec) (engine.Constraint, error) {
	a, ok := spec.BodyA.(*rigidBody)
	if !ok || a == nil {
		return nil, fmt.Errorf("simple: constraint needs body A, got %T", spec.BodyA)
	}
	var b *rigidBody
	if spec.BodyB != nil {
		if b, ok = spec.BodyB.(*rigidBody); !ok {
			return nil, fmt.Errorf("simple: constraint body B has type %T", spec.BodyB)
		}
	}
	if spec.Kind == engine.ConstraintFixed && b == nil {
		return nil, fmt.Errorf("simple: fixed constraint needs two bodies")
	}

	base := &constraint{
		backend:   bk,
		kind:      spec.Kind,
		a:         a,
		b:         b,
		spec:      spec,
		threshold: float32(gomath.MaxFloat32),
		enabled:   true,
	}
	base.localA, base.localB = pivotFrames(spec)

	switch spec.Kind {
	case engine.ConstraintSlider:
		return &slider{constraint: base, linLower: 1, linUpper: -1, angLower: 0, angUpper: 0, maxLinForce: 1000}, nil
	case engine.ConstraintHinge:
		return &hinge{constraint: base, low: 1, high: -1}, nil
	case engine.ConstraintConeTwist:
		return &coneTwist{constraint: base}, nil
	case engine.ConstraintGeneric6Dof:
		return &sixDof{constraint: base}, nil
	case engine.ConstraintGeneric6DofSpring:
		return &sixDofSpring{sixDof: sixDof{constraint: base}}, nil
	case engine.ConstraintFixed, engine.ConstraintPointToPoint:
		return base, nil
	}
	return nil, fmt.Errorf("simple: constraint kind %v: %w", spec.Kind, engine.ErrUnsupported)
}

func pivotFrames(spec engine.ConstraintSpec) (a, b engine.Transform) {
	a = engine.Transform{Origin: spec.PivotA, Rotation: math.QuatIdentity()}
	b = engine.Transform{Origin: spec.PivotB, Rotation: math.QuatIdentity()}
	if spec.FrameA != nil {
		a = *spec.FrameA
	}
	if spec.FrameB != nil {
		b = *spec.FrameB
	}
	return a, b
}

// capture records the world anchor of single-body constraints and the
// relative orientation locked by fixed constraints.
func (c *constraint) capture() {
	c.worldRef = c.a.xf.Mul(c.localA)
	if c.b != nil {
		c.relRot = c.b.xf.Rotation.Conjugate().Mul(c.a.xf.Rotation).Normalize()
	}
}

func (c *constraint) base() *constraint           { return c }
func (c *constraint) Kind() engine.ConstraintKind { return c.kind }

func (c *constraint) BodyA() engine.RigidBody { return c.a }

func (c *constraint) BodyB() engine.RigidBody {
	if c.b == nil {
		return nil
	}
	return c.b
}

func (c *constraint) SetBreakingImpulseThreshold(v float32) { c.threshold = v }
func (c *constraint) BreakingImpulseThreshold() float32     { return c.threshold }
func (c *constraint) IsEnabled() bool                       { return c.enabled }
func (c *constraint) SetEnabled(enabled bool)               { c.enabled = enabled }

func (c *constraint) Destroy() {
	if c.destroyed {
		return
	}
	if c.world != nil {
		c.world.RemoveConstraint(c.self())
	}
	c.destroyed = true
	c.backend.stats.Constraints--
}

// self returns the registered solver wrapping c.
func (c *constraint) self() engine.Constraint {
	if c.world != nil {
		for _, s := range c.world.constraints {
			if s.base() == c {
				return s
			}
		}
	}
	return c
}

// frameB returns the target frame in world space.
func (c *constraint) frameB() engine.Transform {
	if c.b == nil {
		return c.worldRef
	}
	return c.b.xf.Mul(c.localB)
}

func (c *constraint) solve(h float32) {
	c.pin(h, math.Vec3{})
	if c.kind == engine.ConstraintFixed {
		c.lockRotation()
	}
}

// pin moves the bodies so frame A's origin meets frame B's origin, leaving
// the components along free unconstrained. The correction impulse is
// compared against the breaking threshold.
func (c *constraint) pin(h float32, free math.Vec3) {
	pa := c.a.xf.Apply(c.localA.Origin)
	pb := c.frameB().Origin
	diff := pb.Sub(pa)
	if free != (math.Vec3{}) {
		diff = diff.Sub(free.Scale(diff.Dot(free)))
	}
	if diff.Length() < 1e-6 {
		return
	}

	invA := c.a.invMassIfSimulated()
	var invB float32
	if c.b != nil {
		invB = c.b.invMassIfSimulated()
	}
	total := invA + invB
	if total == 0 {
		return
	}

	if h > 0 && diff.Length()/h/total > c.threshold {
		c.enabled = false
		return
	}

	c.a.xf.Origin = c.a.xf.Origin.Add(diff.Scale(invA / total))
	c.a.linVel = removeAlong(c.a.linVel, diff.Normalize())
	if c.b != nil && invB > 0 {
		c.b.xf.Origin = c.b.xf.Origin.Sub(diff.Scale(invB / total))
		c.b.linVel = removeAlong(c.b.linVel, diff.Normalize())
	}
}

func (c *constraint) lockRotation() {
	if c.b == nil || c.a.invMassIfSimulated() == 0 {
		return
	}
	c.a.xf.Rotation = c.b.xf.Rotation.Mul(c.relRot).Normalize()
	c.a.angVel = c.b.angVel
}

func (r *rigidBody) invMassIfSimulated() float32 {
	if r.isStaticOrKinematic() {
		return 0
	}
	return r.invMass
}

func removeAlong(v, n math.Vec3) math.Vec3 {
	return v.Sub(n.Scale(v.Dot(n)))
}

type slider struct {
	*constraint
	linLower, linUpper float32
	angLower, angUpper float32

	linMotor    bool
	linVelocity float32
	maxLinForce float32

	angMotor    bool
	angVelocity float32
	maxAngForce float32
}

func (s *slider) SetLinearLimits(lower, upper float32)    { s.linLower, s.linUpper = lower, upper }
func (s *slider) SetAngularLimits(lower, upper float32)   { s.angLower, s.angUpper = lower, upper }
func (s *slider) SetPoweredLinearMotor(on bool)           { s.linMotor = on }
func (s *slider) SetTargetLinearMotorVelocity(v float32)  { s.linVelocity = v }
func (s *slider) TargetLinearMotorVelocity() float32      { return s.linVelocity }
func (s *slider) SetMaxLinearMotorForce(f float32)        { s.maxLinForce = f }
func (s *slider) SetPoweredAngularMotor(on bool)          { s.angMotor = on }
func (s *slider) SetTargetAngularMotorVelocity(v float32) { s.angVelocity = v }
func (s *slider) SetMaxAngularMotorForce(f float32)       { s.maxAngForce = f }

// axis is the sliding direction: the X axis of frame B.
func (s *slider) axis() math.Vec3 {
	ref := s.frameB()
	if s.spec.UseReferenceFrameA || s.b == nil {
		ref = s.worldRef
		if s.b != nil {
			ref = s.a.xf.Mul(s.localA)
		}
	}
	return ref.Rotation.Rotate(math.Vec3{X: 1}).Normalize()
}

// LinearPosition is the offset of frame A's origin along the slider axis.
func (s *slider) LinearPosition() float32 {
	pa := s.a.xf.Apply(s.localA.Origin)
	return pa.Sub(s.frameB().Origin).Dot(s.axis())
}

func (s *slider) solve(h float32) {
	axis := s.axis()
	s.pin(h, axis)
	if !s.enabled || s.a.invMassIfSimulated() == 0 {
		return
	}

	// Motion perpendicular to the axis and all rotation are locked, except
	// spin around the axis when an angular motor drives it.
	along := s.a.linVel.Dot(axis)
	s.a.linVel = axis.Scale(along)
	s.a.angVel = math.Vec3{}
	if s.angMotor {
		s.a.angVel = axis.Scale(s.angVelocity)
	}

	if s.linMotor {
		dv := s.linVelocity - along
		maxDv := s.maxLinForce * s.a.invMass * h
		dv = min(max(dv, -maxDv), maxDv)
		s.a.linVel = s.a.linVel.Add(axis.Scale(dv))
		s.a.xf.Origin = s.a.xf.Origin.Add(axis.Scale(dv * h))
	}

	if s.linLower <= s.linUpper {
		pos := s.LinearPosition()
		switch {
		case pos < s.linLower:
			s.a.xf.Origin = s.a.xf.Origin.Add(axis.Scale(s.linLower - pos))
			if s.a.linVel.Dot(axis) < 0 {
				s.a.linVel = math.Vec3{}
			}
		case pos > s.linUpper:
			s.a.xf.Origin = s.a.xf.Origin.Sub(axis.Scale(pos - s.linUpper))
			if s.a.linVel.Dot(axis) > 0 {
				s.a.linVel = math.Vec3{}
			}
		}
	}
}

type hinge struct {
	*constraint
	low, high                   float32
	softness, bias, relaxation  float32
	motor                       bool
	motorVelocity, motorImpulse float32
	angle                       float32
}

func (hg *hinge) SetLimit(low, high, softness, bias, relaxation float32) {
	hg.low, hg.high = low, high
	hg.softness, hg.bias, hg.relaxation = softness, bias, relaxation
}

func (hg *hinge) EnableAngularMotor(enable bool, targetVelocity, maxImpulse float32) {
	hg.motor, hg.motorVelocity, hg.motorImpulse = enable, targetVelocity, maxImpulse
}

func (hg *hinge) HingeAngle() float32 { return hg.angle }

func (hg *hinge) solve(h float32) {
	hg.pin(h, math.Vec3{})
	if !hg.enabled {
		return
	}
	axis := hg.a.xf.Rotation.Rotate(hingeAxis(hg.spec)).Normalize()
	if hg.a.invMassIfSimulated() > 0 {
		w := axis.Scale(hg.a.angVel.Dot(axis))
		if hg.motor {
			w = axis.Scale(hg.motorVelocity)
		}
		hg.a.angVel = w
	}
	hg.angle += hg.a.angVel.Dot(axis) * h
	if hg.low <= hg.high {
		hg.angle = min(max(hg.angle, hg.low), hg.high)
	}
}

func hingeAxis(spec engine.ConstraintSpec) math.Vec3 {
	if spec.AxisA != (math.Vec3{}) {
		return spec.AxisA
	}
	// Frame based hinges rotate around the frame's Z axis.
	rot := math.QuatIdentity()
	if spec.FrameA != nil {
		rot = spec.FrameA.Rotation
	}
	return rot.Rotate(math.Vec3{Z: 1})
}

type coneTwist struct {
	*constraint
	swing1, swing2, twist float32
}

func (ct *coneTwist) SetLimit(swingSpan1, swingSpan2, twistSpan float32) {
	ct.swing1, ct.swing2, ct.twist = swingSpan1, swingSpan2, twistSpan
}

type sixDof struct {
	*constraint
	linLower, linUpper math.Vec3
	angLower, angUpper math.Vec3
}

func (d *sixDof) SetLinearLowerLimit(v math.Vec3)  { d.linLower = v }
func (d *sixDof) SetLinearUpperLimit(v math.Vec3)  { d.linUpper = v }
func (d *sixDof) SetAngularLowerLimit(v math.Vec3) { d.angLower = v }
func (d *sixDof) SetAngularUpperLimit(v math.Vec3) { d.angUpper = v }

// solve pins only the linear axes whose range collapsed to a point.
func (d *sixDof) solve(h float32) {
	var free math.Vec3
	locked := 0
	for axis := 0; axis < 3; axis++ {
		if d.linLower.Component(axis) == d.linUpper.Component(axis) {
			locked++
			continue
		}
		free = free.Add(axisVec(axis))
	}
	switch locked {
	case 3:
		d.pin(h, math.Vec3{})
	case 2:
		d.pin(h, free)
	}
}

type sixDofSpring struct {
	sixDof
	springs   [6]bool
	stiffness [6]float32
	damping   [6]float32
	rest      math.Vec3
}

func (s *sixDofSpring) EnableSpring(axis int, on bool) {
	if axis >= 0 && axis < 6 {
		s.springs[axis] = on
	}
}

func (s *sixDofSpring) SetStiffness(axis int, k float32) {
	if axis >= 0 && axis < 6 {
		s.stiffness[axis] = k
	}
}

func (s *sixDofSpring) SetDamping(axis int, d float32) {
	if axis >= 0 && axis < 6 {
		s.damping[axis] = d
	}
}

// SetEquilibriumPoint makes the current offset the spring rest position.
func (s *sixDofSpring) SetEquilibriumPoint() {
	s.rest = s.a.xf.Apply(s.localA.Origin).Sub(s.frameB().Origin)
}

func (s *sixDofSpring) solve(h float32) {
	s.sixDof.solve(h)
	if s.a.invMassIfSimulated() == 0 {
		return
	}
	offset := s.a.xf.Apply(s.localA.Origin).Sub(s.frameB().Origin).Sub(s.rest)
	for axis := 0; axis < 3; axis++ {
		if !s.springs[axis] {
			continue
		}
		dir := axisVec(axis)
		x := offset.Dot(dir)
		v := s.a.linVel.Dot(dir)
		f := -s.stiffness[axis]*x - s.damping[axis]*v
		s.a.linVel = s.a.linVel.Add(dir.Scale(f * s.a.invMass * h))
	}
}
