package constraint

import (
	gomath "math"

	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

const pi = float32(gomath.Pi)

// Motor drives a degree of freedom towards a target velocity.
type Motor struct {
	TargetVelocity float32
	// MaxForce is a force for linear motors and an impulse for hinges.
	MaxForce float32
}

// Slider is a prismatic joint along the X axis of its reference frame.
type Slider struct {
	Base[engine.SliderConstraint]

	LinearLower, LinearUpper   float32
	AngularLower, AngularUpper float32
	UseLinearReferenceFrameA   bool

	LinearMotor  *Motor
	AngularMotor *Motor
}

// NewSlider declares a slider on self with unlimited travel and a full
// turn of twist.
func NewSlider(self *rigidbody.Body) *Slider {
	s := &Slider{
		LinearLower:              -Unlimited,
		LinearUpper:              Unlimited,
		AngularLower:             -pi,
		AngularUpper:             pi,
		UseLinearReferenceFrameA: true,
	}
	s.init(engine.ConstraintSlider, self, s)
	return s
}

func (s *Slider) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{FrameA: s.frameA(), FrameB: s.frameB(), UseReferenceFrameA: s.UseLinearReferenceFrameA}
}

func (s *Slider) configure(c engine.SliderConstraint) {
	c.SetLinearLimits(s.LinearLower, s.LinearUpper)
	c.SetAngularLimits(s.AngularLower, s.AngularUpper)
	if m := s.LinearMotor; m != nil {
		c.SetPoweredLinearMotor(true)
		c.SetTargetLinearMotorVelocity(m.TargetVelocity)
		c.SetMaxLinearMotorForce(m.MaxForce)
	}
	if m := s.AngularMotor; m != nil {
		c.SetPoweredAngularMotor(true)
		c.SetTargetAngularMotorVelocity(m.TargetVelocity)
		c.SetMaxAngularMotorForce(m.MaxForce)
	}
}

// HingeMode selects how a hinge is declared.
type HingeMode int

const (
	// HingeTransform uses the pivot frames; the hinge axis is their Z.
	HingeTransform HingeMode = iota
	// HingePivotAxis uses pivot points and explicit axes.
	HingePivotAxis
)

// HingeLimit bounds the hinge angle.
type HingeLimit struct {
	Low, High  float32
	Softness   float32
	Bias       float32
	Relaxation float32
}

// NewHingeLimit returns a limit with the native softness, bias and
// relaxation defaults.
func NewHingeLimit(low, high float32) HingeLimit {
	return HingeLimit{Low: low, High: high, Softness: 0.9, Bias: 0.3, Relaxation: 1}
}

// Hinge is a revolute joint.
type Hinge struct {
	Base[engine.HingeConstraint]

	Mode       HingeMode
	SelfAxis   math.Vec3
	TargetAxis math.Vec3
	// UseReferenceFrameA measures the angle in the self frame.
	UseReferenceFrameA bool

	Limit *HingeLimit
	Motor *Motor
}

// NewHinge declares a transform-mode hinge on self.
func NewHinge(self *rigidbody.Body) *Hinge {
	h := &Hinge{SelfAxis: math.Vec3{Z: 1}, TargetAxis: math.Vec3{Z: 1}}
	h.init(engine.ConstraintHinge, self, h)
	return h
}

func (h *Hinge) spec() engine.ConstraintSpec {
	if h.Mode == HingePivotAxis {
		return engine.ConstraintSpec{
			PivotA:             h.SelfPivot,
			PivotB:             h.TargetPivot,
			AxisA:              h.SelfAxis,
			AxisB:              h.TargetAxis,
			UseReferenceFrameA: h.UseReferenceFrameA,
		}
	}
	return engine.ConstraintSpec{FrameA: h.frameA(), FrameB: h.frameB(), UseReferenceFrameA: h.UseReferenceFrameA}
}

func (h *Hinge) configure(c engine.HingeConstraint) {
	if l := h.Limit; l != nil {
		c.SetLimit(l.Low, l.High, l.Softness, l.Bias, l.Relaxation)
	}
	if m := h.Motor; m != nil {
		c.EnableAngularMotor(true, m.TargetVelocity, m.MaxForce)
	}
}

// ConeTwist is a ragdoll style joint.
type ConeTwist struct {
	Base[engine.ConeTwistConstraint]

	SwingSpan1 float32
	SwingSpan2 float32
	TwistSpan  float32
}

// NewConeTwist declares an unlimited cone twist joint on self.
func NewConeTwist(self *rigidbody.Body) *ConeTwist {
	c := &ConeTwist{SwingSpan1: Unlimited, SwingSpan2: Unlimited, TwistSpan: Unlimited}
	c.init(engine.ConstraintConeTwist, self, c)
	return c
}

func (c *ConeTwist) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{FrameA: c.frameA(), FrameB: c.frameB()}
}

func (c *ConeTwist) configure(n engine.ConeTwistConstraint) {
	n.SetLimit(c.SwingSpan1, c.SwingSpan2, c.TwistSpan)
}

// Limits6 bounds the six degrees of freedom of a generic constraint.
type Limits6 struct {
	LinearLower  math.Vec3
	LinearUpper  math.Vec3
	AngularLower math.Vec3
	AngularUpper math.Vec3
}

// DefaultLimits6 leaves translation free and rotation within a half turn
// either way.
func DefaultLimits6() Limits6 {
	return Limits6{
		LinearLower:  math.Vec3{X: -Unlimited, Y: -Unlimited, Z: -Unlimited},
		LinearUpper:  math.Vec3{X: Unlimited, Y: Unlimited, Z: Unlimited},
		AngularLower: math.Vec3{X: -pi, Y: -pi, Z: -pi},
		AngularUpper: math.Vec3{X: pi, Y: pi, Z: pi},
	}
}

func (l Limits6) apply(c engine.Generic6DofConstraint) {
	c.SetLinearLowerLimit(l.LinearLower)
	c.SetLinearUpperLimit(l.LinearUpper)
	c.SetAngularLowerLimit(l.AngularLower)
	c.SetAngularUpperLimit(l.AngularUpper)
}

// Generic6Dof limits each degree of freedom independently.
type Generic6Dof struct {
	Base[engine.Generic6DofConstraint]
	Limits6
	UseLinearReferenceFrameA bool
}

// NewGeneric6Dof declares a generic constraint on self.
func NewGeneric6Dof(self *rigidbody.Body) *Generic6Dof {
	g := &Generic6Dof{Limits6: DefaultLimits6(), UseLinearReferenceFrameA: true}
	g.init(engine.ConstraintGeneric6Dof, self, g)
	return g
}

func (g *Generic6Dof) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{FrameA: g.frameA(), FrameB: g.frameB(), UseReferenceFrameA: g.UseLinearReferenceFrameA}
}

func (g *Generic6Dof) configure(c engine.Generic6DofConstraint) { g.apply(c) }

// Spring configures one axis of a Generic6DofSpring. Axes 0-2 are linear,
// 3-5 angular.
type Spring struct {
	Enabled   bool
	Stiffness float32
	Damping   float32
}

// Generic6DofSpring is a generic constraint with per-axis springs. The
// equilibrium is the pose at creation.
type Generic6DofSpring struct {
	Base[engine.Generic6DofSpringConstraint]
	Limits6
	UseLinearReferenceFrameA bool
	Springs                  [6]Spring
}

// NewGeneric6DofSpring declares a sprung generic constraint on self.
func NewGeneric6DofSpring(self *rigidbody.Body) *Generic6DofSpring {
	g := &Generic6DofSpring{Limits6: DefaultLimits6(), UseLinearReferenceFrameA: true}
	g.init(engine.ConstraintGeneric6DofSpring, self, g)
	return g
}

func (g *Generic6DofSpring) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{FrameA: g.frameA(), FrameB: g.frameB(), UseReferenceFrameA: g.UseLinearReferenceFrameA}
}

func (g *Generic6DofSpring) configure(c engine.Generic6DofSpringConstraint) {
	g.apply(c)
	for axis, s := range g.Springs {
		if !s.Enabled {
			continue
		}
		c.EnableSpring(axis, true)
		c.SetStiffness(axis, s.Stiffness)
		c.SetDamping(axis, s.Damping)
	}
	c.SetEquilibriumPoint()
}

// Fixed welds two bodies together.
type Fixed struct {
	Base[engine.Constraint]
}

// NewFixed declares a weld between self and target.
func NewFixed(self, target *rigidbody.Body) *Fixed {
	f := &Fixed{}
	f.init(engine.ConstraintFixed, self, f)
	f.Target = target
	return f
}

func (f *Fixed) validate() error {
	if f.Target == nil {
		return &physics.ConfigurationError{Component: "fixed constraint", Reason: "no target body"}
	}
	return nil
}

func (f *Fixed) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{FrameA: f.frameA(), FrameB: f.frameB()}
}

func (f *Fixed) configure(engine.Constraint) {}

// PointToPoint is a ball joint between the two pivots.
type PointToPoint struct {
	Base[engine.Constraint]
}

// NewPointToPoint declares a ball joint on self.
func NewPointToPoint(self *rigidbody.Body) *PointToPoint {
	p := &PointToPoint{}
	p.init(engine.ConstraintPointToPoint, self, p)
	return p
}

func (p *PointToPoint) spec() engine.ConstraintSpec {
	return engine.ConstraintSpec{PivotA: p.SelfPivot, PivotB: p.TargetPivot}
}

func (p *PointToPoint) configure(engine.Constraint) {}
