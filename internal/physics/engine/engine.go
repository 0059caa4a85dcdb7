// Package engine declares the port to the native physics engine. The layer
// above never reaches past these interfaces; backends (a binding to a native
// library, or the in-process simple backend) implement them.
package engine

import (
	"errors"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// ErrUnsupported is returned by a backend that cannot build a requested
// native object.
var ErrUnsupported = errors.New("engine: unsupported")

// Transform is a rigid transform: rotation followed by translation.
type Transform struct {
	Origin   math.Vec3
	Rotation math.Quat
}

// IdentityTransform returns a transform at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: math.QuatIdentity()}
}

// Apply transforms a point from local to world space.
func (t Transform) Apply(p math.Vec3) math.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Origin)
}

// Inverse returns the transform mapping world space back to local space.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Normalize().Conjugate()
	return Transform{Origin: inv.Rotate(t.Origin.Neg()), Rotation: inv}
}

// Mul returns t * other (other applied first).
func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Origin:   t.Apply(other.Origin),
		Rotation: t.Rotation.Mul(other.Rotation).Normalize(),
	}
}

// Backend creates native objects.
type Backend interface {
	NewWorld(cfg WorldConfig) (World, error)
	NewShape(desc ShapeDesc) (Shape, error)
	NewRigidBody(info RigidBodyInfo) (RigidBody, error)
	NewConstraint(spec ConstraintSpec) (Constraint, error)
	NewClothPatch(world World, spec PatchSpec) (SoftBody, error)
	NewRaycastVehicle(world World, chassis RigidBody, tuning VehicleTuning) (RaycastVehicle, error)
}

// WorldConfig configures a native world.
type WorldConfig struct {
	Gravity  math.Vec3
	SoftBody bool

	// Soft body world info; ignored for rigid-only worlds.
	AirDensity      float32
	MaxDisplacement float32
}

// RayHit is the closest hit of a ray test.
type RayHit struct {
	Body     RigidBody
	Point    math.Vec3
	Normal   math.Vec3
	Fraction float32
}

// Contact is a touching pair reported after a step.
type Contact struct {
	BodyA RigidBody
	BodyB RigidBody
	// Point is the middle of the overlap.
	Point math.Vec3
	// Normal points from BodyB towards BodyA.
	Normal math.Vec3
	Depth  float32
	// Impulse is the momentum BodyA gained along Normal during the step.
	Impulse float32
}

// World is a native dynamics world.
type World interface {
	SupportsSoftBodies() bool
	SetGravity(g math.Vec3)
	Gravity() math.Vec3

	AddRigidBody(body RigidBody, filter *CollisionFilter)
	RemoveRigidBody(body RigidBody)
	NumRigidBodies() int

	AddConstraint(c Constraint, disableCollisionsBetweenLinkedBodies bool)
	RemoveConstraint(c Constraint)
	NumConstraints() int

	AddSoftBody(sb SoftBody, filter *CollisionFilter)
	RemoveSoftBody(sb SoftBody)
	NumSoftBodies() int

	AddAction(v RaycastVehicle)
	RemoveAction(v RaycastVehicle)

	// StepSimulation advances by dt seconds using at most maxSubSteps fixed
	// steps of fixedTimeStep and returns the number of steps taken.
	StepSimulation(dt float32, maxSubSteps int, fixedTimeStep float32) int

	RayTest(from, to math.Vec3) (RayHit, bool)

	// SetContactHandler installs fn to receive, once per step, every
	// contact that involves a body flagged CFCustomMaterialCallback. The
	// flagged body is BodyA. nil removes the handler.
	SetContactHandler(fn func(Contact))

	Destroy()
}

// ShapeKind enumerates native collision shapes.
type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	ShapeCylinder
	ShapeCone
	ShapeConvexHull
	ShapeTriangleMesh
	ShapeHeightField
	ShapeCompound
	ShapePlane
)

var shapeKindNames = [...]string{
	"box", "sphere", "capsule", "cylinder", "cone",
	"convex-hull", "triangle-mesh", "height-field", "compound", "plane",
}

func (k ShapeKind) String() string {
	if k < 0 || int(k) >= len(shapeKindNames) {
		return "unknown"
	}
	return shapeKindNames[k]
}

// ShapeDesc is a fully resolved native shape description.
type ShapeDesc struct {
	Kind ShapeKind

	HalfExtents math.Vec3 // box, cylinder
	Radius      float32   // sphere, capsule, cone
	Height      float32   // capsule (cylindrical part), cone

	Points []math.Vec3 // convex hull

	Vertices []math.Vec3 // triangle mesh
	Indices  []uint32

	HeightField HeightFieldDesc

	Children []ChildShape // compound

	PlaneNormal   math.Vec3
	PlaneConstant float32

	LocalScaling math.Vec3 // zero means (1,1,1)
}

// HeightFieldDesc describes a row-major grid of height samples.
type HeightFieldDesc struct {
	Columns   int // samples along X
	Rows      int // samples along Z
	Heights   []float32
	MinHeight float32
	MaxHeight float32
}

// ChildShape is one element of a compound shape.
type ChildShape struct {
	Local Transform
	Desc  ShapeDesc
}

// Shape is a native collision shape.
type Shape interface {
	Kind() ShapeKind
	Desc() ShapeDesc
	SetMargin(m float32)
	Margin() float32
	SetLocalScaling(s math.Vec3)
	LocalScaling() math.Vec3
	CalculateLocalInertia(mass float32) math.Vec3
	// LocalBounds returns the shape's box in its own frame, margin excluded.
	LocalBounds() math.AABB
	Destroy()
}

// RigidBodyInfo holds native body construction parameters.
type RigidBodyInfo struct {
	Mass         float32
	Shape        Shape
	Start        Transform
	LocalInertia math.Vec3
}

// RigidBody is a native rigid body with its motion state.
type RigidBody interface {
	Shape() Shape
	Mass() float32

	// WorldTransform is the transform at the last simulation step.
	WorldTransform() Transform
	SetWorldTransform(t Transform)
	// MotionState is the interpolated transform for rendering.
	MotionState() Transform
	SetMotionState(t Transform)

	IsActive() bool
	Activate(force bool)
	ActivationState() ActivationState
	SetActivationState(s ActivationState)

	CollisionFlags() CollisionFlags
	SetCollisionFlags(f CollisionFlags)

	SetRestitution(v float32)
	SetFriction(v float32)
	SetRollingFriction(v float32)
	SetDamping(linear, angular float32)
	SetCcdMotionThreshold(v float32)
	SetCcdSweptSphereRadius(v float32)
	SetGravity(g math.Vec3)

	LinearVelocity() math.Vec3
	SetLinearVelocity(v math.Vec3)
	AngularVelocity() math.Vec3
	SetAngularVelocity(v math.Vec3)
	ApplyCentralForce(f math.Vec3)
	ApplyCentralImpulse(i math.Vec3)
	ClearForces()

	SetUserIndex(i int)
	UserIndex() int

	// Destroy releases the body and its motion state. The shape is owned
	// separately.
	Destroy()
}

// ConstraintKind enumerates native constraints.
type ConstraintKind int

const (
	ConstraintSlider ConstraintKind = iota
	ConstraintHinge
	ConstraintConeTwist
	ConstraintGeneric6Dof
	ConstraintGeneric6DofSpring
	ConstraintFixed
	ConstraintPointToPoint
)

var constraintKindNames = [...]string{
	"slider", "hinge", "cone-twist", "generic-6dof", "generic-6dof-spring", "fixed", "point-to-point",
}

func (k ConstraintKind) String() string {
	if k < 0 || int(k) >= len(constraintKindNames) {
		return "unknown"
	}
	return constraintKindNames[k]
}

// ConstraintSpec describes a native constraint. BodyB nil means the
// constraint is anchored to world space. FrameB is only set for two-body
// frame-based constraints.
type ConstraintSpec struct {
	Kind  ConstraintKind
	BodyA RigidBody
	BodyB RigidBody

	FrameA *Transform
	FrameB *Transform

	PivotA math.Vec3
	PivotB math.Vec3
	AxisA  math.Vec3
	AxisB  math.Vec3

	UseReferenceFrameA bool
}

// Constraint is a native constraint.
type Constraint interface {
	Kind() ConstraintKind
	BodyA() RigidBody
	BodyB() RigidBody
	SetBreakingImpulseThreshold(v float32)
	BreakingImpulseThreshold() float32
	IsEnabled() bool
	SetEnabled(enabled bool)
	Destroy()
}

// SliderConstraint is a prismatic joint.
type SliderConstraint interface {
	Constraint
	SetLinearLimits(lower, upper float32)
	SetAngularLimits(lower, upper float32)
	LinearPosition() float32
	SetPoweredLinearMotor(on bool)
	SetTargetLinearMotorVelocity(v float32)
	TargetLinearMotorVelocity() float32
	SetMaxLinearMotorForce(f float32)
	SetPoweredAngularMotor(on bool)
	SetTargetAngularMotorVelocity(v float32)
	SetMaxAngularMotorForce(f float32)
}

// HingeConstraint is a revolute joint.
type HingeConstraint interface {
	Constraint
	SetLimit(low, high, softness, bias, relaxation float32)
	EnableAngularMotor(enable bool, targetVelocity, maxImpulse float32)
	HingeAngle() float32
}

// ConeTwistConstraint is a ragdoll style shoulder joint.
type ConeTwistConstraint interface {
	Constraint
	SetLimit(swingSpan1, swingSpan2, twistSpan float32)
}

// Generic6DofConstraint limits each of the six degrees of freedom.
type Generic6DofConstraint interface {
	Constraint
	SetLinearLowerLimit(v math.Vec3)
	SetLinearUpperLimit(v math.Vec3)
	SetAngularLowerLimit(v math.Vec3)
	SetAngularUpperLimit(v math.Vec3)
}

// Generic6DofSpringConstraint adds per-axis springs; axes 0-2 are linear,
// 3-5 angular.
type Generic6DofSpringConstraint interface {
	Generic6DofConstraint
	EnableSpring(axis int, on bool)
	SetStiffness(axis int, k float32)
	SetDamping(axis int, d float32)
	SetEquilibriumPoint()
}

// PatchSpec describes a rectangular cloth patch.
type PatchSpec struct {
	Corners   [4]math.Vec3 // 00, 10, 01, 11
	ResX      int          // nodes along the 00->10 edge
	ResY      int          // nodes along the 00->01 edge
	TotalMass float32
	Margin    float32

	BendingDistance    int
	LinearStiffness    float32
	AngularStiffness   float32
	VelocityIterations int
	PositionIterations int
}

// SoftBody is a native soft body.
type SoftBody interface {
	NumNodes() int
	NodePosition(i int) math.Vec3
	NodeNormal(i int) math.Vec3
	// FixNode zeroes a node's velocity, accumulated force and inverse mass.
	FixNode(i int)
	NodeInverseMass(i int) float32

	Rotate(q math.Quat)
	Translate(v math.Vec3)

	AppendAnchor(node int, body RigidBody, disableCollision bool, influence float32)
	NumAnchors() int
	ClearAnchors()

	Destroy()
}

// VehicleTuning holds the defaults shared by every wheel of a vehicle.
type VehicleTuning struct {
	SuspensionStiffness   float32
	SuspensionCompression float32
	SuspensionDamping     float32
	MaxSuspensionTravelCm float32
	FrictionSlip          float32
	MaxSuspensionForce    float32
}

// WheelSpec describes one raycast wheel.
type WheelSpec struct {
	ConnectionPoint math.Vec3 // chassis space
	Direction       math.Vec3
	Axle            math.Vec3
	RestLength      float32
	Radius          float32
	IsFront         bool

	SuspensionStiffness float32
	DampingRelaxation   float32
	DampingCompression  float32
	FrictionSlip        float32
	RollInfluence       float32
	MaxSuspensionTravel float32 // cm
	MaxSuspensionForce  float32
}

// RaycastVehicle is the native raycast vehicle action.
type RaycastVehicle interface {
	Chassis() RigidBody
	AddWheel(spec WheelSpec) int
	NumWheels() int
	Wheel(i int) WheelSpec

	SetSteeringValue(v float32, wheel int)
	SteeringValue(wheel int) float32
	ApplyEngineForce(f float32, wheel int)
	EngineForce(wheel int) float32
	SetBrake(b float32, wheel int)
	Brake(wheel int) float32

	CurrentSpeedKmHour() float32
	UpdateWheelTransform(wheel int, interpolated bool)
	WheelTransform(wheel int) Transform
	// WheelInContact reports whether the wheel ray hit ground at the last step.
	WheelInContact(wheel int) bool

	Destroy()
}
