package shape

import (
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Kind names a collision shape. Kinds are strings so scene files and
// configuration can name them directly.
type Kind string

const (
	Box          Kind = "box"
	Sphere       Kind = "sphere"
	Capsule      Kind = "capsule"
	Cylinder     Kind = "cylinder"
	Cone         Kind = "cone"
	ConvexHull   Kind = "convex-hull"
	TriangleMesh Kind = "triangle-mesh"
	HeightField  Kind = "height-field"
	Compound     Kind = "compound"
	Plane        Kind = "plane"
)

// Descriptor declares a shape. Zero dimensions are inferred from the
// owning node's world bounding box when the shape is first resolved.
type Descriptor struct {
	Kind Kind

	// Size is the full extent of boxes and cylinders.
	Size   *math.Vec3
	Radius float32
	Height float32

	// Explicit buffers for hulls and triangle meshes. When empty the
	// node's meshes are used.
	Vertices []math.Vec3
	Indices  []uint32

	// Explicit height samples, row-major Columns x Rows. When empty the
	// node's plane mesh is sampled.
	HeightSamples []float32
	Columns       int
	Rows          int

	Children []Child

	PlaneNormal   math.Vec3
	PlaneConstant float32

	// Fallback is used when Kind cannot be built.
	Fallback *Descriptor
}

// Child is a compound element placed relative to the compound origin.
type Child struct {
	Offset   math.Vec3
	Rotation math.Quat
	Shape    Descriptor
}

// Vec returns a pointer to v, for Descriptor.Size literals.
func Vec(x, y, z float32) *math.Vec3 {
	return &math.Vec3{X: x, Y: y, Z: z}
}

// HollowBox returns a compound of a floor and four walls forming an open
// container of outer size. With closed set a lid is added.
func HollowBox(size math.Vec3, thickness float32, closed bool) Descriptor {
	h := size.Scale(0.5)
	t := thickness
	wall := func(offset, extent math.Vec3) Child {
		return Child{Offset: offset, Rotation: math.QuatIdentity(), Shape: Descriptor{Kind: Box, Size: &extent}}
	}

	children := []Child{
		wall(math.Vec3{Y: -h.Y + t/2}, math.Vec3{X: size.X, Y: t, Z: size.Z}),
		wall(math.Vec3{X: -h.X + t/2}, math.Vec3{X: t, Y: size.Y, Z: size.Z}),
		wall(math.Vec3{X: h.X - t/2}, math.Vec3{X: t, Y: size.Y, Z: size.Z}),
		wall(math.Vec3{Z: -h.Z + t/2}, math.Vec3{X: size.X, Y: size.Y, Z: t}),
		wall(math.Vec3{Z: h.Z - t/2}, math.Vec3{X: size.X, Y: size.Y, Z: t}),
	}
	if closed {
		children = append(children, wall(math.Vec3{Y: h.Y - t/2}, math.Vec3{X: size.X, Y: t, Z: size.Z}))
	}
	return Descriptor{Kind: Compound, Children: children}
}
