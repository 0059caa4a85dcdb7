package simple

import (
	"fmt"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// planeExtent bounds static planes so slab tests stay finite.
const planeExtent = 1e6

type shape struct {
	backend   *Backend
	desc      engine.ShapeDesc
	margin    float32
	scaling   math.Vec3
	destroyed bool
}

func newShape(b *Backend, desc engine.ShapeDesc) *shape {
	scaling := desc.LocalScaling
	if scaling == (math.Vec3{}) {
		scaling = math.Vec3One
	}
	return &shape{backend: b, desc: desc, scaling: scaling}
}

func validateShape(desc engine.ShapeDesc) error {
	switch desc.Kind {
	case engine.ShapeBox, engine.ShapeCylinder:
		if desc.HalfExtents.X < 0 || desc.HalfExtents.Y < 0 || desc.HalfExtents.Z < 0 {
			return fmt.Errorf("simple: negative half extents %v", desc.HalfExtents)
		}
	case engine.ShapeSphere, engine.ShapeCapsule, engine.ShapeCone:
		if desc.Radius < 0 || desc.Height < 0 {
			return fmt.Errorf("simple: negative radius/height %v/%v", desc.Radius, desc.Height)
		}
	case engine.ShapeConvexHull:
		if len(desc.Points) == 0 {
			return fmt.Errorf("simple: convex hull without points")
		}
	case engine.ShapeTriangleMesh:
		if len(desc.Indices)%3 != 0 || len(desc.Vertices) == 0 {
			return fmt.Errorf("simple: triangle mesh needs vertices and whole triangles")
		}
		for _, i := range desc.Indices {
			if int(i) >= len(desc.Vertices) {
				return fmt.Errorf("simple: triangle index %d out of range", i)
			}
		}
	case engine.ShapeHeightField:
		hf := desc.HeightField
		if hf.Columns < 2 || hf.Rows < 2 || len(hf.Heights) != hf.Columns*hf.Rows {
			return fmt.Errorf("simple: height field %dx%d with %d samples", hf.Columns, hf.Rows, len(hf.Heights))
		}
	case engine.ShapeCompound:
		for _, c := range desc.Children {
			if err := validateShape(c.Desc); err != nil {
				return fmt.Errorf("compound child: %w", err)
			}
		}
	case engine.ShapePlane:
	default:
		return fmt.Errorf("simple: shape kind %v: %w", desc.Kind, engine.ErrUnsupported)
	}
	return nil
}

func (s *shape) Kind() engine.ShapeKind      { return s.desc.Kind }
func (s *shape) Desc() engine.ShapeDesc      { return s.desc }
func (s *shape) SetMargin(m float32)         { s.margin = m }
func (s *shape) Margin() float32             { return s.margin }
func (s *shape) SetLocalScaling(v math.Vec3) { s.scaling = v }
func (s *shape) LocalScaling() math.Vec3     { return s.scaling }
func (s *shape) LocalBounds() math.AABB      { return scaleBounds(unscaledBounds(s.desc), s.scaling) }
func (s *shape) isConcave() bool             { return isConcave(s.desc.Kind) }
func (s *shape) String() string              { return s.desc.Kind.String() }

func (s *shape) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.backend.stats.Shapes--
}

// CalculateLocalInertia uses the solid sphere formula for spheres and the
// bounding box formula for every other convex shape. Concave shapes are
// static only and report zero.
func (s *shape) CalculateLocalInertia(mass float32) math.Vec3 {
	if mass == 0 || s.isConcave() {
		return math.Vec3{}
	}
	if s.desc.Kind == engine.ShapeSphere {
		r := s.desc.Radius*s.scaling.X + s.margin
		i := 0.4 * mass * r * r
		return math.Vec3{X: i, Y: i, Z: i}
	}
	size := s.LocalBounds().Size().Add(math.Vec3{X: 2 * s.margin, Y: 2 * s.margin, Z: 2 * s.margin})
	x2, y2, z2 := size.X*size.X, size.Y*size.Y, size.Z*size.Z
	return math.Vec3{
		X: mass / 12 * (y2 + z2),
		Y: mass / 12 * (x2 + z2),
		Z: mass / 12 * (x2 + y2),
	}
}

func isConcave(k engine.ShapeKind) bool {
	return k == engine.ShapeTriangleMesh || k == engine.ShapeHeightField || k == engine.ShapePlane
}

func unscaledBounds(d engine.ShapeDesc) math.AABB {
	switch d.Kind {
	case engine.ShapeBox, engine.ShapeCylinder:
		return math.AABBFromCenter(math.Vec3{}, d.HalfExtents)
	case engine.ShapeSphere:
		return math.AABBFromCenter(math.Vec3{}, math.Vec3{X: d.Radius, Y: d.Radius, Z: d.Radius})
	case engine.ShapeCapsule:
		return math.AABBFromCenter(math.Vec3{}, math.Vec3{X: d.Radius, Y: d.Height/2 + d.Radius, Z: d.Radius})
	case engine.ShapeCone:
		return math.AABBFromCenter(math.Vec3{}, math.Vec3{X: d.Radius, Y: d.Height / 2, Z: d.Radius})
	case engine.ShapeConvexHull:
		b := math.EmptyAABB()
		for _, p := range d.Points {
			b = b.Extend(p)
		}
		return b
	case engine.ShapeTriangleMesh:
		b := math.EmptyAABB()
		for _, p := range d.Vertices {
			b = b.Extend(p)
		}
		return b
	case engine.ShapeHeightField:
		// Height fields are centered on their local origin.
		hf := d.HeightField
		half := math.Vec3{
			X: float32(hf.Columns-1) / 2,
			Y: (hf.MaxHeight - hf.MinHeight) / 2,
			Z: float32(hf.Rows-1) / 2,
		}
		return math.AABBFromCenter(math.Vec3{}, half)
	case engine.ShapeCompound:
		b := math.EmptyAABB()
		for _, c := range d.Children {
			child := scaleBounds(unscaledBounds(c.Desc), scalingOf(c.Desc))
			b = b.Union(child.Transform(math.Compose(c.Local.Origin, c.Local.Rotation, math.Vec3One)))
		}
		return b
	case engine.ShapePlane:
		n := d.PlaneNormal.Normalize()
		if n == math.Vec3Up {
			return math.AABB{
				Min: math.Vec3{X: -planeExtent, Y: -planeExtent, Z: -planeExtent},
				Max: math.Vec3{X: planeExtent, Y: d.PlaneConstant, Z: planeExtent},
			}
		}
		return math.AABBFromCenter(math.Vec3{}, math.Vec3{X: planeExtent, Y: planeExtent, Z: planeExtent})
	}
	return math.AABB{}
}

func scalingOf(d engine.ShapeDesc) math.Vec3 {
	if d.LocalScaling == (math.Vec3{}) {
		return math.Vec3One
	}
	return d.LocalScaling
}

func scaleBounds(b math.AABB, s math.Vec3) math.AABB {
	if b.IsEmpty() || s == math.Vec3One {
		return b
	}
	return math.EmptyAABB().Extend(b.Min.Mul(s)).Extend(b.Max.Mul(s))
}
