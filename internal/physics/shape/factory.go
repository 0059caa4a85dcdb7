// Package shape turns shape descriptors into native collision shapes and
// rigid bodies, inferring omitted dimensions from scene bounds.
package shape

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Built is the result of Factory.Build.
type Built struct {
	Body  engine.RigidBody
	Shape engine.Shape
	// Desc is the descriptor with every inferred dimension filled in.
	Desc Descriptor
	// Offset is the shape origin relative to the node origin, in node
	// space. Height fields are centered between their min and max.
	Offset math.Vec3
}

// Factory builds native shapes and bodies.
type Factory struct {
	log     *zap.Logger
	backend engine.Backend
	mapping *physics.Mapping
	margin  float32
}

// NewFactory creates a factory for w.
func NewFactory(w *physics.World) *Factory {
	return &Factory{
		log:     logger.Named("shape"),
		backend: w.Backend(),
		mapping: w.Mapping(),
		margin:  w.CollisionMargin(),
	}
}

// Build resolves desc against node, creates the shape and a body with the
// node's world transform as start transform, and registers the mapping.
// Mass <= 0 creates a static body.
func (f *Factory) Build(node *scene.Node, desc Descriptor, mass float32) (*Built, error) {
	resolved, err := f.Resolve(node, desc)
	if err != nil {
		return nil, err
	}
	sd, offset, err := f.native(node, resolved)
	if err != nil {
		return nil, err
	}

	s, err := f.backend.NewShape(sd)
	if err != nil {
		return nil, fmt.Errorf("create %s shape for %q: %w", resolved.Kind, node.Name, err)
	}
	s.SetMargin(f.margin)

	var inertia math.Vec3
	if mass > 0 {
		inertia = s.CalculateLocalInertia(mass)
	}

	rot := node.WorldRotation()
	body, err := f.backend.NewRigidBody(engine.RigidBodyInfo{
		Mass:  max(mass, 0),
		Shape: s,
		Start: engine.Transform{
			Origin:   node.WorldPosition().Add(rot.Rotate(offset)),
			Rotation: rot,
		},
		LocalInertia: inertia,
	})
	if err != nil {
		s.Destroy()
		return nil, fmt.Errorf("create body for %q: %w", node.Name, err)
	}
	if mass <= 0 {
		body.SetCollisionFlags(body.CollisionFlags() | engine.CFStaticObject)
	}

	f.mapping.Register(node, body)
	f.log.Debug("body built",
		zap.String("node", node.Name),
		zap.String("shape", string(resolved.Kind)),
		zap.Float32("mass", mass))
	return &Built{Body: body, Shape: s, Desc: resolved, Offset: offset}, nil
}

// Resolve fills in omitted dimensions from the node's world bounds and
// applies the fallback for unknown kinds. Resolving a resolved descriptor
// returns it unchanged.
func (f *Factory) Resolve(node *scene.Node, desc Descriptor) (Descriptor, error) {
	if !known(desc.Kind) {
		if desc.Fallback == nil {
			return desc, &physics.UnsupportedShapeError{Kind: string(desc.Kind), Reason: "no fallback collider declared"}
		}
		f.log.Debug("using fallback collider", zap.String("node", node.Name), zap.String("kind", string(desc.Kind)))
		return f.Resolve(node, *desc.Fallback)
	}

	var size math.Vec3
	sized := false
	bounds := func() math.Vec3 {
		if !sized {
			size, sized = node.Bounds().Size(), true
		}
		return size
	}

	switch desc.Kind {
	case Box:
		if desc.Size == nil {
			s := bounds()
			desc.Size = &s
		}
	case Cylinder:
		if desc.Size == nil {
			s := bounds()
			desc.Size = &math.Vec3{X: s.X, Y: s.Y, Z: s.X}
		}
	case Sphere:
		if desc.Radius == 0 {
			desc.Radius = bounds().X / 2
		}
	case Capsule:
		if desc.Radius == 0 {
			desc.Radius = bounds().X / 2
		}
		if desc.Height == 0 {
			desc.Height = max(bounds().Y-2*desc.Radius, 0)
		}
	case Cone:
		if desc.Radius == 0 {
			desc.Radius = bounds().X / 2
		}
		if desc.Height == 0 {
			desc.Height = bounds().Y
		}
	case Plane:
		if desc.PlaneNormal == (math.Vec3{}) {
			desc.PlaneNormal = math.Vec3Up
		}
	}
	return desc, nil
}

func known(k Kind) bool {
	switch k {
	case Box, Sphere, Capsule, Cylinder, Cone, ConvexHull, TriangleMesh, HeightField, Compound, Plane:
		return true
	}
	return false
}

// native converts a resolved descriptor to a native shape description.
func (f *Factory) native(node *scene.Node, d Descriptor) (engine.ShapeDesc, math.Vec3, error) {
	switch d.Kind {
	case Box:
		return f.Box(d), math.Vec3{}, nil
	case Sphere:
		return f.Sphere(d), math.Vec3{}, nil
	case Capsule:
		return f.Capsule(d), math.Vec3{}, nil
	case Cylinder:
		return f.Cylinder(d), math.Vec3{}, nil
	case Cone:
		return f.Cone(d), math.Vec3{}, nil
	case ConvexHull:
		sd, err := f.ConvexHull(node, d)
		return sd, math.Vec3{}, err
	case TriangleMesh:
		sd, err := f.TriangleMesh(node, d)
		return sd, math.Vec3{}, err
	case HeightField:
		return f.HeightField(node, d)
	case Compound:
		sd, err := f.Compound(d)
		return sd, math.Vec3{}, err
	case Plane:
		return f.Plane(d), math.Vec3{}, nil
	}
	return engine.ShapeDesc{}, math.Vec3{}, &physics.UnsupportedShapeError{Kind: string(d.Kind)}
}

func sizeOf(d Descriptor) math.Vec3 {
	if d.Size == nil {
		return math.Vec3{}
	}
	return *d.Size
}

// Box builds a box with half extents Size/2.
func (f *Factory) Box(d Descriptor) engine.ShapeDesc {
	return engine.ShapeDesc{Kind: engine.ShapeBox, HalfExtents: sizeOf(d).Scale(0.5)}
}

// Sphere builds a sphere.
func (f *Factory) Sphere(d Descriptor) engine.ShapeDesc {
	return engine.ShapeDesc{Kind: engine.ShapeSphere, Radius: d.Radius}
}

// Capsule builds a Y-aligned capsule; Height is the cylindrical part.
func (f *Factory) Capsule(d Descriptor) engine.ShapeDesc {
	return engine.ShapeDesc{Kind: engine.ShapeCapsule, Radius: d.Radius, Height: d.Height}
}

// Cylinder builds a Y-aligned cylinder with half extents Size/2.
func (f *Factory) Cylinder(d Descriptor) engine.ShapeDesc {
	return engine.ShapeDesc{Kind: engine.ShapeCylinder, HalfExtents: sizeOf(d).Scale(0.5)}
}

// Cone builds a Y-aligned cone.
func (f *Factory) Cone(d Descriptor) engine.ShapeDesc {
	return engine.ShapeDesc{Kind: engine.ShapeCone, Radius: d.Radius, Height: d.Height}
}

// ConvexHull builds a hull from the explicit vertices or the node's meshes.
func (f *Factory) ConvexHull(node *scene.Node, d Descriptor) (engine.ShapeDesc, error) {
	points := d.Vertices
	if len(points) == 0 {
		points, _ = concatMeshes(node)
	}
	if len(points) == 0 {
		return engine.ShapeDesc{}, &physics.ConfigurationError{Component: "convex hull " + node.Name, Reason: "no vertices"}
	}
	return engine.ShapeDesc{Kind: engine.ShapeConvexHull, Points: points}, nil
}

// TriangleMesh builds a static mesh from the explicit buffers or the
// node's meshes. The node's local scale becomes the shape scaling.
func (f *Factory) TriangleMesh(node *scene.Node, d Descriptor) (engine.ShapeDesc, error) {
	vertices, indices := d.Vertices, d.Indices
	if len(vertices) == 0 {
		vertices, indices = concatMeshes(node)
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return engine.ShapeDesc{}, &physics.ConfigurationError{Component: "triangle mesh " + node.Name, Reason: "no triangles"}
	}
	return engine.ShapeDesc{
		Kind:         engine.ShapeTriangleMesh,
		Vertices:     vertices,
		Indices:      indices,
		LocalScaling: node.Scale,
	}, nil
}

// concatMeshes joins the node's sub-meshes, shifting each sub-mesh's
// indices by the vertices that precede it.
func concatMeshes(node *scene.Node) ([]math.Vec3, []uint32) {
	var vertices []math.Vec3
	var indices []uint32
	for _, m := range node.Meshes {
		base := uint32(len(vertices))
		vertices = append(vertices, m.Positions...)
		for _, i := range m.Indices {
			indices = append(indices, base+i)
		}
	}
	return vertices, indices
}

// HeightField samples the node's plane mesh, or the explicit samples, as a
// row-major grid. The returned offset centers the field between its lowest
// and highest sample.
func (f *Factory) HeightField(node *scene.Node, d Descriptor) (engine.ShapeDesc, math.Vec3, error) {
	var (
		cols, rows int
		heights    []float32
		scaling    = math.Vec3One
	)

	switch {
	case len(d.HeightSamples) > 0:
		cols, rows, heights = d.Columns, d.Rows, d.HeightSamples
		if cols*rows != len(heights) {
			return engine.ShapeDesc{}, math.Vec3{}, &physics.ConfigurationError{
				Component: "height field " + node.Name,
				Reason:    fmt.Sprintf("%d samples for a %dx%d grid", len(heights), cols, rows),
			}
		}
		if d.Size != nil && cols > 1 && rows > 1 {
			scaling = math.Vec3{X: d.Size.X / float32(cols-1), Y: 1, Z: d.Size.Z / float32(rows-1)}
		}
	case node.Plane != nil && len(node.Meshes) > 0:
		p := node.Plane
		cols, rows = p.SegmentsW+1, p.SegmentsH+1
		positions := node.Meshes[0].Positions
		if len(positions) != cols*rows {
			return engine.ShapeDesc{}, math.Vec3{}, &physics.ConfigurationError{
				Component: "height field " + node.Name,
				Reason:    fmt.Sprintf("plane mesh has %d vertices, want %d", len(positions), cols*rows),
			}
		}
		heights = make([]float32, len(positions))
		for i, pos := range positions {
			heights[i] = pos.Y
		}
		scaling = math.Vec3{X: p.Width / float32(p.SegmentsW), Y: 1, Z: p.Height / float32(p.SegmentsH)}
	default:
		return engine.ShapeDesc{}, math.Vec3{}, &physics.UnsupportedShapeError{
			Kind:   string(HeightField),
			Reason: "node " + node.Name + " has no plane geometry and no samples",
		}
	}

	lo, hi := heights[0], heights[0]
	for _, h := range heights[1:] {
		lo, hi = min(lo, h), max(hi, h)
	}

	return engine.ShapeDesc{
		Kind: engine.ShapeHeightField,
		HeightField: engine.HeightFieldDesc{
			Columns:   cols,
			Rows:      rows,
			Heights:   heights,
			MinHeight: lo,
			MaxHeight: hi,
		},
		LocalScaling: scaling,
	}, math.Vec3{Y: (lo + hi) / 2}, nil
}

// Compound builds a compound of primitive children. Children need
// explicit dimensions; there is no mesh to infer them from.
func (f *Factory) Compound(d Descriptor) (engine.ShapeDesc, error) {
	sd := engine.ShapeDesc{Kind: engine.ShapeCompound}
	for i, c := range d.Children {
		if err := checkChild(i, c.Shape); err != nil {
			return engine.ShapeDesc{}, err
		}
		var child engine.ShapeDesc
		switch c.Shape.Kind {
		case Box:
			child = f.Box(c.Shape)
		case Sphere:
			child = f.Sphere(c.Shape)
		case Capsule:
			child = f.Capsule(c.Shape)
		case Cylinder:
			child = f.Cylinder(c.Shape)
		case Cone:
			child = f.Cone(c.Shape)
		default:
			return engine.ShapeDesc{}, &physics.UnsupportedShapeError{
				Kind:   string(c.Shape.Kind),
				Reason: fmt.Sprintf("compound child %d must be a box, sphere, capsule, cylinder or cone", i),
			}
		}
		rot := c.Rotation
		if rot.IsZero() {
			rot = math.QuatIdentity()
		}
		sd.Children = append(sd.Children, engine.ChildShape{
			Local: engine.Transform{Origin: c.Offset, Rotation: rot},
			Desc:  child,
		})
	}
	return sd, nil
}

func checkChild(i int, d Descriptor) error {
	var reason string
	switch d.Kind {
	case Box, Cylinder:
		if d.Size == nil {
			reason = "has no size"
		} else if d.Size.X <= 0 || d.Size.Y <= 0 || d.Size.Z <= 0 {
			reason = fmt.Sprintf("has non-positive size %v", *d.Size)
		}
	case Sphere, Capsule, Cone:
		if d.Radius <= 0 {
			reason = "has no radius"
		}
	}
	if reason == "" {
		return nil
	}
	return &physics.ConfigurationError{
		Component: "compound shape",
		Reason:    fmt.Sprintf("child %d (%s) %s", i, d.Kind, reason),
	}
}

// Plane builds a static plane.
func (f *Factory) Plane(d Descriptor) engine.ShapeDesc {
	n := d.PlaneNormal
	if n == (math.Vec3{}) {
		n = math.Vec3Up
	}
	return engine.ShapeDesc{Kind: engine.ShapePlane, PlaneNormal: n, PlaneConstant: d.PlaneConstant}
}
