package scene

import (
	"slices"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Mesh is a triangle list in node-local space.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Indices   []uint32
}

// Clone deep-copies the mesh buffers.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Positions: slices.Clone(m.Positions),
		Normals:   slices.Clone(m.Normals),
		Indices:   slices.Clone(m.Indices),
	}
}

// LocalBounds returns the box of the mesh positions.
func (m *Mesh) LocalBounds() math.AABB {
	b := math.EmptyAABB()
	for _, p := range m.Positions {
		b = b.Extend(p)
	}
	return b
}

// PlaneGeometry records how a plane mesh was generated.
type PlaneGeometry struct {
	Width     float32
	Height    float32
	SegmentsW int
	SegmentsH int
}

// VertexIndex returns the vertex for grid column x, row y.
func (p PlaneGeometry) VertexIndex(x, y int) int {
	return y*(p.SegmentsW+1) + x
}

// NewPlane creates a node with a horizontal plane mesh on XZ centered on
// the origin. Vertices are row-major: index = row*(segW+1) + column, rows
// advancing along +Z.
func NewPlane(name string, width, height float32, segW, segH int) *Node {
	segW, segH = max(segW, 1), max(segH, 1)
	geo := PlaneGeometry{Width: width, Height: height, SegmentsW: segW, SegmentsH: segH}

	mesh := &Mesh{}
	for y := 0; y <= segH; y++ {
		for x := 0; x <= segW; x++ {
			mesh.Positions = append(mesh.Positions, math.Vec3{
				X: -width/2 + width*float32(x)/float32(segW),
				Z: -height/2 + height*float32(y)/float32(segH),
			})
			mesh.Normals = append(mesh.Normals, math.Vec3Up)
		}
	}
	for y := 0; y < segH; y++ {
		for x := 0; x < segW; x++ {
			a := uint32(geo.VertexIndex(x, y))
			b := uint32(geo.VertexIndex(x+1, y))
			c := uint32(geo.VertexIndex(x, y+1))
			d := uint32(geo.VertexIndex(x+1, y+1))
			mesh.Indices = append(mesh.Indices, a, c, b, b, c, d)
		}
	}

	n := NewNode(name)
	n.Meshes = []*Mesh{mesh}
	n.Plane = &geo
	return n
}

// NewBox creates a node with an axis-aligned box mesh of the given size.
func NewBox(name string, size math.Vec3) *Node {
	h := size.Scale(0.5)
	mesh := &Mesh{
		Positions: []math.Vec3{
			{X: -h.X, Y: -h.Y, Z: -h.Z}, {X: h.X, Y: -h.Y, Z: -h.Z},
			{X: h.X, Y: h.Y, Z: -h.Z}, {X: -h.X, Y: h.Y, Z: -h.Z},
			{X: -h.X, Y: -h.Y, Z: h.Z}, {X: h.X, Y: -h.Y, Z: h.Z},
			{X: h.X, Y: h.Y, Z: h.Z}, {X: -h.X, Y: h.Y, Z: h.Z},
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2, // back
			4, 5, 6, 4, 6, 7, // front
			0, 4, 7, 0, 7, 3, // left
			1, 2, 6, 1, 6, 5, // right
			3, 7, 6, 3, 6, 2, // top
			0, 1, 5, 0, 5, 4, // bottom
		},
	}
	n := NewNode(name)
	n.Meshes = []*Mesh{mesh}
	return n
}

// NewCylinder creates a node with a Y-aligned cylinder mesh.
func NewCylinder(name string, radius, height float32, segments int) *Node {
	segments = max(segments, 3)
	mesh := &Mesh{}
	for i := 0; i < segments; i++ {
		a := 2 * float32(i) / float32(segments) * 3.14159265
		x, z := radius*cos32(a), radius*sin32(a)
		mesh.Positions = append(mesh.Positions,
			math.Vec3{X: x, Y: -height / 2, Z: z},
			math.Vec3{X: x, Y: height / 2, Z: z},
		)
	}
	for i := 0; i < segments; i++ {
		b0 := uint32(2 * i)
		t0 := b0 + 1
		b1 := uint32(2 * ((i + 1) % segments))
		t1 := b1 + 1
		mesh.Indices = append(mesh.Indices, b0, t0, b1, b1, t0, t1)
	}
	n := NewNode(name)
	n.Meshes = []*Mesh{mesh}
	return n
}
