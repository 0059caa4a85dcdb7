// Package scene is the scene-graph side of the physics integration: nodes
// with local transforms, sub-meshes and world-space bounds.
package scene

import (
	"slices"

	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Node is a scene-graph object.
type Node struct {
	Name string

	// Local transform relative to the parent.
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3

	// Meshes are the node's sub-meshes in local space.
	Meshes []*Mesh
	// Plane is set for nodes built by NewPlane.
	Plane *PlaneGeometry

	parent    *Node
	children  []*Node
	onDestroy []func()
	destroyed bool
}

// NewNode creates an empty node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3One,
	}
}

// AddChild attaches child, detaching it from any previous parent.
func (n *Node) AddChild(child *Node) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// RemoveChild detaches child.
func (n *Node) RemoveChild(child *Node) {
	n.children = slices.DeleteFunc(n.children, func(c *Node) bool { return c == child })
	if child.parent == n {
		child.parent = nil
	}
}

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children.
func (n *Node) Children() []*Node { return n.children }

// LocalMatrix returns translation * rotation * scale.
func (n *Node) LocalMatrix() math.Mat4 {
	return math.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldMatrix composes the local matrices up to the root.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul(m)
	}
	return m
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() math.Vec3 {
	return n.WorldMatrix().Translation()
}

// WorldRotation returns the accumulated rotation, ignoring scale.
func (n *Node) WorldRotation() math.Quat {
	q := n.Rotation
	for p := n.parent; p != nil; p = p.parent {
		q = p.Rotation.Mul(q)
	}
	return q.Normalize()
}

// WorldScale returns the accumulated scale.
func (n *Node) WorldScale() math.Vec3 {
	s := n.Scale
	for p := n.parent; p != nil; p = p.parent {
		s = s.Mul(p.Scale)
	}
	return s
}

// SetWorldTransform sets the local transform so the node lands at the
// given world position and rotation.
func (n *Node) SetWorldTransform(pos math.Vec3, rot math.Quat) {
	if n.parent == nil {
		n.Position = pos
		n.Rotation = rot
		return
	}
	inv := n.parent.WorldMatrix().Inverse()
	n.Position = inv.TransformVec3(pos)
	n.Rotation = n.parent.WorldRotation().Conjugate().Mul(rot).Normalize()
}

// Bounds returns the world-space box of this node's meshes and those of
// its descendants. Rotated nodes yield the box of the rotated geometry.
func (n *Node) Bounds() math.AABB {
	b := math.EmptyAABB()
	n.walk(func(node *Node) {
		m := node.WorldMatrix()
		for _, mesh := range node.Meshes {
			for _, p := range mesh.Positions {
				b = b.Extend(m.TransformVec3(p))
			}
		}
	})
	return b
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// OnDestroy registers fn to run when the node is destroyed.
func (n *Node) OnDestroy(fn func()) {
	n.onDestroy = append(n.onDestroy, fn)
}

// Destroyed reports whether Destroy has run.
func (n *Node) Destroyed() bool { return n.destroyed }

// Destroy destroys children first, runs destroy callbacks in registration
// order and detaches the node from its parent.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	n.destroyed = true
	for _, c := range slices.Clone(n.children) {
		c.Destroy()
	}
	for _, fn := range n.onDestroy {
		fn()
	}
	n.onDestroy = nil
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// Clone deep-copies the node, its meshes and its children. Destroy
// callbacks are not copied.
func (n *Node) Clone() *Node {
	c := &Node{
		Name:     n.Name,
		Position: n.Position,
		Rotation: n.Rotation,
		Scale:    n.Scale,
	}
	for _, m := range n.Meshes {
		c.Meshes = append(c.Meshes, m.Clone())
	}
	if n.Plane != nil {
		p := *n.Plane
		c.Plane = &p
	}
	for _, child := range n.children {
		c.AddChild(child.Clone())
	}
	return c
}
