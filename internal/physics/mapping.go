package physics

import (
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/scene"
)

// Mapping associates scene nodes with native bodies in both directions.
type Mapping struct {
	bodies map[*scene.Node]engine.RigidBody
	nodes  map[engine.RigidBody]*scene.Node
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{
		bodies: make(map[*scene.Node]engine.RigidBody),
		nodes:  make(map[engine.RigidBody]*scene.Node),
	}
}

// Register links node and body, replacing any previous link of either.
func (m *Mapping) Register(node *scene.Node, body engine.RigidBody) {
	if old, ok := m.bodies[node]; ok {
		delete(m.nodes, old)
	}
	if old, ok := m.nodes[body]; ok {
		delete(m.bodies, old)
	}
	m.bodies[node] = body
	m.nodes[body] = node
}

// Body returns the native body of node.
func (m *Mapping) Body(node *scene.Node) (engine.RigidBody, bool) {
	b, ok := m.bodies[node]
	return b, ok
}

// Node returns the scene node of body.
func (m *Mapping) Node(body engine.RigidBody) (*scene.Node, bool) {
	n, ok := m.nodes[body]
	return n, ok
}

// Unregister removes node and its body.
func (m *Mapping) Unregister(node *scene.Node) {
	if b, ok := m.bodies[node]; ok {
		delete(m.nodes, b)
		delete(m.bodies, node)
	}
}

// Len returns the number of linked pairs.
func (m *Mapping) Len() int { return len(m.bodies) }

// Clear removes every link.
func (m *Mapping) Clear() {
	clear(m.bodies)
	clear(m.nodes)
}
