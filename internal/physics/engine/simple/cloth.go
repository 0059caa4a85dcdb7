package simple

import (
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type clothNode struct {
	pos     math.Vec3
	vel     math.Vec3
	force   math.Vec3
	invMass float32
	normal  math.Vec3
}

type link struct {
	a, b int
	rest float32
	k    float32
}

type anchor struct {
	node             int
	body             *rigidBody
	local            math.Vec3
	influence        float32
	disableCollision bool
}

// cloth is a rectangular patch integrated with position based dynamics.
type cloth struct {
	backend *Backend
	world   *world
	spec    engine.PatchSpec

	nodes   []clothNode
	links   []link
	anchors []anchor
	gravity math.Vec3

	destroyed bool
}

func newCloth(b *Backend, spec engine.PatchSpec) *cloth {
	c := &cloth{backend: b, spec: spec}
	if c.spec.PositionIterations <= 0 {
		c.spec.PositionIterations = 1
	}

	n := spec.ResX * spec.ResY
	invMass := float32(0)
	if spec.TotalMass > 0 {
		invMass = float32(n) / spec.TotalMass
	}

	c.nodes = make([]clothNode, n)
	for iy := 0; iy < spec.ResY; iy++ {
		ty := float32(iy) / float32(spec.ResY-1)
		left := spec.Corners[0].Lerp(spec.Corners[2], ty)
		right := spec.Corners[1].Lerp(spec.Corners[3], ty)
		for ix := 0; ix < spec.ResX; ix++ {
			tx := float32(ix) / float32(spec.ResX-1)
			c.nodes[c.index(ix, iy)] = clothNode{pos: left.Lerp(right, tx), invMass: invMass}
		}
	}

	// Structural links along both grid directions plus shear diagonals.
	k := clamp01(spec.LinearStiffness)
	if k == 0 {
		k = 1
	}
	for iy := 0; iy < spec.ResY; iy++ {
		for ix := 0; ix < spec.ResX; ix++ {
			i := c.index(ix, iy)
			if ix+1 < spec.ResX {
				c.addLink(i, c.index(ix+1, iy), k)
			}
			if iy+1 < spec.ResY {
				c.addLink(i, c.index(ix, iy+1), k)
			}
			if ix+1 < spec.ResX && iy+1 < spec.ResY {
				c.addLink(i, c.index(ix+1, iy+1), k)
				c.addLink(c.index(ix+1, iy), c.index(ix, iy+1), k)
			}
		}
	}

	// Bending links skip nodes; their stiffness is the angular one.
	if d := spec.BendingDistance; d >= 2 {
		kb := clamp01(spec.AngularStiffness)
		for iy := 0; iy < spec.ResY; iy++ {
			for ix := 0; ix < spec.ResX; ix++ {
				i := c.index(ix, iy)
				if ix+d < spec.ResX {
					c.addLink(i, c.index(ix+d, iy), kb)
				}
				if iy+d < spec.ResY {
					c.addLink(i, c.index(ix, iy+d), kb)
				}
			}
		}
	}

	c.updateNormals()
	return c
}

func (c *cloth) index(ix, iy int) int {
	return iy*c.spec.ResX + ix
}

func (c *cloth) addLink(a, b int, k float32) {
	c.links = append(c.links, link{a: a, b: b, rest: c.nodes[a].pos.Distance(c.nodes[b].pos), k: k})
}

func (c *cloth) NumNodes() int { return len(c.nodes) }

func (c *cloth) NodePosition(i int) math.Vec3 { return c.nodes[i].pos }

func (c *cloth) NodeNormal(i int) math.Vec3 { return c.nodes[i].normal }

func (c *cloth) NodeInverseMass(i int) float32 { return c.nodes[i].invMass }

func (c *cloth) FixNode(i int) {
	n := &c.nodes[i]
	n.vel = math.Vec3{}
	n.force = math.Vec3{}
	n.invMass = 0
}

// Rotate rotates every node about the world origin.
func (c *cloth) Rotate(q math.Quat) {
	for i := range c.nodes {
		c.nodes[i].pos = q.Rotate(c.nodes[i].pos)
	}
	c.updateNormals()
}

func (c *cloth) Translate(v math.Vec3) {
	for i := range c.nodes {
		c.nodes[i].pos = c.nodes[i].pos.Add(v)
	}
}

func (c *cloth) AppendAnchor(node int, body engine.RigidBody, disableCollision bool, influence float32) {
	rb := body.(*rigidBody)
	c.anchors = append(c.anchors, anchor{
		node:             node,
		body:             rb,
		local:            rb.xf.Inverse().Apply(c.nodes[node].pos),
		influence:        clamp01(influence),
		disableCollision: disableCollision,
	})
}

func (c *cloth) NumAnchors() int { return len(c.anchors) }

func (c *cloth) ClearAnchors() { c.anchors = nil }

func (c *cloth) Destroy() {
	if c.destroyed {
		return
	}
	if c.world != nil {
		c.world.RemoveSoftBody(c)
	}
	c.destroyed = true
	c.backend.stats.SoftBodies--
}

func (c *cloth) step(h float32) {
	const damping = 0.02

	prev := make([]math.Vec3, len(c.nodes))
	for i := range c.nodes {
		n := &c.nodes[i]
		prev[i] = n.pos
		if n.invMass == 0 {
			continue
		}
		n.vel = n.vel.Add(c.gravity.Add(n.force.Scale(n.invMass)).Scale(h)).Scale(1 - damping)
		n.pos = n.pos.Add(n.vel.Scale(h))
		n.force = math.Vec3{}
	}

	for it := 0; it < c.spec.PositionIterations; it++ {
		for _, l := range c.links {
			c.relax(l)
		}
		c.pullAnchors()
	}

	if h > 0 {
		for i := range c.nodes {
			if c.nodes[i].invMass > 0 {
				c.nodes[i].vel = c.nodes[i].pos.Sub(prev[i]).Scale(1 / h)
			}
		}
	}
	c.updateNormals()
}

func (c *cloth) relax(l link) {
	a, b := &c.nodes[l.a], &c.nodes[l.b]
	w := a.invMass + b.invMass
	if w == 0 {
		return
	}
	d := b.pos.Sub(a.pos)
	dist := d.Length()
	if dist == 0 {
		return
	}
	corr := d.Scale((dist - l.rest) / dist * l.k / w)
	a.pos = a.pos.Add(corr.Scale(a.invMass))
	b.pos = b.pos.Sub(corr.Scale(b.invMass))
}

func (c *cloth) pullAnchors() {
	for _, an := range c.anchors {
		n := &c.nodes[an.node]
		target := an.body.xf.Apply(an.local)
		n.pos = n.pos.Lerp(target, an.influence)
	}
}

func (c *cloth) updateNormals() {
	for i := range c.nodes {
		c.nodes[i].normal = math.Vec3{}
	}
	for iy := 0; iy+1 < c.spec.ResY; iy++ {
		for ix := 0; ix+1 < c.spec.ResX; ix++ {
			i00, i10 := c.index(ix, iy), c.index(ix+1, iy)
			i01, i11 := c.index(ix, iy+1), c.index(ix+1, iy+1)
			c.faceNormal(i00, i10, i11)
			c.faceNormal(i00, i11, i01)
		}
	}
	for i := range c.nodes {
		c.nodes[i].normal = c.nodes[i].normal.Normalize()
	}
}

func (c *cloth) faceNormal(a, b, d int) {
	n := c.nodes[b].pos.Sub(c.nodes[a].pos).Cross(c.nodes[d].pos.Sub(c.nodes[a].pos))
	for _, i := range [...]int{a, b, d} {
		c.nodes[i].normal = c.nodes[i].normal.Add(n)
	}
}
