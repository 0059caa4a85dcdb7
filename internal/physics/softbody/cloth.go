// Package softbody simulates cloth patches on plane meshes, optionally
// anchored to a rigid body.
package softbody

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type anchor struct {
	node             int
	influence        float32
	disableCollision bool
}

// Cloth is a soft body patch driving a plane node's mesh.
type Cloth struct {
	Node *scene.Node

	// Corners overrides the patch corners 00, 10, 01, 11. The default is
	// the plane standing upright in XY, centered on the origin.
	Corners *[4]math.Vec3
	Mass    float32
	Margin  float32

	FixNodes []NodeRef

	// Anchor pins AnchorIndices to a rigid body. Influence and
	// DisableCollision are per anchor; missing entries use the defaults.
	Anchor           *rigidbody.Body
	AnchorIndices    []NodeRef
	Influence        []float32
	DisableCollision []bool
	// RelativePosition offsets the patch from the anchor origin.
	RelativePosition math.Vec3
	// AbsoluteRotation orients an anchored patch, in Euler degrees.
	AbsoluteRotation math.Vec3

	// ApplyPosition and ApplyRotation place an unanchored patch relative to
	// the node position.
	ApplyPosition math.Vec3
	ApplyRotation math.Vec3

	log   *zap.Logger
	world *physics.World
	cfg   config.ClothConfig

	native   engine.SoftBody
	plane    scene.PlaneGeometry
	anchors  []anchor
	anchored engine.RigidBody
	drift    math.Vec3
	warnings error

	ready     *physics.Future[*Cloth]
	err       error
	started   bool
	destroyed bool
	undep     func()
	unswitch  func()
}

// New declares a cloth for a plane node. The cloth is destroyed with the
// node.
func New(world *physics.World, node *scene.Node, cfg config.ClothConfig) *Cloth {
	c := &Cloth{
		Node:   node,
		Mass:   cfg.Mass,
		Margin: cfg.Margin,
		log:    logger.Named("softbody"),
		world:  world,
		cfg:    cfg,
		ready:  physics.NewFuture[*Cloth](),
	}
	if node != nil {
		node.OnDestroy(c.Destroy)
	}
	return c
}

// Start builds the patch. An anchored cloth waits for its anchor body. In
// a rigid-only world nothing is built and a WorldModeMismatchError is
// logged and returned.
func (c *Cloth) Start() error {
	if c.world == nil || c.Node == nil {
		return &physics.ConfigurationError{Component: "cloth", Reason: "needs a world and a node"}
	}
	if c.Node.Plane == nil || len(c.Node.Meshes) == 0 {
		return &physics.ConfigurationError{Component: "cloth", Reason: fmt.Sprintf("node %q has no plane geometry", c.Node.Name)}
	}
	if len(c.AnchorIndices) > 0 && c.Anchor == nil {
		return &physics.ConfigurationError{Component: "cloth", Reason: "anchor indices without an anchor body"}
	}
	if !c.world.SoftBody() {
		err := &physics.WorldModeMismatchError{Component: "cloth"}
		c.log.Warn("cloth skipped", zap.String("node", c.Node.Name), zap.Error(err))
		return err
	}
	if c.started {
		return nil
	}
	c.started = true
	c.plane = *c.Node.Plane

	if c.Anchor == nil || len(c.AnchorIndices) == 0 {
		if err := c.build(); err != nil {
			return fmt.Errorf("start cloth %q: %w", c.Node.Name, err)
		}
		c.ready.Resolve(c)
		return nil
	}

	c.Anchor.OnReady(func(*rigidbody.Body) {
		if c.destroyed {
			return
		}
		if err := c.build(); err != nil {
			c.err = err
			c.log.Error("cloth build failed", zap.String("node", c.Node.Name), zap.Error(err))
			return
		}
		c.ready.Resolve(c)
	})
	return nil
}

func (c *Cloth) corners() [4]math.Vec3 {
	if c.Corners != nil {
		return *c.Corners
	}
	hw, hh := c.plane.Width/2, c.plane.Height/2
	return [4]math.Vec3{
		{X: -hw, Y: hh},
		{X: hw, Y: hh},
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
	}
}

func (c *Cloth) build() error {
	native, err := c.world.Backend().NewClothPatch(c.world.Native(), engine.PatchSpec{
		Corners:            c.corners(),
		ResX:               c.plane.SegmentsW + 1,
		ResY:               c.plane.SegmentsH + 1,
		TotalMass:          c.Mass,
		Margin:             c.Margin,
		BendingDistance:    c.cfg.BendingDistance,
		LinearStiffness:    c.cfg.LinearStiffness,
		AngularStiffness:   c.cfg.AngularStiffness,
		VelocityIterations: c.cfg.VelocityIterations,
		PositionIterations: c.cfg.PositionIterations,
	})
	if err != nil {
		return fmt.Errorf("create cloth patch: %w", err)
	}
	c.native = native

	for _, i := range c.resolve("fix node", c.FixNodes) {
		native.FixNode(i)
	}

	if c.Anchor != nil && len(c.AnchorIndices) > 0 {
		if err := c.attach(); err != nil {
			native.Destroy()
			c.native = nil
			return err
		}
	} else {
		native.Rotate(math.QuatFromEuler(c.ApplyRotation))
		native.Translate(c.Node.WorldPosition().Add(c.ApplyPosition))
	}

	// Node positions are world space from here on.
	c.Node.Position = math.Vec3{}
	c.Node.Rotation = math.QuatIdentity()

	if err := c.world.AddSoftBody(native, nil); err != nil {
		c.release()
		return err
	}
	c.unswitch = c.world.OnSwitch(c.discard)

	c.log.Debug("cloth created",
		zap.String("node", c.Node.Name),
		zap.Int("nodes", native.NumNodes()),
		zap.Int("anchors", native.NumAnchors()))
	return nil
}

// resolve maps refs to node indices, logging and collecting the ones out
// of range.
func (c *Cloth) resolve(what string, refs []NodeRef) []int {
	out := make([]int, 0, len(refs))
	for _, r := range refs {
		if i, ok := c.resolveRef(what, r); ok {
			out = append(out, i)
		}
	}
	return out
}

func (c *Cloth) resolveRef(what string, r NodeRef) (int, bool) {
	n := c.native.NumNodes()
	i := r.Resolve(c.plane.SegmentsW, c.plane.SegmentsH)
	if i < 0 || i >= n {
		err := &physics.InvalidIndexError{What: "cloth " + what + " " + r.String(), Index: i, Len: n}
		c.log.Warn("cloth node skipped", zap.String("node", c.Node.Name), zap.Error(err))
		c.warnings = multierr.Append(c.warnings, err)
		return 0, false
	}
	return i, true
}

// attach places the patch on the anchor body and pins the anchor nodes.
// Influence and DisableCollision stay keyed by the declared position, so
// a skipped ref does not shift the settings of the refs after it.
func (c *Cloth) attach() error {
	body := c.Anchor.Native()
	if body == nil {
		return &physics.ConfigurationError{Component: "cloth", Reason: "anchor body has no native body"}
	}
	xf := body.WorldTransform()
	c.native.Rotate(math.QuatFromEuler(c.AbsoluteRotation))
	c.native.Translate(xf.Origin.Add(c.RelativePosition))

	c.anchors = c.anchors[:0]
	for k, ref := range c.AnchorIndices {
		i, ok := c.resolveRef("anchor", ref)
		if !ok {
			continue
		}
		a := anchor{node: i, influence: c.cfg.AnchorInfluence}
		if k < len(c.Influence) {
			a.influence = c.Influence[k]
		}
		if k < len(c.DisableCollision) {
			a.disableCollision = c.DisableCollision[k]
		}
		c.anchors = append(c.anchors, a)
	}
	c.pin(body)
	c.undep = c.Anchor.AddDependent(rigidbody.Dependent{
		Teardown: c.detach,
		Release:  c.unpin,
		Rebuild:  c.repin,
	})
	return nil
}

func (c *Cloth) pin(body engine.RigidBody) {
	for _, a := range c.anchors {
		c.native.AppendAnchor(a.node, body, a.disableCollision, a.influence)
	}
	c.anchored = body
}

func (c *Cloth) unpin() {
	if c.native != nil {
		c.native.ClearAnchors()
	}
	c.anchored = nil
	c.drift = math.Vec3{}
}

// repin pins the same nodes to the anchor's rebuilt native body.
func (c *Cloth) repin() {
	if c.destroyed || c.native == nil {
		return
	}
	body := c.Anchor.Native()
	if body == nil {
		return
	}
	c.pin(body)
	c.log.Debug("cloth anchors rebuilt", zap.String("node", c.Node.Name), zap.Int("anchors", len(c.anchors)))
}

// Update writes the simulated nodes into the node's mesh. Positions are
// shifted by the anchor's interpolation drift so the cloth renders with
// the interpolated anchor.
func (c *Cloth) Update() {
	if c.native == nil {
		return
	}
	c.drift = math.Vec3{}
	if c.anchored != nil {
		c.drift = c.anchored.MotionState().Origin.Sub(c.anchored.WorldTransform().Origin)
	}

	mesh := c.Node.Meshes[0]
	n := c.native.NumNodes()
	if len(mesh.Positions) != n {
		mesh.Positions = make([]math.Vec3, n)
	}
	if len(mesh.Normals) != n {
		mesh.Normals = make([]math.Vec3, n)
	}
	for i := 0; i < n; i++ {
		mesh.Positions[i] = c.native.NodePosition(i).Add(c.drift)
		mesh.Normals[i] = c.native.NodeNormal(i)
	}
}

// ClearAnchors releases every anchor; the cloth keeps simulating free.
func (c *Cloth) ClearAnchors() {
	if c.undep != nil {
		c.undep()
		c.undep = nil
	}
	c.detach()
}

// detach runs when the anchor body goes away.
func (c *Cloth) detach() {
	c.unpin()
	c.anchors = nil
	c.undep = nil
	c.log.Debug("cloth anchors cleared", zap.String("node", c.Node.Name))
}

// Destroy removes the patch from the world and releases it.
func (c *Cloth) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	if c.undep != nil {
		c.undep()
		c.undep = nil
	}
	c.anchored = nil
	c.release()
}

func (c *Cloth) release() {
	if c.unswitch != nil {
		c.unswitch()
		c.unswitch = nil
	}
	if c.native == nil {
		return
	}
	c.world.RemoveSoftBody(c.native)
	c.native.Destroy()
	c.native = nil
}

// discard drops the patch when the world is replaced.
func (c *Cloth) discard() {
	c.native = nil
	c.anchored = nil
	c.undep = nil
	c.unswitch = nil
	c.destroyed = true
}

// Ready resolves once the patch is in the world.
func (c *Cloth) Ready() *physics.Future[*Cloth] { return c.ready }

// Native returns the native soft body, nil until built.
func (c *Cloth) Native() engine.SoftBody { return c.native }

// Drift returns the offset applied by the last Update.
func (c *Cloth) Drift() math.Vec3 { return c.drift }

// Anchored reports whether the patch is still pinned to its anchor body.
func (c *Cloth) Anchored() bool { return c.anchored != nil }

// Warnings returns every skipped node index, combined.
func (c *Cloth) Warnings() error { return c.warnings }

// Err returns the deferred build error, if any.
func (c *Cloth) Err() error { return c.err }
