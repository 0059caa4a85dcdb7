package simple

import (
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// contactSlop widens the boxes so resting pairs, which the solver keeps
// just apart, still count as touching.
const contactSlop = 0.02

// reportContacts hands every touching pair with a flagged body to the
// contact handler. Filters and linked-body exclusions apply here.
func (w *world) reportContacts() {
	if w.onContact == nil {
		return
	}
	for i, a := range w.bodies {
		for _, b := range w.bodies[i+1:] {
			fa := a.flags.Has(engine.CFCustomMaterialCallback)
			fb := b.flags.Has(engine.CFCustomMaterialCallback)
			if !fa && !fb {
				continue
			}
			if a.isStaticOrKinematic() && b.isStaticOrKinematic() {
				continue
			}
			if !a.filter.Accepts(b.filter) || w.linkedWithoutCollision(a, b) {
				continue
			}
			if !fa {
				a, b = b, a
			}
			c, ok := touching(a, b)
			if !ok {
				continue
			}
			c.Impulse = impulseOn(a, c.Normal)
			if c.Impulse == 0 {
				c.Impulse = impulseOn(b, c.Normal.Neg())
			}
			w.onContact(c)
		}
	}
}

// touching intersects the world boxes of a and b. The normal is the axis
// of least overlap, pointing from b towards a.
func touching(a, b *rigidBody) (engine.Contact, bool) {
	ab, bb := a.worldBounds(), b.worldBounds()
	lo := ab.Min.Max(bb.Min)
	hi := ab.Max.Min(bb.Max)
	size := hi.Sub(lo)
	if size.X < -contactSlop || size.Y < -contactSlop || size.Z < -contactSlop {
		return engine.Contact{}, false
	}

	axis := 0
	for i := 1; i < 3; i++ {
		if size.Component(i) < size.Component(axis) {
			axis = i
		}
	}
	n := axisVec(axis)
	if ab.Center().Component(axis) < bb.Center().Component(axis) {
		n = n.Neg()
	}
	return engine.Contact{
		BodyA:  a,
		BodyB:  b,
		Point:  lo.Add(hi).Scale(0.5),
		Normal: n,
		Depth:  max(size.Component(axis), 0),
	}, true
}

// impulseOn is the momentum r gained along n during the step.
func impulseOn(r *rigidBody, n math.Vec3) float32 {
	if r.isStaticOrKinematic() {
		return 0
	}
	return max(r.linVel.Sub(r.preVel).Dot(n), 0) * r.mass
}
