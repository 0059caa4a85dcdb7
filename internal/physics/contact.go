package physics

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/scene"
)

// Contact is a native contact together with the nodes of both bodies.
// A node is nil when its body is not registered in the mapping.
type Contact struct {
	engine.Contact
	NodeA *scene.Node
	NodeB *scene.Node
}

// ContactHandler is called for every contact of a body that has
// engine.CFCustomMaterialCallback set. BodyA is always the flagged body.
type ContactHandler func(Contact)

type namedHandler struct {
	name string
	fn   ContactHandler
}

// OnContact registers fn under name. A handler already registered under
// the same name is replaced and keeps its place in the call order.
// Handlers survive SwitchMode.
func (w *World) OnContact(name string, fn ContactHandler) {
	for i := range w.handlers {
		if w.handlers[i].name == name {
			w.handlers[i].fn = fn
			return
		}
	}
	w.handlers = append(w.handlers, namedHandler{name: name, fn: fn})
	w.log.Debug("contact handler registered", zap.String("name", name))
}

// RemoveContactHandler unregisters the handler named name and reports
// whether one was registered.
func (w *World) RemoveContactHandler(name string) bool {
	for i, h := range w.handlers {
		if h.name == name {
			w.handlers = append(w.handlers[:i], w.handlers[i+1:]...)
			return true
		}
	}
	return false
}

func (w *World) dispatchContact(c engine.Contact) {
	if len(w.handlers) == 0 {
		return
	}
	ev := Contact{Contact: c}
	ev.NodeA, _ = w.mapping.Node(c.BodyA)
	ev.NodeB, _ = w.mapping.Node(c.BodyB)
	// A handler may remove itself.
	for _, h := range append([]namedHandler(nil), w.handlers...) {
		h.fn(ev)
	}
}
