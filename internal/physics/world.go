// Package physics connects scene-graph nodes to a native physics engine. It
// owns the world clock, the node/body mapping and the readiness futures that
// let multi-body relationships be declared before their bodies exist.
package physics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

type switchListener struct {
	id int
	fn func()
}

// World owns the native dynamics world and the frame clock. It is passed
// explicitly to every component instead of living in a global.
type World struct {
	log     *zap.Logger
	backend engine.Backend
	cfg     config.PhysicsConfig
	native  engine.World
	bounds  math.AABB
	mapping *Mapping
	paused  bool

	listeners []switchListener
	nextID    int

	handlers []namedHandler
}

// NewWorld creates the native world described by cfg.
func NewWorld(backend engine.Backend, cfg config.PhysicsConfig) (*World, error) {
	if backend == nil {
		return nil, &ConfigurationError{Component: "world", Reason: "no physics backend"}
	}
	if cfg.FixedTimeStep <= 0 {
		return nil, &ConfigurationError{Component: "world", Reason: fmt.Sprintf("fixed time step %v", cfg.FixedTimeStep)}
	}

	w := &World{
		log:     logger.Named("physics"),
		backend: backend,
		cfg:     cfg,
		bounds:  math.AABBFromCenter(math.Vec3{}, math.Vec3{X: cfg.WorldHalfExtent, Y: cfg.WorldHalfExtent, Z: cfg.WorldHalfExtent}),
		mapping: NewMapping(),
	}
	if err := w.createNative(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) createNative() error {
	native, err := w.backend.NewWorld(engine.WorldConfig{
		Gravity:         w.cfg.Gravity,
		SoftBody:        w.cfg.SoftBody,
		AirDensity:      w.cfg.AirDensity,
		MaxDisplacement: w.cfg.MaxDisplacement,
	})
	if err != nil {
		return fmt.Errorf("create native world: %w", err)
	}
	w.native = native
	native.SetContactHandler(w.dispatchContact)
	w.log.Info("physics world created",
		zap.Bool("softBody", w.cfg.SoftBody),
		zap.Float32("fixedTimeStep", w.cfg.FixedTimeStep),
		zap.Int("maxSubSteps", w.cfg.MaxSubSteps))
	return nil
}

// Native returns the native world.
func (w *World) Native() engine.World { return w.native }

// Backend returns the backend used to create native objects.
func (w *World) Backend() engine.Backend { return w.backend }

// Mapping returns the node/body mapping.
func (w *World) Mapping() *Mapping { return w.mapping }

// Config returns the world settings.
func (w *World) Config() config.PhysicsConfig { return w.cfg }

// CollisionMargin is the margin applied to every built shape.
func (w *World) CollisionMargin() float32 { return w.cfg.CollisionMargin }

// SoftBody reports whether the world supports soft bodies.
func (w *World) SoftBody() bool { return w.cfg.SoftBody }

// Bounds returns the world bounds; bodies leaving them are destroyed.
func (w *World) Bounds() math.AABB { return w.bounds }

// InBounds reports whether p lies inside the world bounds.
func (w *World) InBounds(p math.Vec3) bool { return w.bounds.Contains(p) }

// SetPaused stops or resumes the clock.
func (w *World) SetPaused(paused bool) { w.paused = paused }

// Paused reports whether the clock is stopped.
func (w *World) Paused() bool { return w.paused }

// Step advances the native world by one frame of dt seconds and returns
// the number of fixed steps taken.
func (w *World) Step(dt float32) int {
	if w.paused || w.native == nil {
		return 0
	}
	return w.native.StepSimulation(dt, w.cfg.MaxSubSteps, w.cfg.FixedTimeStep)
}

// SetGravity changes gravity for the world and all its dynamic bodies.
func (w *World) SetGravity(g math.Vec3) {
	w.cfg.Gravity = g
	w.native.SetGravity(g)
}

// ApplyConfig takes new clock and gravity settings. The world mode is only
// changed through SwitchMode.
func (w *World) ApplyConfig(cfg config.PhysicsConfig) {
	if cfg.SoftBody != w.cfg.SoftBody {
		w.log.Warn("ignoring soft_body change on reload; use SwitchMode", zap.Bool("requested", cfg.SoftBody))
		cfg.SoftBody = w.cfg.SoftBody
	}
	if cfg.Gravity != w.cfg.Gravity {
		w.native.SetGravity(cfg.Gravity)
	}
	w.cfg = cfg
	w.bounds = math.AABBFromCenter(math.Vec3{}, math.Vec3{X: cfg.WorldHalfExtent, Y: cfg.WorldHalfExtent, Z: cfg.WorldHalfExtent})
}

// OnSwitch registers fn to run when SwitchMode discards the native world.
// The returned func removes the registration.
func (w *World) OnSwitch(fn func()) (cancel func()) {
	w.nextID++
	id := w.nextID
	w.listeners = append(w.listeners, switchListener{id: id, fn: fn})
	return func() {
		for i, l := range w.listeners {
			if l.id == id {
				w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
				return
			}
		}
	}
}

// SwitchMode replaces the native world with one in the requested mode.
// This is destructive: every registered object is notified and must drop
// its natives without touching the old world, which is then destroyed.
func (w *World) SwitchMode(softBody bool) error {
	if softBody == w.cfg.SoftBody {
		return nil
	}
	w.log.Warn("switching physics world mode; all bodies are discarded",
		zap.Bool("softBody", softBody), zap.Int("registered", len(w.listeners)))

	listeners := w.listeners
	w.listeners = nil
	for _, l := range listeners {
		l.fn()
	}
	w.mapping.Clear()
	w.native.Destroy()

	w.cfg.SoftBody = softBody
	return w.createNative()
}

// AddRigidBody inserts body with an optional collision filter.
func (w *World) AddRigidBody(body engine.RigidBody, filter *engine.CollisionFilter) {
	w.native.AddRigidBody(body, filter)
}

// RemoveRigidBody removes body from the world.
func (w *World) RemoveRigidBody(body engine.RigidBody) {
	w.native.RemoveRigidBody(body)
}

// AddConstraint inserts c.
func (w *World) AddConstraint(c engine.Constraint, disableCollisionsBetweenLinkedBodies bool) {
	w.native.AddConstraint(c, disableCollisionsBetweenLinkedBodies)
}

// RemoveConstraint removes c.
func (w *World) RemoveConstraint(c engine.Constraint) {
	w.native.RemoveConstraint(c)
}

// NumConstraints returns the number of constraints in the world.
func (w *World) NumConstraints() int { return w.native.NumConstraints() }

// NumRigidBodies returns the number of rigid bodies in the world.
func (w *World) NumRigidBodies() int { return w.native.NumRigidBodies() }

// AddSoftBody inserts sb. A rigid-only world logs a warning, leaves the
// world unchanged and returns a *WorldModeMismatchError.
func (w *World) AddSoftBody(sb engine.SoftBody, filter *engine.CollisionFilter) error {
	if !w.cfg.SoftBody {
		err := &WorldModeMismatchError{Component: "soft body"}
		w.log.Warn("soft body ignored", zap.Error(err))
		return err
	}
	w.native.AddSoftBody(sb, filter)
	return nil
}

// RemoveSoftBody removes sb.
func (w *World) RemoveSoftBody(sb engine.SoftBody) {
	if w.cfg.SoftBody {
		w.native.RemoveSoftBody(sb)
	}
}

// AddAction registers a vehicle to run every step.
func (w *World) AddAction(v engine.RaycastVehicle) { w.native.AddAction(v) }

// RemoveAction unregisters a vehicle.
func (w *World) RemoveAction(v engine.RaycastVehicle) { w.native.RemoveAction(v) }

// RayTest returns the closest body hit between from and to.
func (w *World) RayTest(from, to math.Vec3) (engine.RayHit, bool) {
	return w.native.RayTest(from, to)
}

// Pick returns the scene node of the closest body hit between from and to.
func (w *World) Pick(from, to math.Vec3) (*scene.Node, engine.RayHit, bool) {
	hit, ok := w.native.RayTest(from, to)
	if !ok {
		return nil, hit, false
	}
	node, ok := w.mapping.Node(hit.Body)
	return node, hit, ok
}

// Destroy notifies registered objects and releases the native world.
func (w *World) Destroy() {
	if w.native == nil {
		return
	}
	listeners := w.listeners
	w.listeners = nil
	for _, l := range listeners {
		l.fn()
	}
	w.mapping.Clear()
	w.native.Destroy()
	w.native = nil
	w.log.Info("physics world destroyed")
}
