// Package simple is an in-process reference implementation of the engine
// port. It integrates rigid bodies at a fixed step, resolves contacts
// against static bodies with axis-aligned boxes, runs slider motors, pins
// jointed bodies together, simulates cloth patches with position based
// dynamics and drives raycast vehicles. It is deterministic and has no cgo
// dependencies, which makes it the backend for tests and the demo.
package simple

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
)

// Stats counts live native objects. Tests use it to detect leaks.
type Stats struct {
	Shapes      int
	Bodies      int
	Constraints int
	SoftBodies  int
	Vehicles    int
	Worlds      int
}

// Backend creates simple native objects.
type Backend struct {
	log   *zap.Logger
	stats Stats
}

var _ engine.Backend = (*Backend)(nil)

// New creates a backend.
func New() *Backend {
	return &Backend{log: logger.Named("engine.simple")}
}

// Stats returns the live object counters.
func (b *Backend) Stats() Stats {
	return b.stats
}

// NewWorld implements engine.Backend.
func (b *Backend) NewWorld(cfg engine.WorldConfig) (engine.World, error) {
	b.stats.Worlds++
	b.log.Debug("world created", zap.Bool("softBody", cfg.SoftBody))
	return newWorld(b, cfg), nil
}

// NewShape implements engine.Backend.
func (b *Backend) NewShape(desc engine.ShapeDesc) (engine.Shape, error) {
	if err := validateShape(desc); err != nil {
		return nil, err
	}
	b.stats.Shapes++
	return newShape(b, desc), nil
}

// NewRigidBody implements engine.Backend.
func (b *Backend) NewRigidBody(info engine.RigidBodyInfo) (engine.RigidBody, error) {
	s, ok := info.Shape.(*shape)
	if !ok || s == nil {
		return nil, fmt.Errorf("simple: rigid body needs a simple shape, got %T", info.Shape)
	}
	b.stats.Bodies++
	return newRigidBody(b, s, info), nil
}

// NewConstraint implements engine.Backend.
func (b *Backend) NewConstraint(spec engine.ConstraintSpec) (engine.Constraint, error) {
	c, err := newConstraint(b, spec)
	if err != nil {
		return nil, err
	}
	b.stats.Constraints++
	return c, nil
}

// NewClothPatch implements engine.Backend.
func (b *Backend) NewClothPatch(w engine.World, spec engine.PatchSpec) (engine.SoftBody, error) {
	sw, ok := w.(*world)
	if !ok || !sw.SupportsSoftBodies() {
		return nil, fmt.Errorf("simple: cloth patch needs a soft body world: %w", engine.ErrUnsupported)
	}
	if spec.ResX < 2 || spec.ResY < 2 {
		return nil, fmt.Errorf("simple: cloth patch needs at least 2x2 nodes, got %dx%d", spec.ResX, spec.ResY)
	}
	b.stats.SoftBodies++
	return newCloth(b, spec), nil
}

// NewRaycastVehicle implements engine.Backend.
func (b *Backend) NewRaycastVehicle(w engine.World, chassis engine.RigidBody, tuning engine.VehicleTuning) (engine.RaycastVehicle, error) {
	sw, ok := w.(*world)
	if !ok {
		return nil, fmt.Errorf("simple: vehicle needs a simple world, got %T", w)
	}
	rb, ok := chassis.(*rigidBody)
	if !ok || rb == nil {
		return nil, fmt.Errorf("simple: vehicle needs a simple chassis, got %T", chassis)
	}
	b.stats.Vehicles++
	return newVehicle(b, sw, rb, tuning), nil
}
