// Package constraint joins rigid bodies with native constraints. A
// constraint may be declared before its bodies exist; it is built once the
// self body and then the target body are ready.
package constraint

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

// Unlimited is the limit value treated as "no limit".
const Unlimited = 1e30

// variant supplies the kind-specific parts of a constraint.
type variant[T engine.Constraint] interface {
	validate() error
	spec() engine.ConstraintSpec
	configure(c T)
}

// Base is the shared part of every constraint. T is the native constraint
// interface of the variant.
type Base[T engine.Constraint] struct {
	Self         *rigidbody.Body
	SelfPivot    math.Vec3
	SelfRotation math.Quat

	// Target is optional; without it the constraint is anchored to world
	// space at the self frame.
	Target         *rigidbody.Body
	TargetPivot    math.Vec3
	TargetRotation math.Quat

	// BreakingImpulseThreshold of 0 leaves the native default.
	BreakingImpulseThreshold float32
	// DisableCollisionsBetweenLinkedBodies defaults to true.
	DisableCollisionsBetweenLinkedBodies bool

	log     *zap.Logger
	kind    engine.ConstraintKind
	variant variant[T]

	native T
	live   bool
	ready  *physics.Future[T]
	err    error

	started   bool
	destroyed bool
	undeps    []func()
	unswitch  func()
}

func (b *Base[T]) init(kind engine.ConstraintKind, self *rigidbody.Body, v variant[T]) {
	b.Self = self
	b.SelfRotation = math.QuatIdentity()
	b.TargetRotation = math.QuatIdentity()
	b.DisableCollisionsBetweenLinkedBodies = true
	b.log = logger.Named("constraint")
	b.kind = kind
	b.variant = v
	b.ready = physics.NewFuture[T]()
}

func (b *Base[T]) validate() error { return nil }

// Start waits for the self body, then the target body, and builds the
// native constraint. Bodies are started by their owners.
func (b *Base[T]) Start() error {
	if b.Self == nil {
		return &physics.ConfigurationError{Component: b.kind.String() + " constraint", Reason: "no self body"}
	}
	if err := b.variant.validate(); err != nil {
		return err
	}
	if b.started {
		return nil
	}
	b.started = true

	b.Self.OnReady(func(*rigidbody.Body) {
		if b.Target == nil {
			b.create()
			return
		}
		b.Target.OnReady(func(*rigidbody.Body) { b.create() })
	})
	return nil
}

// create builds and inserts the native constraint. Failures are logged and
// kept for Err; the bodies are ready by now, so nothing retries.
func (b *Base[T]) create() {
	if b.destroyed || b.live {
		return
	}
	if err := b.build(); err != nil {
		b.err = err
		b.log.Error("constraint build failed", zap.Stringer("kind", b.kind), zap.Error(err))
		return
	}
	b.ready.Resolve(b.native)
}

func (b *Base[T]) build() error {
	if err := b.buildNative(); err != nil {
		return err
	}
	dep := rigidbody.Dependent{Teardown: b.teardown, Release: b.dropNative, Rebuild: b.resume}
	b.undeps = append(b.undeps, b.Self.AddDependent(dep))
	if b.Target != nil {
		b.undeps = append(b.undeps, b.Target.AddDependent(dep))
	}
	b.unswitch = b.Self.World().OnSwitch(b.discard)

	b.log.Debug("constraint created",
		zap.Stringer("kind", b.kind),
		zap.String("self", b.Self.Node().Name),
		zap.Bool("twoBody", b.Target != nil))
	return nil
}

func (b *Base[T]) buildNative() error {
	self := b.Self.Native()
	if self == nil {
		return &physics.ConfigurationError{Component: b.kind.String() + " constraint", Reason: "self body has no native body"}
	}
	spec := b.variant.spec()
	spec.Kind = b.kind
	spec.BodyA = self
	if b.Target != nil {
		target := b.Target.Native()
		if target == nil {
			return &physics.ConfigurationError{Component: b.kind.String() + " constraint", Reason: "target body has no native body"}
		}
		spec.BodyB = target
	}

	world := b.Self.World()
	c, err := world.Backend().NewConstraint(spec)
	if err != nil {
		return fmt.Errorf("create %s constraint: %w", b.kind, err)
	}
	native, ok := c.(T)
	if !ok {
		c.Destroy()
		return fmt.Errorf("create %s constraint: backend returned %T", b.kind, c)
	}

	if b.BreakingImpulseThreshold > 0 {
		native.SetBreakingImpulseThreshold(b.BreakingImpulseThreshold)
	}
	b.variant.configure(native)
	world.AddConstraint(native, b.DisableCollisionsBetweenLinkedBodies)

	b.native, b.live, b.err = native, true, nil
	return nil
}

// resume rebuilds the native constraint after a body replaced its native
// body. Registrations survive the rebuild.
func (b *Base[T]) resume() {
	if b.destroyed || b.live {
		return
	}
	if err := b.buildNative(); err != nil {
		b.err = err
		b.log.Error("constraint rebuild failed", zap.Stringer("kind", b.kind), zap.Error(err))
		return
	}
	b.log.Debug("constraint rebuilt", zap.Stringer("kind", b.kind), zap.String("self", b.Self.Node().Name))
}

// Wait runs fn with the native constraint once it is built.
func (b *Base[T]) Wait(fn func(T)) { b.ready.Then(fn) }

// Ready resolves with the first native constraint built.
func (b *Base[T]) Ready() *physics.Future[T] { return b.ready }

// Constraint returns the live native constraint.
func (b *Base[T]) Constraint() (T, bool) { return b.native, b.live }

// Err returns the last deferred build error.
func (b *Base[T]) Err() error { return b.err }

// Reset destroys and rebuilds the native constraint from the current
// declaration. Both bodies must be ready.
func (b *Base[T]) Reset() (T, error) {
	var zero T
	if b.destroyed {
		return zero, &physics.ConfigurationError{Component: b.kind.String() + " constraint", Reason: "reset after destroy"}
	}
	if !b.live {
		return zero, &physics.ConfigurationError{Component: b.kind.String() + " constraint", Reason: "reset before the bodies are ready"}
	}
	b.release()
	if err := b.build(); err != nil {
		b.err = err
		return zero, err
	}
	return b.native, nil
}

// Destroy removes and releases the native constraint. Pending builds are
// cancelled.
func (b *Base[T]) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.release()
}

// teardown runs when either body is destroyed.
func (b *Base[T]) teardown() {
	b.destroyed = true
	b.release()
}

func (b *Base[T]) release() {
	for _, undo := range b.undeps {
		undo()
	}
	b.undeps = nil
	if b.unswitch != nil {
		b.unswitch()
		b.unswitch = nil
	}
	b.dropNative()
}

func (b *Base[T]) dropNative() {
	if !b.live {
		return
	}
	b.Self.World().RemoveConstraint(b.native)
	b.native.Destroy()
	var zero T
	b.native, b.live = zero, false
}

// discard drops the native constraint when the world is replaced.
func (b *Base[T]) discard() {
	var zero T
	b.native, b.live = zero, false
	b.undeps = nil
	b.unswitch = nil
	b.destroyed = true
}

func (b *Base[T]) frameA() *engine.Transform {
	return &engine.Transform{Origin: b.SelfPivot, Rotation: rotationOrIdentity(b.SelfRotation)}
}

// frameB is nil for single-body constraints.
func (b *Base[T]) frameB() *engine.Transform {
	if b.Target == nil {
		return nil
	}
	return &engine.Transform{Origin: b.TargetPivot, Rotation: rotationOrIdentity(b.TargetRotation)}
}

func rotationOrIdentity(q math.Quat) math.Quat {
	if q.IsZero() {
		return math.QuatIdentity()
	}
	return q
}
