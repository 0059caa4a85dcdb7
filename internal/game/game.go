// Package game runs the physics frame loop and builds demo scenes.
package game

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/logger"
	"github.com/Faultbox/midgard-physics/internal/physics"
)

// Component is updated once per frame after the physics step.
type Component interface {
	Update(dt float32)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(dt float32)

// Update calls f.
func (f ComponentFunc) Update(dt float32) { f(dt) }

// Loop steps a physics world and updates its components in order.
type Loop struct {
	log        *zap.Logger
	World      *physics.World
	components []Component

	updates <-chan *config.Config
	errs    <-chan error
	reloads []func(*config.Config)

	frame int
	steps int
}

// NewLoop creates a loop around world.
func NewLoop(world *physics.World) *Loop {
	return &Loop{log: logger.Named("loop"), World: world}
}

// Add appends components; they update in the order added.
func (l *Loop) Add(c ...Component) {
	l.components = append(l.components, c...)
}

// Watch feeds reloaded configs into the loop. They are applied at the
// start of the next Tick, never from the sending goroutine.
func (l *Loop) Watch(updates <-chan *config.Config, errs <-chan error) {
	l.updates, l.errs = updates, errs
}

// OnReload registers fn to run with every accepted config reload, after
// the world has applied its own settings.
func (l *Loop) OnReload(fn func(*config.Config)) {
	l.reloads = append(l.reloads, fn)
}

// Tick runs one frame: pending reloads, one physics step, then every
// component. It returns the number of fixed steps taken.
func (l *Loop) Tick(dt float32) int {
	l.drainReloads()

	n := l.World.Step(dt)
	for _, c := range l.components {
		c.Update(dt)
	}

	l.frame++
	l.steps += n
	return n
}

func (l *Loop) drainReloads() {
	for {
		select {
		case cfg, ok := <-l.updates:
			if !ok {
				l.updates = nil
				continue
			}
			l.apply(cfg)
		case err, ok := <-l.errs:
			if !ok {
				l.errs = nil
				continue
			}
			l.log.Warn("config reload failed", zap.Error(err))
		default:
			return
		}
	}
}

func (l *Loop) apply(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		l.log.Warn("config reload rejected", zap.Error(err))
		return
	}
	l.World.ApplyConfig(cfg.Physics)
	for _, fn := range l.reloads {
		fn(cfg)
	}
	l.log.Info("config reloaded", zap.Int("frame", l.frame))
}

// Run ticks frames times with a fixed dt, or until ctx is done when
// frames <= 0. It does not sleep between frames.
func (l *Loop) Run(ctx context.Context, frames int, dt float32) error {
	started := time.Now()
	l.log.Info("starting loop", zap.Int("frames", frames), zap.Float32("dt", dt))

	for i := 0; frames <= 0 || i < frames; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Tick(dt)
	}

	l.log.Info("loop finished",
		zap.Int("frames", l.frame),
		zap.Int("steps", l.steps),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// Frame returns the number of frames ticked.
func (l *Loop) Frame() int { return l.frame }

// Steps returns the number of fixed physics steps taken.
func (l *Loop) Steps() int { return l.steps }
