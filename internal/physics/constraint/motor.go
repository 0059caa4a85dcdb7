package constraint

import (
	gomath "math"
)

// limitTolerance is how close the slider must come to a limit to count
// as resting on it.
const limitTolerance = 1e-4

// SliderMotor drives a slider back and forth between two limits, pausing
// at each end before reversing.
type SliderMotor struct {
	slider *Slider

	lower, upper float32
	// PauseDuration is the time in seconds spent at a limit.
	PauseDuration float32
	// Velocity is the linear speed; its sign is chosen by the motor.
	Velocity float32
	// AngularVelocity spins the slider around its axis when non-zero.
	AngularVelocity float32
	// MaxForce caps the linear motor.
	MaxForce float32

	timer float32
}

// NewSliderMotor attaches a ping-pong motor to s. The slider's linear
// motor is enabled when it is built.
func NewSliderMotor(s *Slider, velocity, pause float32) *SliderMotor {
	m := &SliderMotor{
		slider:        s,
		lower:         s.LinearLower,
		upper:         s.LinearUpper,
		PauseDuration: pause,
		Velocity:      velocity,
		MaxForce:      1000,
	}
	s.LinearMotor = &Motor{TargetVelocity: abs32(velocity), MaxForce: m.MaxForce}
	return m
}

// SetMotorLimit sets the travel limits on the declaration and, once built,
// on the native slider.
func (m *SliderMotor) SetMotorLimit(lower, upper float32) {
	m.lower, m.upper = lower, upper
	m.slider.LinearLower, m.slider.LinearUpper = lower, upper
	if c, ok := m.slider.Constraint(); ok {
		c.SetLinearLimits(lower, upper)
	}
}

// Limits returns the travel limits.
func (m *SliderMotor) Limits() (lower, upper float32) { return m.lower, m.upper }

// Update advances the pause timer by dt seconds. After PauseDuration at a
// limit the target velocity points away from it; leaving a limit resets
// the timer.
func (m *SliderMotor) Update(dt float32) {
	c, ok := m.slider.Constraint()
	if !ok {
		return
	}
	if m.AngularVelocity != 0 {
		c.SetPoweredAngularMotor(true)
		c.SetTargetAngularMotorVelocity(m.AngularVelocity)
		c.SetMaxAngularMotorForce(m.MaxForce)
	}

	pos := c.LinearPosition()
	// Overshooting a limit counts as resting on it.
	atLower := pos <= m.lower+limitTolerance
	atUpper := pos >= m.upper-limitTolerance
	if !atLower && !atUpper {
		m.timer = 0
		return
	}

	m.timer += dt
	if m.timer < m.PauseDuration {
		return
	}
	m.timer = 0
	v := abs32(m.Velocity)
	if atUpper {
		v = -v
	}
	c.SetPoweredLinearMotor(true)
	c.SetTargetLinearMotorVelocity(v)
	c.SetMaxLinearMotorForce(m.MaxForce)
}

func abs32(f float32) float32 {
	return float32(gomath.Abs(float64(f)))
}
