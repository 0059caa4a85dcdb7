package physics

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrConfiguration     = errors.New("physics: invalid configuration")
	ErrUnsupportedShape  = errors.New("physics: unsupported shape")
	ErrInvalidIndex      = errors.New("physics: invalid index")
	ErrWorldModeMismatch = errors.New("physics: world mode mismatch")
)

// ConfigurationError reports a required parameter that is missing or
// malformed, such as a constraint without a self body.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// UnsupportedShapeError reports a shape kind that cannot be built.
type UnsupportedShapeError struct {
	Kind   string
	Reason string
}

func (e *UnsupportedShapeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unsupported shape %q", e.Kind)
	}
	return fmt.Sprintf("unsupported shape %q: %s", e.Kind, e.Reason)
}

func (e *UnsupportedShapeError) Is(target error) bool { return target == ErrUnsupportedShape }

// InvalidIndexError reports a node or wheel index outside its range.
type InvalidIndexError struct {
	What  string
	Index int
	Len   int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.What, e.Index, e.Len)
}

func (e *InvalidIndexError) Is(target error) bool { return target == ErrInvalidIndex }

// WorldModeMismatchError reports a soft body added to a rigid-only world.
type WorldModeMismatchError struct {
	Component string
}

func (e *WorldModeMismatchError) Error() string {
	return fmt.Sprintf("%s needs a soft body world; switch the world mode first", e.Component)
}

func (e *WorldModeMismatchError) Is(target error) bool { return target == ErrWorldModeMismatch }
