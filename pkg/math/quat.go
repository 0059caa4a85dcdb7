package math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	return fromMgl(mgl32.QuatRotate(angle, mgl32.Vec3{axis.X, axis.Y, axis.Z}))
}

// QuatFromEuler builds a rotation from Euler angles in degrees, applied
// Z (yaw) then Y then X, matching the physics engine's setEulerZYX.
func QuatFromEuler(degrees Vec3) Quat {
	return fromMgl(mgl32.AnglesToQuat(
		mgl32.DegToRad(degrees.Z),
		mgl32.DegToRad(degrees.Y),
		mgl32.DegToRad(degrees.X),
		mgl32.ZYX,
	))
}

func (q Quat) mgl() mgl32.Quat {
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

func fromMgl(q mgl32.Quat) Quat {
	return Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

// IsZero reports whether q is the zero value (not a valid rotation).
func (q Quat) IsZero() bool {
	return q == Quat{}
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if length < 0.0001 {
		return QuatIdentity()
	}
	inv := 1 / length
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Conjugate returns the inverse rotation of a unit quaternion.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Mul multiplies two quaternions (q applied after other).
func (q Quat) Mul(other Quat) Quat {
	return fromMgl(q.mgl().Mul(other.mgl()))
}

// Rotate rotates v by q.
func (q Quat) Rotate(v Vec3) Vec3 {
	r := q.Normalize().mgl().Rotate(mgl32.Vec3{v.X, v.Y, v.Z})
	return Vec3{r[0], r[1], r[2]}
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func (q Quat) Slerp(other Quat, t float32) Quat {
	dot := q.Dot(other)

	// Take the shorter arc.
	if dot < 0 {
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
		dot = -dot
	}

	// Nearly parallel: nlerp avoids dividing by sin(~0).
	if dot > 0.9995 {
		return Quat{
			X: q.X + t*(other.X-q.X),
			Y: q.Y + t*(other.Y-q.Y),
			Z: q.Z + t*(other.Z-q.Z),
			W: q.W + t*(other.W-q.W),
		}.Normalize()
	}

	theta0 := math.Acos(float64(dot))
	theta := theta0 * float64(t)
	s1 := float32(math.Sin(theta) / math.Sin(theta0))
	s0 := float32(math.Cos(theta)) - dot*s1

	return Quat{
		X: q.X*s0 + other.X*s1,
		Y: q.Y*s0 + other.Y*s1,
		Z: q.Z*s0 + other.Z*s1,
		W: q.W*s0 + other.W*s1,
	}
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	return Mat4(q.Normalize().mgl().Mat4())
}

// ApproxEqual reports whether q and other describe the same rotation within eps.
func (q Quat) ApproxEqual(other Quat, eps float32) bool {
	return 1-abs32(q.Normalize().Dot(other.Normalize())) <= eps
}
