package math

import "github.com/go-gl/mathgl/mgl32"

// Mat4 is a 4x4 matrix in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4(mgl32.Ident4())
}

// Translate returns a translation matrix.
func Translate(v Vec3) Mat4 {
	return Mat4(mgl32.Translate3D(v.X, v.Y, v.Z))
}

// Scale returns a scale matrix.
func Scale(v Vec3) Mat4 {
	return Mat4(mgl32.Scale3D(v.X, v.Y, v.Z))
}

// Compose builds translation * rotation * scale.
func Compose(pos Vec3, rot Quat, scale Vec3) Mat4 {
	return Translate(pos).Mul(rot.ToMat4()).Mul(Scale(scale))
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	return Mat4(mgl32.Mat4(m).Mul4(mgl32.Mat4(other)))
}

// TransformVec3 transforms a point (w=1) by this matrix.
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	r := mgl32.TransformCoordinate(mgl32.Vec3{v.X, v.Y, v.Z}, mgl32.Mat4(m))
	return Vec3{r[0], r[1], r[2]}
}

// TransformDirection transforms a direction (w=0), ignoring translation.
func (m Mat4) TransformDirection(v Vec3) Vec3 {
	r := mgl32.TransformNormal(mgl32.Vec3{v.X, v.Y, v.Z}, mgl32.Mat4(m))
	return Vec3{r[0], r[1], r[2]}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// Inverse returns the inverse of the matrix.
// Returns identity if the matrix is singular.
func (m Mat4) Inverse() Mat4 {
	g := mgl32.Mat4(m)
	if g.Det() == 0 {
		return Identity()
	}
	return Mat4(g.Inv())
}
