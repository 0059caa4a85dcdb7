package math

import "math"

// Ray is a half line with a normalized direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// NewRay builds a ray from two points.
func NewRay(from, to Vec3) Ray {
	return Ray{Origin: from, Direction: to.Sub(from).Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// IntersectPlaneY intersects the ray with the horizontal plane y = planeY.
func (r Ray) IntersectPlaneY(planeY float32) (t float32, ok bool) {
	if math.Abs(float64(r.Direction.Y)) < 0.001 {
		return 0, false
	}
	t = (planeY - r.Origin.Y) / r.Direction.Y
	if t < 0 {
		return 0, false
	}
	return t, true
}

// IntersectAABB tests ray intersection with an axis-aligned box using the
// slab method. If the ray starts inside the box, the exit distance is returned.
func (r Ray) IntersectAABB(box AABB) (t float32, hit bool) {
	tmin := float32(-math.MaxFloat32)
	tmax := float32(math.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.Component(axis)
		d := r.Direction.Component(axis)
		lo := box.Min.Component(axis)
		hi := box.Max.Component(axis)

		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}

	if tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}
