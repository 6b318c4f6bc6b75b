// Package vec3 provides the float64 3-D vector and matrix math shared by
// geometry, BVH, and ray tracing code.
package vec3

import "math"

// Vec3 is a 3-D vector or point in world space.
type Vec3 struct {
	X, Y, Z float64
}

func Add(a, b Vec3) Vec3           { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func Sub(a, b Vec3) Vec3           { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func Scale(v Vec3, s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func Mul(a, b Vec3) Vec3           { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func Neg(v Vec3) Vec3              { return Vec3{-v.X, -v.Y, -v.Z} }

func Dot(a, b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func Cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func MagSq(v Vec3) float64 { return Dot(v, v) }
func Mag(v Vec3) float64   { return math.Sqrt(MagSq(v)) }

// Normalize returns v scaled to unit length, or the zero vector if v is zero.
func Normalize(v Vec3) Vec3 {
	mag := Mag(v)
	if mag == 0 {
		return Vec3{}
	}
	inv := 1.0 / mag
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// Lerp linearly interpolates between a and b at parameter t in [0,1].
func Lerp(a, b Vec3, t float64) Vec3 {
	return Add(a, Scale(Sub(b, a), t))
}

// Min returns the component-wise minimum of a and b.
func Min(a, b Vec3) Vec3 {
	return Vec3{math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z)}
}

// Max returns the component-wise maximum of a and b.
func Max(a, b Vec3) Vec3 {
	return Vec3{math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z)}
}

// Component returns the i'th axis component (0=X, 1=Y, 2=Z).
func (v Vec3) Component(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Inverse returns the component-wise reciprocal, used for ray-box slab tests.
// A zero component yields an infinity carrying the zero's sign, as the slab
// test in geom.BoundingBox.Intersect expects.
func Inverse(v Vec3) Vec3 {
	return Vec3{1.0 / v.X, 1.0 / v.Y, 1.0 / v.Z}
}
