// Package math provides double-precision vector and matrix types for model
// coordinates, plus the single-precision vector the GPU side consumes.
package math

import (
	"math"

	"github.com/chewxy/math32"
)

// Vec3 is a double-precision 3D vector.
type Vec3 [3]float64

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v[0] + other[0], v[1] + other[1], v[2] + other[2]}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float64 {
	return v[0]*other[0] + v[1]*other[1] + v[2]*other[2]
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v[1]*other[2] - v[2]*other[1],
		v[2]*other[0] - v[0]*other[2],
		v[0]*other[1] - v[1]*other[0],
	}
}

// Length returns the magnitude.
func (v Vec3) Length() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalize returns a unit vector. A zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// Distance returns the distance to another point.
func (v Vec3) Distance(other Vec3) float64 {
	return v.Sub(other).Length()
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// Vec3f returns v narrowed to single precision.
func (v Vec3) Vec3f() Vec3f {
	return Vec3f{float32(v[0]), float32(v[1]), float32(v[2])}
}

// Vec3f is a single-precision 3D vector, the layout vertex shaders receive.
type Vec3f [3]float32

// Add returns v + other.
func (v Vec3f) Add(other Vec3f) Vec3f {
	return Vec3f{v[0] + other[0], v[1] + other[1], v[2] + other[2]}
}

// Sub returns v - other.
func (v Vec3f) Sub(other Vec3f) Vec3f {
	return Vec3f{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Dot returns the dot product.
func (v Vec3f) Dot(other Vec3f) float32 {
	return v[0]*other[0] + v[1]*other[1] + v[2]*other[2]
}

// Cross returns the cross product.
func (v Vec3f) Cross(other Vec3f) Vec3f {
	return Vec3f{
		v[1]*other[2] - v[2]*other[1],
		v[2]*other[0] - v[0]*other[2],
		v[0]*other[1] - v[1]*other[0],
	}
}

// Length returns the magnitude.
func (v Vec3f) Length() float32 {
	return math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Normalize returns a unit vector and false when v has no usable direction.
func (v Vec3f) Normalize() (Vec3f, bool) {
	l := v.Length()
	if l == 0 || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return Vec3f{}, false
	}
	return Vec3f{v[0] / l, v[1] / l, v[2] / l}, true
}

// Vec3 widens v to double precision.
func (v Vec3f) Vec3() Vec3 {
	return Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}
