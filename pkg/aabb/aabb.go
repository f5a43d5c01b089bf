// Package aabb provides axis-aligned bounding box utilities over flat
// double-precision point arrays.
package aabb

import (
	gomath "math"

	"github.com/Faultbox/bimtiles/pkg/math"
)

// MaxSafeInteger is the "infinity" a collapsed box uses. Real infinities would
// turn into NaN as soon as quantization subtracts min from max.
const MaxSafeInteger = 1<<53 - 1

// AABB3 is [minX, minY, minZ, maxX, maxY, maxZ].
type AABB3 [6]float64

// Collapsed returns an empty box: min = +MaxSafeInteger, max = -MaxSafeInteger.
func Collapsed() AABB3 {
	return AABB3{
		MaxSafeInteger, MaxSafeInteger, MaxSafeInteger,
		-MaxSafeInteger, -MaxSafeInteger, -MaxSafeInteger,
	}
}

// FromPoints returns the tight box of a flat [x,y,z, x,y,z, ...] array.
// An empty array yields a collapsed box.
func FromPoints(points []float64) AABB3 {
	b := Collapsed()
	b.ExpandByPoints(points)
	return b
}

// New returns the box spanning lo and hi.
func New(lo, hi math.Vec3) AABB3 {
	return AABB3{lo[0], lo[1], lo[2], hi[0], hi[1], hi[2]}
}

// Collapse resets b to the empty state.
func (b *AABB3) Collapse() *AABB3 {
	*b = Collapsed()
	return b
}

// ExpandByPoint widens b to include p.
func (b *AABB3) ExpandByPoint(p math.Vec3) *AABB3 {
	for i := 0; i < 3; i++ {
		if p[i] < b[i] {
			b[i] = p[i]
		}
		if p[i] > b[i+3] {
			b[i+3] = p[i]
		}
	}
	return b
}

// ExpandByPoints widens b to include every complete triplet in points.
// A trailing partial triplet is ignored.
func (b *AABB3) ExpandByPoints(points []float64) *AABB3 {
	for i := 0; i+2 < len(points); i += 3 {
		b.ExpandByPoint(math.Vec3{points[i], points[i+1], points[i+2]})
	}
	return b
}

// ExpandByAABB widens b to include other. Expanding by a collapsed box is a no-op.
func (b *AABB3) ExpandByAABB(other AABB3) *AABB3 {
	for i := 0; i < 3; i++ {
		if other[i] < b[i] {
			b[i] = other[i]
		}
		if other[i+3] > b[i+3] {
			b[i+3] = other[i+3]
		}
	}
	return b
}

// IsEmpty reports whether min > max on any axis.
func (b AABB3) IsEmpty() bool {
	return b[0] > b[3] || b[1] > b[4] || b[2] > b[5]
}

// Min returns the minimum corner.
func (b AABB3) Min() math.Vec3 { return math.Vec3{b[0], b[1], b[2]} }

// Max returns the maximum corner.
func (b AABB3) Max() math.Vec3 { return math.Vec3{b[3], b[4], b[5]} }

// Size returns the extent along each axis.
func (b AABB3) Size() math.Vec3 {
	return math.Vec3{b[3] - b[0], b[4] - b[1], b[5] - b[2]}
}

// Diag returns the length of the box diagonal.
func (b AABB3) Diag() float64 {
	return b.Size().Length()
}

// Center returns the box center. On a collapsed box the result is derived
// from the sentinel values; callers must guard against empty input.
func (b AABB3) Center() math.Vec3 {
	return math.Vec3{
		(b[0] + b[3]) / 2,
		(b[1] + b[4]) / 2,
		(b[2] + b[5]) / 2,
	}
}

// Area returns width*height*depth. Zero-thickness boxes give zero and
// inverted boxes may give a negative value; neither is clamped.
func (b AABB3) Area() float64 {
	s := b.Size()
	return s[0] * s[1] * s[2]
}

// Contains reports whether other lies inside b, bounds inclusive.
func (b AABB3) Contains(other AABB3) bool {
	return b[0] <= other[0] && other[3] <= b[3] &&
		b[1] <= other[1] && other[4] <= b[4] &&
		b[2] <= other[2] && other[5] <= b[5]
}

// ContainsPoint reports whether p lies inside b, bounds inclusive.
func (b AABB3) ContainsPoint(p math.Vec3) bool {
	return b[0] <= p[0] && p[0] <= b[3] &&
		b[1] <= p[1] && p[1] <= b[4] &&
		b[2] <= p[2] && p[2] <= b[5]
}

// Transform returns the box spanning the eight corners of b transformed by mat.
// A collapsed box stays collapsed.
func (b AABB3) Transform(mat math.Mat4) AABB3 {
	if b.IsEmpty() {
		return Collapsed()
	}
	out := Collapsed()
	for i := 0; i < 8; i++ {
		corner := math.Vec3{b[0], b[1], b[2]}
		if i&1 != 0 {
			corner[0] = b[3]
		}
		if i&2 != 0 {
			corner[1] = b[4]
		}
		if i&4 != 0 {
			corner[2] = b[5]
		}
		out.ExpandByPoint(mat.TransformPoint(corner))
	}
	return out
}

// Translate returns b shifted by offset.
func (b AABB3) Translate(offset math.Vec3) AABB3 {
	if b.IsEmpty() {
		return b
	}
	return AABB3{
		b[0] + offset[0], b[1] + offset[1], b[2] + offset[2],
		b[3] + offset[0], b[4] + offset[1], b[5] + offset[2],
	}
}

// HasNaN reports whether any bound is NaN.
func (b AABB3) HasNaN() bool {
	for _, v := range b {
		if gomath.IsNaN(v) {
			return true
		}
	}
	return false
}
