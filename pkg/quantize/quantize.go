// Package quantize maps floating-point vertex attributes onto fixed-width
// integers and builds the matrices that map them back.
package quantize

import (
	gomath "math"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/math"
)

// Range is the largest quantized position or UV value.
const Range = 65535

// ColorRange is the largest quantized color channel value.
const ColorRange = 255

// Positions quantizes a flat [x,y,z, ...] array into [0, Range] per axis,
// relative to box, which must be the tight bounds of positions. It returns the
// quantized values and the matrix that de-quantizes them.
//
// An axis with zero extent maps every value to 0 and gets a scale of 0.
// NaN inputs quantize to 0; values outside box are clamped.
func Positions(positions []float64, box aabb.AABB3) ([]uint16, math.Mat4) {
	var mult [3]float64
	for axis := 0; axis < 3; axis++ {
		if extent := box[axis+3] - box[axis]; extent > 0 {
			mult[axis] = Range / extent
		}
	}

	out := make([]uint16, len(positions))
	for i, v := range positions {
		axis := i % 3
		out[i] = toUint16((v - box[axis]) * mult[axis])
	}
	return out, DecompressMatrix(box)
}

// DecompressMatrix returns the affine matrix mapping [0, Range]^3 back onto box:
// scale by (max-min)/Range per axis, then translate by min.
func DecompressMatrix(box aabb.AABB3) math.Mat4 {
	var scale math.Vec3
	for axis := 0; axis < 3; axis++ {
		if extent := box[axis+3] - box[axis]; extent > 0 {
			scale[axis] = extent / Range
		}
	}
	return math.ScaleTranslate(scale, box.Min())
}

// Step returns the size of one quantization step per axis.
func Step(box aabb.AABB3) math.Vec3 {
	return DecompressMatrix(box).TransformDirection(math.Vec3{1, 1, 1})
}

// DecompressPosition de-quantizes a single position.
func DecompressPosition(q [3]uint16, m math.Mat4) math.Vec3 {
	return m.TransformPoint(math.Vec3{float64(q[0]), float64(q[1]), float64(q[2])})
}

// DecompressPositions de-quantizes a flat quantized array.
func DecompressPositions(quantized []uint16, m math.Mat4) []float64 {
	out := make([]float64, len(quantized)-len(quantized)%3)
	for i := 0; i+2 < len(quantized); i += 3 {
		p := DecompressPosition([3]uint16{quantized[i], quantized[i+1], quantized[i+2]}, m)
		out[i], out[i+1], out[i+2] = p[0], p[1], p[2]
	}
	return out
}

// UVs quantizes a flat [u,v, ...] array over its own bounds and returns the
// matrix (acting on x=u, y=v) that de-quantizes it.
func UVs(uvs []float64) ([]uint16, math.Mat4) {
	lo := [2]float64{gomath.Inf(1), gomath.Inf(1)}
	hi := [2]float64{gomath.Inf(-1), gomath.Inf(-1)}
	for i, v := range uvs {
		c := i % 2
		if v < lo[c] {
			lo[c] = v
		}
		if v > hi[c] {
			hi[c] = v
		}
	}
	if len(uvs) < 2 {
		lo, hi = [2]float64{}, [2]float64{}
	}

	var mult, scale [2]float64
	for c := 0; c < 2; c++ {
		if extent := hi[c] - lo[c]; extent > 0 {
			mult[c] = Range / extent
			scale[c] = extent / Range
		}
	}

	out := make([]uint16, len(uvs))
	for i, v := range uvs {
		c := i % 2
		out[i] = toUint16((v - lo[c]) * mult[c])
	}
	return out, math.ScaleTranslate(math.Vec3{scale[0], scale[1], 1}, math.Vec3{lo[0], lo[1], 0})
}

// DecompressUV de-quantizes a single UV pair.
func DecompressUV(q [2]uint16, m math.Mat4) [2]float64 {
	p := m.TransformPoint(math.Vec3{float64(q[0]), float64(q[1]), 0})
	return [2]float64{p[0], p[1]}
}

// Colors quantizes channels in [0, 1] to [0, ColorRange]. The mapping is fixed,
// not fitted to the data. Out-of-range channels clamp and NaN becomes 0.
func Colors(colors []float64) []uint8 {
	out := make([]uint8, len(colors))
	for i, c := range colors {
		switch {
		case gomath.IsNaN(c) || c <= 0:
			out[i] = 0
		case c >= 1:
			out[i] = ColorRange
		default:
			out[i] = uint8(gomath.Round(c * ColorRange))
		}
	}
	return out
}

// DecompressColors maps quantized channels back to [0, 1].
func DecompressColors(quantized []uint8) []float64 {
	out := make([]float64, len(quantized))
	for i, c := range quantized {
		out[i] = float64(c) / ColorRange
	}
	return out
}

func toUint16(v float64) uint16 {
	switch {
	case gomath.IsNaN(v) || v <= 0:
		return 0
	case v >= Range:
		return Range
	default:
		return uint16(gomath.Round(v))
	}
}
