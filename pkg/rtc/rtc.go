// Package rtc splits double-precision world coordinates into a coarse center
// and a small single-precision offset (relative-to-center coordinates), so
// geometry far from the origin keeps its precision on the GPU.
package rtc

import (
	gomath "math"

	"github.com/Faultbox/bimtiles/pkg/math"
)

// DefaultCellSize is the edge length of a tile cell in world units.
const DefaultCellSize = 200.0

// WorldToRTC splits a world position into the nearest single-precision
// representable center and the residual offset. center + offset reproduces
// world to well within float32 precision at that magnitude.
func WorldToRTC(world math.Vec3) (center math.Vec3, offset math.Vec3f) {
	for i := 0; i < 3; i++ {
		center[i] = float64(float32(world[i]))
		offset[i] = float32(world[i] - center[i])
	}
	return center, offset
}

// RTCToWorld adds offset back onto center. The result is only as exact as the
// float32 offset allows.
func RTCToWorld(center math.Vec3, offset math.Vec3f) math.Vec3 {
	return center.Add(offset.Vec3())
}

// WorldToCell returns the nearest multiple of cellSize on each axis.
// Halves round away from zero (math.Round) and negative zero is normalized to
// zero so equal cells produce equal keys. A non-positive cellSize means
// DefaultCellSize.
func WorldToCell(world math.Vec3, cellSize float64) math.Vec3 {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	var cell math.Vec3
	for i := 0; i < 3; i++ {
		cell[i] = gomath.Round(world[i]/cellSize)*cellSize + 0
	}
	return cell
}

// WorldPositionsToRTC snaps the centroid of a flat [x,y,z, ...] array to the
// cell grid and writes every position relative to it into dst, which is
// reused when large enough. shifted is false when the snapped center is the
// origin, in which case positions are written unchanged.
func WorldPositionsToRTC(dst []float32, world []float64, cellSize float64) (rtcPositions []float32, center math.Vec3, shifted bool) {
	n := len(world) - len(world)%3
	if cap(dst) >= n {
		dst = dst[:n]
	} else {
		dst = make([]float32, n)
	}
	if n == 0 {
		return dst, math.Vec3{}, false
	}

	var sum math.Vec3
	for i := 0; i < n; i += 3 {
		sum = sum.Add(math.Vec3{world[i], world[i+1], world[i+2]})
	}
	center = WorldToCell(sum.Scale(3/float64(n)), cellSize)
	shifted = !center.IsZero()

	for i := 0; i < n; i++ {
		dst[i] = float32(world[i] - center[i%3])
	}
	return dst, center, shifted
}

// MatrixToRTC moves the translation of a world matrix onto the cell grid.
// origin is the snapped cell origin and local is m with its translation made
// relative to origin, so that origin + local reproduces m.
func MatrixToRTC(m math.Mat4, cellSize float64) (origin math.Vec3, local math.Mat4, shifted bool) {
	t := m.Translation()
	origin = WorldToCell(t, cellSize)
	if origin.IsZero() {
		return origin, m, false
	}
	return origin, m.WithTranslation(t.Sub(origin)), true
}

// PlaneRTCPos re-expresses the plane dot(dir, p) + dist = 0 in the frame
// centered on center, returning the plane's closest point to center relative
// to it. dir must be non-zero; a zero dir yields NaN, unchecked, so the
// function stays branch-free for per-frame use.
func PlaneRTCPos(dist float64, dir math.Vec3, center math.Vec3) math.Vec3 {
	centerToPlane := dir.Dot(center) + dist
	n := dir.Scale(1 / dir.Length())
	return n.Scale(-centerToPlane)
}
