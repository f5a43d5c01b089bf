package rtc

import (
	gomath "math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bimtiles/pkg/math"
)

func TestWorldToCell(t *testing.T) {
	cell := WorldToCell(math.Vec3{137, 4, -63}, 200)
	assert.Equal(t, math.Vec3{200, 0, 0}, cell)
	for i, v := range cell {
		assert.Falsef(t, gomath.Signbit(v), "axis %d is negative zero", i)
	}
}

func TestWorldToCellRounding(t *testing.T) {
	tests := []struct {
		in   math.Vec3
		want math.Vec3
	}{
		{math.Vec3{100, -100, 99.999}, math.Vec3{200, -200, 0}},
		{math.Vec3{-299, 301, 0}, math.Vec3{-200, 400, 0}},
		{math.Vec3{6378137, 0, -4200000}, math.Vec3{6378200, 0, -4200000}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorldToCell(tt.in, 200), "input %v", tt.in)
	}
}

func TestWorldToCellDefaultSize(t *testing.T) {
	assert.Equal(t, WorldToCell(math.Vec3{350, 0, 0}, DefaultCellSize), WorldToCell(math.Vec3{350, 0, 0}, 0))
}

func TestWorldToRTCReversible(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		magnitude := gomath.Pow(10, float64(rng.Intn(9)))
		world := math.Vec3{
			(rng.Float64()*2 - 1) * magnitude,
			(rng.Float64()*2 - 1) * magnitude,
			(rng.Float64()*2 - 1) * magnitude,
		}

		center, offset := WorldToRTC(world)
		back := RTCToWorld(center, offset)

		for axis := 0; axis < 3; axis++ {
			// One float32 ulp at this magnitude bounds the error.
			ulp := gomath.Abs(float64(gomath.Nextafter32(float32(world[axis]), float32(gomath.Inf(1))) - float32(world[axis])))
			require.LessOrEqualf(t, gomath.Abs(back[axis]-world[axis]), ulp,
				"world %v axis %d: got %v", world, axis, back[axis])
			require.Equal(t, center[axis], float64(float32(center[axis])), "center must be float32-representable")
		}
	}
}

func TestWorldToRTCPreservesPrecision(t *testing.T) {
	// A coordinate float32 alone cannot hold to the millimeter.
	world := math.Vec3{6378137.123, 0, 0}
	require.NotEqual(t, world[0], float64(float32(world[0])))

	center, offset := WorldToRTC(world)
	assert.InDelta(t, world[0], RTCToWorld(center, offset)[0], 1e-6)
}

func TestWorldPositionsToRTC(t *testing.T) {
	world := []float64{
		1000, 2000, 10,
		1010, 2010, 12,
		1020, 2020, 14,
	}
	rtcPositions, center, shifted := WorldPositionsToRTC(nil, world, 200)
	require.True(t, shifted)
	assert.Equal(t, math.Vec3{1000, 2000, 0}, center)
	assert.Equal(t, []float32{0, 0, 10, 10, 10, 12, 20, 20, 14}, rtcPositions)

	for i := range world {
		assert.Equal(t, world[i], center[i%3]+float64(rtcPositions[i]))
	}
}

func TestWorldPositionsToRTCNearOrigin(t *testing.T) {
	world := []float64{1, 2, 3, -4, -5, -6}
	dst := make([]float32, 0, 16)
	rtcPositions, center, shifted := WorldPositionsToRTC(dst, world, 200)

	assert.False(t, shifted)
	assert.True(t, center.IsZero())
	assert.Equal(t, []float32{1, 2, 3, -4, -5, -6}, rtcPositions)
	assert.Equal(t, &dst[:1][0], &rtcPositions[0], "dst should be reused")
}

func TestWorldPositionsToRTCEmpty(t *testing.T) {
	rtcPositions, center, shifted := WorldPositionsToRTC(nil, nil, 200)
	assert.Empty(t, rtcPositions)
	assert.True(t, center.IsZero())
	assert.False(t, shifted)
}

func TestMatrixToRTC(t *testing.T) {
	world := math.Translate(523401.75, 10, -88000.5).Mul(math.Scale(2, 2, 2))

	origin, local, shifted := MatrixToRTC(world, 200)
	require.True(t, shifted)
	assert.Equal(t, math.Vec3{523400, 0, -88000}, origin)
	assert.Equal(t, math.Vec3{1.75, 10, -0.5}, local.Translation())

	p := math.Vec3{1, 1, 1}
	assert.Equal(t, world.TransformPoint(p), local.TransformPoint(p).Add(origin))

	origin, local, shifted = MatrixToRTC(math.Translate(5, 5, 5), 200)
	assert.False(t, shifted)
	assert.True(t, origin.IsZero())
	assert.Equal(t, math.Translate(5, 5, 5), local)
}

func TestPlaneRTCPos(t *testing.T) {
	// Plane z = 10, seen from a tile centered at z = 4.
	pos := PlaneRTCPos(-10, math.Vec3{0, 0, 1}, math.Vec3{0, 0, 4})
	assert.InDeltaSlice(t, []float64{0, 0, 6}, pos[:], 1e-12)

	// From the origin the plane position is the plane itself.
	pos = PlaneRTCPos(-10, math.Vec3{0, 0, 1}, math.Vec3{})
	assert.InDeltaSlice(t, []float64{0, 0, 10}, pos[:], 1e-12)
}

func TestPlaneRTCPosZeroDirection(t *testing.T) {
	pos := PlaneRTCPos(5, math.Vec3{}, math.Vec3{1, 2, 3})
	for _, v := range pos {
		assert.True(t, gomath.IsNaN(v))
	}
}
