package edges

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/quantize"
)

var cubePositions = []float64{
	-1, -1, -1, // 0
	1, -1, -1, // 1
	1, 1, -1, // 2
	-1, 1, -1, // 3
	-1, -1, 1, // 4
	1, -1, 1, // 5
	1, 1, 1, // 6
	-1, 1, 1, // 7
}

var cubeIndices = []uint32{
	0, 2, 1, 0, 3, 2, // z-
	4, 5, 6, 4, 6, 7, // z+
	0, 1, 5, 0, 5, 4, // y-
	3, 7, 6, 3, 6, 2, // y+
	0, 4, 7, 0, 7, 3, // x-
	1, 5, 6, 1, 6, 2, // x+
}

var cubeEdges = map[[2]uint32]bool{
	{0, 1}: true, {1, 2}: true, {2, 3}: true, {0, 3}: true,
	{4, 5}: true, {5, 6}: true, {6, 7}: true, {4, 7}: true,
	{0, 4}: true, {1, 5}: true, {2, 6}: true, {3, 7}: true,
}

func build(t *testing.T, positions []float64, indices []uint32, threshold float64) []uint32 {
	t.Helper()
	box := aabb.FromPoints(positions)
	q, _ := quantize.Positions(positions, box)
	return Build(q, indices, box, threshold)
}

func pairs(t *testing.T, flat []uint32) map[[2]uint32]bool {
	t.Helper()
	require.Zero(t, len(flat)%2)
	out := make(map[[2]uint32]bool)
	for i := 0; i < len(flat); i += 2 {
		p := [2]uint32{flat[i], flat[i+1]}
		require.Less(t, p[0], p[1], "pair not canonical")
		require.False(t, out[p], "duplicate edge %v", p)
		out[p] = true
	}
	return out
}

func TestCubeKeepsTwelveEdges(t *testing.T) {
	got := pairs(t, build(t, cubePositions, cubeIndices, DefaultThreshold))
	assert.Equal(t, cubeEdges, got)
}

func TestCubeIgnoresWindingWithinFace(t *testing.T) {
	flipped := append([]uint32(nil), cubeIndices...)
	// Reverse the second triangle of every face.
	for f := 0; f < 6; f++ {
		i := f*6 + 3
		flipped[i+1], flipped[i+2] = flipped[i+2], flipped[i+1]
	}
	got := pairs(t, build(t, cubePositions, flipped, DefaultThreshold))
	assert.Equal(t, cubeEdges, got)
}

func TestSharpWedgeKeepsCrease(t *testing.T) {
	// Folded back to 4 degrees between the two triangles.
	positions := foldedQuad(176)
	for _, indices := range [][]uint32{
		{0, 1, 2, 1, 0, 3},
		{0, 1, 2, 0, 1, 3},
	} {
		got := pairs(t, build(t, positions, indices, DefaultThreshold))
		assert.Len(t, got, 5, "indices %v", indices)
		assert.True(t, got[[2]uint32{0, 1}], "crease dropped for indices %v", indices)
	}
}

func TestSplitVertexCube(t *testing.T) {
	// Each face gets its own four vertices, as exporters do for per-face normals.
	var positions []float64
	var indices []uint32
	for f := 0; f < 6; f++ {
		tri := cubeIndices[f*6 : f*6+6]
		corners := []uint32{tri[0], tri[1], tri[2], tri[4]}
		if tri[4] == tri[2] || tri[4] == tri[1] {
			corners[3] = tri[5]
		}
		remap := make(map[uint32]uint32)
		for _, c := range corners {
			remap[c] = uint32(len(positions) / 3)
			positions = append(positions, cubePositions[c*3:c*3+3]...)
		}
		for _, idx := range tri {
			indices = append(indices, remap[idx])
		}
	}
	require.Len(t, positions, 24*3)

	got := build(t, positions, indices, DefaultThreshold)
	edges := pairs(t, got)
	assert.Len(t, edges, 12)

	for e := range edges {
		a := positions[e[0]*3 : e[0]*3+3]
		b := positions[e[1]*3 : e[1]*3+3]
		differ := 0
		for i := 0; i < 3; i++ {
			if a[i] != b[i] {
				differ++
			}
		}
		assert.Equal(t, 1, differ, "edge %v is a face diagonal", e)
	}
}

func foldedQuad(angleDeg float64) []float64 {
	a := angleDeg * gomath.Pi / 180
	return []float64{
		0, 0, 0,
		1, 0, 0,
		0.5, 1, 0,
		0.5, -gomath.Cos(a), gomath.Sin(a),
	}
}

func TestThreshold(t *testing.T) {
	indices := []uint32{0, 1, 2, 1, 0, 3}

	soft := pairs(t, build(t, foldedQuad(5), indices, 10))
	assert.Len(t, soft, 4)
	assert.False(t, soft[[2]uint32{0, 1}])

	sharp := pairs(t, build(t, foldedQuad(5), indices, 1))
	assert.Len(t, sharp, 5)
	assert.True(t, sharp[[2]uint32{0, 1}])

	flat := pairs(t, build(t, foldedQuad(0), indices, DefaultThreshold))
	assert.Len(t, flat, 4)
}

func TestDegenerateTrianglesRetained(t *testing.T) {
	positions := []float64{
		0, 0, 0,
		1, 0, 0,
		2, 0, 0,
		0, 1, 0,
	}

	// Collinear triangle: no normal, every edge kept.
	collinear := pairs(t, build(t, positions, []uint32{0, 1, 2}, DefaultThreshold))
	assert.Len(t, collinear, 3)

	// Repeated index: only the one real edge remains.
	repeated := pairs(t, build(t, positions, []uint32{0, 1, 1}, DefaultThreshold))
	assert.Equal(t, map[[2]uint32]bool{{0, 1}: true}, repeated)

	// A degenerate triangle sharing an edge with a real one forces the edge to be kept.
	shared := pairs(t, build(t, positions, []uint32{0, 1, 3, 0, 1, 2}, DefaultThreshold))
	assert.True(t, shared[[2]uint32{0, 1}])
}

func TestBuildEmptyAndOutOfRange(t *testing.T) {
	assert.Nil(t, Build(nil, []uint32{0, 1, 2}, aabb.Collapsed(), DefaultThreshold))

	box := aabb.FromPoints(cubePositions)
	q, _ := quantize.Positions(cubePositions, box)
	assert.Nil(t, Build(q, nil, box, DefaultThreshold))
	assert.Empty(t, Build(q, []uint32{0, 1, 99}, box, DefaultThreshold))
}
