package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bimtiles/internal/config"
	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/codec"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/scene"
	"github.com/Faultbox/bimtiles/pkg/tiles"
)

const input = `[
	{"id": "slab", "primitive": "solid",
	 "positions": [1000000,2000000,0, 1000010,2000000,0, 1000010,2000010,0, 1000000,2000010,0],
	 "colors": [1,0,0, 0,1,0, 0,0,1, 1,1,1],
	 "indices": [0,1,2, 0,2,3]},
	{"id": "axis", "primitive": "lines", "positions": [0,0,0, 5,0,0], "indices": [0,1]},
	{"id": "broken", "primitive": "triangles", "positions": [0,0,0], "indices": [0,1,2]}
]`

func setup(t *testing.T) (*tool, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o644))

	out := new(bytes.Buffer)
	return &tool{cfg: config.Default(), out: out}, out, in
}

func TestCompressArchive(t *testing.T) {
	tl, out, in := setup(t)
	archivePath := filepath.Join(filepath.Dir(in), "out", "model.xgc")

	require.NoError(t, tl.compress(context.Background(), []string{in, archivePath}))
	assert.Contains(t, out.String(), "Compressed 2 of 3 geometries")

	r, err := codec.Open(archivePath)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"axis", "slab"}, r.List())

	slab, err := r.Read("slab")
	require.NoError(t, err)
	assert.Len(t, slab.ColorsCompressed, 12)
	assert.Equal(t, 3, slab.ColorComponents)
}

func TestCompressJSONWithoutColors(t *testing.T) {
	tl, _, in := setup(t)
	tl.cfg.Output.Format = config.FormatJSON
	tl.cfg.Compression.QuantizeColors = false
	outPath := filepath.Join(filepath.Dir(in), "records.json")

	require.NoError(t, tl.compress(context.Background(), []string{in, outPath}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"positionsCompressed"`)
	assert.Contains(t, text, `"id": "slab"`)
	assert.NotContains(t, text, `"colorsCompressed"`)
}

func TestCompressCanceled(t *testing.T) {
	tl, _, in := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tl.compress(ctx, []string{in, filepath.Join(filepath.Dir(in), "model.xgc")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInfoAndExtract(t *testing.T) {
	tl, out, in := setup(t)
	archivePath := filepath.Join(filepath.Dir(in), "model.xgc")
	require.NoError(t, tl.compress(context.Background(), []string{in, archivePath}))

	out.Reset()
	require.NoError(t, tl.info([]string{archivePath}))
	assert.Contains(t, out.String(), "Records:  2")
	assert.Contains(t, out.String(), "slab")

	out.Reset()
	require.NoError(t, tl.extract([]string{archivePath, "axis"}))
	rec, err := codec.UnmarshalJSON(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, rec.Indices)

	jsonPath := filepath.Join(filepath.Dir(in), "slab.json")
	out.Reset()
	require.NoError(t, tl.extract([]string{archivePath, "slab", jsonPath}))
	assert.FileExists(t, jsonPath)

	assert.ErrorIs(t, tl.extract([]string{archivePath, "missing"}), codec.ErrEntryNotFound)
	assert.ErrorIs(t, tl.extract([]string{archivePath}), errUsage)
}

func TestTiles(t *testing.T) {
	tl, out, in := setup(t)

	require.NoError(t, tl.tiles([]string{in}))
	text := out.String()

	// Centroid (1000005, 2000005, 0) snaps to (1000000, 2000000, 0).
	assert.Contains(t, text, "1e+06_2e+06_0")
	assert.Contains(t, text, "Tiles: 2")

	lines := strings.Split(text, "\n")
	var slabLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "slab") {
			slabLine = l
		}
	}
	assert.Contains(t, slabLine, "10.000")
}

func TestPlaceMeshKeepsWorldBounds(t *testing.T) {
	tl, _, _ := setup(t)
	model := scene.NewModel("m", tiles.NewRegistry(), scene.Options{RTC: true})
	defer model.Destroy()

	p := geometry.Params{
		ID:        "slab",
		Primitive: geometry.PrimitiveSolid,
		Positions: []float64{1000000, 2000000, 0, 1000010, 2000000, 0, 1000010, 2000010, 0, 1000000, 2000010, 0},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
	mesh, local, err := tl.placeMesh(model, p, nil)
	require.NoError(t, err)

	assert.Equal(t, math.Vec3{1000000, 2000000, 0}, mesh.Origin)
	assert.InDelta(t, 10, maxAbs(local), 1e-6)

	want := aabb.FromPoints(p.Positions)
	got := mesh.AABB()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3, "component %d", i)
	}
}

func TestWriteMetrics(t *testing.T) {
	tl, _, in := setup(t)
	require.NoError(t, tl.tiles([]string{in}))

	var buf bytes.Buffer
	require.NoError(t, writeMetrics(&buf))
	assert.Contains(t, buf.String(), "bimtiles_tiles_created_total")
	assert.NotContains(t, buf.String(), "go_goroutines")
}
