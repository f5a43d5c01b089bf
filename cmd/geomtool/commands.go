package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/segmentio/encoding/json"

	"github.com/Faultbox/bimtiles/internal/batch"
	"github.com/Faultbox/bimtiles/internal/config"
	"github.com/Faultbox/bimtiles/pkg/codec"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/rtc"
	"github.com/Faultbox/bimtiles/pkg/scene"
	"github.com/Faultbox/bimtiles/pkg/tiles"
)

var errUsage = errors.New("invalid arguments")

type tool struct {
	cfg *config.Config
	out io.Writer
}

func (t *tool) compressionOptions() geometry.Options {
	return geometry.Options{EdgeThreshold: t.cfg.Compression.EdgeThresholdDeg}
}

func (t *tool) readParams(path string) ([]geometry.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	params, err := codec.ReadParams(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range params {
		if params[i].ID == "" {
			params[i].ID = fmt.Sprintf("geometry-%d", i)
		}
		if !t.cfg.Compression.QuantizeColors {
			params[i].Colors = nil
		}
	}
	return params, nil
}

func (t *tool) compress(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: geomtool compress <in.json> <out>", errUsage)
	}
	inPath, outPath := args[0], args[1]

	params, err := t.readParams(inPath)
	if err != nil {
		return err
	}

	if t.cfg.Batch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Batch.Timeout)
		defer cancel()
	}

	report := batch.Run(ctx, params, batch.Options{
		Workers:     t.cfg.Batch.Workers,
		Compression: t.compressionOptions(),
	})
	records := report.Compressed()

	switch t.cfg.Output.Format {
	case config.FormatJSON:
		err = writeJSONRecords(outPath, records)
	default:
		err = writeArchive(outPath, records, t.cfg.Output.CompressionLevel)
	}
	if err != nil {
		return err
	}

	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "Skipped %s: %v\n", res.ID, res.Err)
		}
	}
	fmt.Fprintf(t.out, "Compressed %d of %d geometries into %s (%d failed, %d skipped) in %v\n",
		report.Succeeded, len(params), outPath, report.Failed, report.Skipped, report.Elapsed.Round(1e6))

	if report.Skipped > 0 {
		return fmt.Errorf("batch interrupted: %w", ctx.Err())
	}
	return nil
}

func writeArchive(path string, records []*geometry.Compressed, level int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	w, err := codec.Create(path, level)
	if err != nil {
		return err
	}
	for _, c := range records {
		if err := w.Add(c); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func writeJSONRecords(path string, records []*geometry.Compressed) error {
	out := make([]codec.Record, len(records))
	for i, c := range records {
		out[i] = codec.NewRecord(c)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (t *tool) info(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: usage: geomtool info <file.xgc>", errUsage)
	}

	archive, err := codec.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	ids := archive.List()
	var packed, raw uint64
	byPrimitive := make(map[geometry.Primitive]int)

	fmt.Fprintf(t.out, "%-24s %-10s %8s %8s %8s %10s\n", "ID", "PRIMITIVE", "VERTICES", "INDICES", "EDGES", "BYTES")
	for _, id := range ids {
		c, err := archive.Read(id)
		if err != nil {
			return err
		}
		e, _ := archive.Entry(id)
		packed += uint64(e.CompressedSize)
		raw += uint64(e.Size)
		byPrimitive[c.Primitive]++

		fmt.Fprintf(t.out, "%-24s %-10s %8d %8d %8d %10d\n",
			id, c.Primitive, c.NumVertices(), len(c.Indices), len(c.EdgeIndices)/2, e.CompressedSize)
	}

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Archive:  %s\n", args[0])
	fmt.Fprintf(t.out, "Records:  %d\n", len(ids))
	if raw > 0 {
		fmt.Fprintf(t.out, "Size:     %d bytes (%.1f%% of %d)\n", packed, 100*float64(packed)/float64(raw), raw)
	}
	for _, name := range geometry.SupportedPrimitives() {
		p, _ := geometry.ParsePrimitive(name)
		if n := byPrimitive[p]; n > 0 {
			fmt.Fprintf(t.out, "  %-10s %d\n", name, n)
		}
	}
	return nil
}

func (t *tool) extract(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: geomtool extract <file.xgc> <id> [out.json]", errUsage)
	}

	archive, err := codec.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	c, err := archive.Read(args[1])
	if err != nil {
		return err
	}
	data, err := codec.MarshalJSON(c)
	if err != nil {
		return err
	}

	if len(args) < 3 {
		_, err = fmt.Fprintf(t.out, "%s\n", data)
		return err
	}
	if err := os.WriteFile(args[2], data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", args[2], err)
	}
	fmt.Fprintf(t.out, "Extracted: %s (%d bytes)\n", args[2], len(data))
	return nil
}

// tiles places every geometry as a mesh at its snapped centroid and reports
// which tile each lands in.
func (t *tool) tiles(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: usage: geomtool tiles <in.json>", errUsage)
	}

	params, err := t.readParams(args[0])
	if err != nil {
		return err
	}

	registry := tiles.NewRegistry()
	model := scene.NewModel(filepath.Base(args[0]), registry, scene.Options{
		RTC:         t.cfg.RTC.Enabled,
		CellSize:    t.cfg.RTC.CellSize,
		Compression: t.compressionOptions(),
	})
	defer model.Destroy()

	fmt.Fprintf(t.out, "%-24s %-28s %12s\n", "ID", "TILE", "MAX OFFSET")
	var buf []float32
	for _, p := range params {
		var mesh *scene.Mesh
		mesh, buf, err = t.placeMesh(model, p, buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipped %s: %v\n", p.ID, err)
			continue
		}
		fmt.Fprintf(t.out, "%-24s %-28s %12.3f\n", p.ID, mesh.Tile().ID, maxAbs(buf))
	}

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "Tiles: %d (cell size %g)\n", registry.Len(), t.cfg.RTC.CellSize)
	for _, tile := range registry.Tiles() {
		if tile == model.Tile() {
			// The model's own tile holds one extra reference.
			fmt.Fprintf(t.out, "  %-28s %d meshes\n", tile.ID, tile.RefCount()-1)
			continue
		}
		fmt.Fprintf(t.out, "  %-28s %d meshes\n", tile.ID, tile.RefCount())
	}
	return nil
}

// placeMesh splits world positions into a snapped origin and RTC-relative
// local positions, builds the geometry from the local ones and places it with
// a mesh at the origin. The local positions are returned in buf.
func (t *tool) placeMesh(model *scene.Model, p geometry.Params, buf []float32) (*scene.Mesh, []float32, error) {
	var origin math.Vec3
	local := p
	if t.cfg.RTC.Enabled && len(p.Positions)%3 == 0 {
		buf, origin, _ = rtc.WorldPositionsToRTC(buf, p.Positions, t.cfg.RTC.CellSize)
		local.Positions = make([]float64, len(buf))
		for i, v := range buf {
			local.Positions[i] = float64(v)
		}
	} else {
		buf = buf[:0]
		for _, v := range p.Positions {
			buf = append(buf, float32(v))
		}
	}

	g, err := model.CreateGeometry(local)
	if err != nil {
		return nil, buf, err
	}
	mesh, err := model.CreateMesh(scene.MeshParams{ID: p.ID, GeometryID: g.ID, Origin: &origin})
	if err != nil {
		return nil, buf, err
	}
	return mesh, buf, nil
}

func maxAbs(values []float32) float32 {
	var m float32
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
