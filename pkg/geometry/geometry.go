// Package geometry compresses model geometry into quantized, edge-augmented
// records ready for GPU upload or serialization.
package geometry

import (
	"fmt"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/edges"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/quantize"
)

// Params is an uncompressed geometry in the model's local coordinate frame.
type Params struct {
	ID        string    `json:"id,omitempty"`
	Primitive Primitive `json:"primitive"`
	Positions []float64 `json:"positions"`
	UVs       []float64 `json:"uvs,omitempty"`
	Colors    []float64 `json:"colors,omitempty"` // RGB or RGBA per vertex, channels in [0, 1]
	Indices   []uint32  `json:"indices,omitempty"`
}

// Compressed is an immutable compressed geometry.
type Compressed struct {
	ID        string
	Primitive Primitive

	// AABB is the exact bounds of the input positions.
	AABB aabb.AABB3

	PositionsCompressed       []uint16
	PositionsDecompressMatrix math.Mat4

	UVsCompressed       []uint16
	UVsDecompressMatrix *math.Mat4

	ColorsCompressed []uint8
	ColorComponents  int // 3 or 4 when ColorsCompressed is set

	Indices     []uint32
	EdgeIndices []uint32
}

// Options tunes compression.
type Options struct {
	// EdgeThreshold is the dihedral angle in degrees above which an edge
	// between two triangles is kept.
	EdgeThreshold float64
}

// DefaultOptions returns the standard compression options.
func DefaultOptions() Options {
	return Options{EdgeThreshold: edges.DefaultThreshold}
}

// Compress compresses p with DefaultOptions.
func Compress(p Params) (*Compressed, error) {
	return CompressWithOptions(p, DefaultOptions())
}

// CompressWithOptions validates p, then computes its bounds, quantizes its
// attributes and, for triangle primitives with indices, extracts edges.
// Input coordinates are never shifted or modified.
func CompressWithOptions(p Params, opts Options) (*Compressed, error) {
	colorComponents, err := validate(p)
	if err != nil {
		instrumentError(err)
		return nil, err
	}

	box := aabb.FromPoints(p.Positions)
	positions, decompress := quantize.Positions(p.Positions, box)

	c := &Compressed{
		ID:                        p.ID,
		Primitive:                 p.Primitive,
		AABB:                      box,
		PositionsCompressed:       positions,
		PositionsDecompressMatrix: decompress,
	}

	if len(p.UVs) > 0 {
		uvs, uvMatrix := quantize.UVs(p.UVs)
		c.UVsCompressed = uvs
		c.UVsDecompressMatrix = &uvMatrix
	}

	if len(p.Colors) > 0 {
		c.ColorsCompressed = quantize.Colors(p.Colors)
		c.ColorComponents = colorComponents
	}

	switch {
	case p.Primitive == PrimitiveLines:
		c.Indices = append([]uint32(nil), p.Indices...)
	case p.Primitive.IsTriangles() && len(p.Indices) > 0:
		c.Indices = append([]uint32(nil), p.Indices...)
		c.EdgeIndices = edges.Build(positions, p.Indices, box, opts.EdgeThreshold)
	}

	instrumentCompressed(p.Primitive)
	return c, nil
}

// validate checks p's structure and returns the number of color components per vertex.
func validate(p Params) (int, error) {
	if !p.Primitive.Valid() {
		return 0, &Error{
			Field:  "primitive",
			Value:  p.Primitive.String(),
			Err:    ErrUnsupportedPrimitive,
			Detail: "supported: points, lines, triangles, solid, surface",
		}
	}
	if len(p.Positions) == 0 {
		return 0, &Error{Field: "positions", Err: ErrMissingPositions}
	}
	if len(p.Positions)%3 != 0 {
		return 0, &Error{Field: "positions", Value: len(p.Positions), Err: ErrPositionsNotTriplets}
	}
	numVerts := len(p.Positions) / 3

	switch {
	case p.Primitive == PrimitiveLines:
		if len(p.Indices) == 0 {
			return 0, &Error{Field: "indices", Err: ErrMissingIndices, Detail: "lines require index pairs"}
		}
		if len(p.Indices)%2 != 0 {
			return 0, &Error{Field: "indices", Value: len(p.Indices), Err: ErrIndexCount, Detail: "want a multiple of 2"}
		}
	case p.Primitive.IsTriangles():
		if len(p.Indices)%3 != 0 {
			return 0, &Error{Field: "indices", Value: len(p.Indices), Err: ErrIndexCount, Detail: "want a multiple of 3"}
		}
	}

	if len(p.UVs) > 0 && len(p.UVs) != numVerts*2 {
		return 0, &Error{
			Field:  "uvs",
			Value:  len(p.UVs) / 2,
			Err:    ErrUVCountMismatch,
			Detail: "want one uv per position",
		}
	}

	if p.Primitive != PrimitivePoints {
		for i, idx := range p.Indices {
			if int(idx) >= numVerts {
				return 0, &Error{
					Field:  "indices",
					Value:  idx,
					Err:    ErrIndexOutOfRange,
					Detail: indexDetail(i, numVerts, len(p.UVs) > 0),
				}
			}
		}
	}

	components := 0
	if len(p.Colors) > 0 {
		switch len(p.Colors) {
		case numVerts * 3:
			components = 3
		case numVerts * 4:
			components = 4
		default:
			return 0, &Error{
				Field:  "colors",
				Value:  len(p.Colors),
				Err:    ErrColorCountMismatch,
				Detail: "want 3 or 4 channels per position",
			}
		}
	}
	return components, nil
}

func indexDetail(at, numVerts int, hasUVs bool) string {
	buffers := "positions"
	if hasUVs {
		buffers = "positions and uvs"
	}
	return fmt.Sprintf("at %d, %s hold %d vertices", at, buffers, numVerts)
}

// NumVertices returns the number of vertices in the record.
func (c *Compressed) NumVertices() int {
	return len(c.PositionsCompressed) / 3
}

// Positions returns de-quantized positions in the geometry's local frame.
func (c *Compressed) Positions() []float64 {
	return quantize.DecompressPositions(c.PositionsCompressed, c.PositionsDecompressMatrix)
}

// Colors returns de-quantized color channels.
func (c *Compressed) Colors() []float64 {
	return quantize.DecompressColors(c.ColorsCompressed)
}

// Validate re-checks the record's invariants, for records that did not come
// straight out of Compress (e.g. decoded from a file).
func (c *Compressed) Validate() error {
	if !c.Primitive.Valid() {
		return &Error{Field: "primitive", Value: c.Primitive.String(), Err: ErrUnsupportedPrimitive}
	}
	if len(c.PositionsCompressed) == 0 {
		return &Error{Field: "positionsCompressed", Err: ErrMissingPositions}
	}
	if len(c.PositionsCompressed)%3 != 0 {
		return &Error{Field: "positionsCompressed", Value: len(c.PositionsCompressed), Err: ErrPositionsNotTriplets}
	}
	numVerts := c.NumVertices()
	if c.Primitive == PrimitiveLines && len(c.Indices) == 0 {
		return &Error{Field: "indices", Err: ErrMissingIndices}
	}
	if len(c.UVsCompressed) > 0 && len(c.UVsCompressed) != numVerts*2 {
		return &Error{Field: "uvsCompressed", Value: len(c.UVsCompressed) / 2, Err: ErrUVCountMismatch}
	}
	if len(c.ColorsCompressed) > 0 && len(c.ColorsCompressed) != numVerts*c.ColorComponents {
		return &Error{Field: "colorsCompressed", Value: len(c.ColorsCompressed), Err: ErrColorCountMismatch}
	}
	for _, idx := range c.Indices {
		if int(idx) >= numVerts {
			return &Error{Field: "indices", Value: idx, Err: ErrIndexOutOfRange}
		}
	}
	if len(c.EdgeIndices)%2 != 0 {
		return &Error{Field: "edgeIndices", Value: len(c.EdgeIndices), Err: ErrIndexCount}
	}
	for _, idx := range c.EdgeIndices {
		if int(idx) >= numVerts {
			return &Error{Field: "edgeIndices", Value: idx, Err: ErrIndexOutOfRange}
		}
	}
	return nil
}
