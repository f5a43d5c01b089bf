package codec

import (
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
)

// Record is the JSON form of a compressed geometry. Colors are written as a
// number array rather than base64 so every buffer reads the same way.
type Record struct {
	ID                        string             `json:"id,omitempty"`
	Primitive                 geometry.Primitive `json:"primitive"`
	AABB                      [6]float64         `json:"aabb"`
	PositionsCompressed       []uint16           `json:"positionsCompressed"`
	PositionsDecompressMatrix [16]float64        `json:"positionsDecompressMatrix"`
	UVsCompressed             []uint16           `json:"uvsCompressed,omitempty"`
	UVsDecompressMatrix       *[16]float64       `json:"uvsDecompressMatrix,omitempty"`
	ColorsCompressed          []uint16           `json:"colorsCompressed,omitempty"`
	ColorComponents           int                `json:"colorComponents,omitempty"`
	Indices                   []uint32           `json:"indices,omitempty"`
	EdgeIndices               []uint32           `json:"edgeIndices,omitempty"`
}

// NewRecord converts c to its JSON form.
func NewRecord(c *geometry.Compressed) Record {
	r := Record{
		ID:                        c.ID,
		Primitive:                 c.Primitive,
		AABB:                      [6]float64(c.AABB),
		PositionsCompressed:       c.PositionsCompressed,
		PositionsDecompressMatrix: [16]float64(c.PositionsDecompressMatrix),
		UVsCompressed:             c.UVsCompressed,
		ColorComponents:           c.ColorComponents,
		Indices:                   c.Indices,
		EdgeIndices:               c.EdgeIndices,
	}
	if c.UVsDecompressMatrix != nil {
		m := [16]float64(*c.UVsDecompressMatrix)
		r.UVsDecompressMatrix = &m
	}
	if len(c.ColorsCompressed) > 0 {
		r.ColorsCompressed = make([]uint16, len(c.ColorsCompressed))
		for i, v := range c.ColorsCompressed {
			r.ColorsCompressed[i] = uint16(v)
		}
	}
	return r
}

// Compressed converts r back and validates the result.
func (r Record) Compressed() (*geometry.Compressed, error) {
	c := &geometry.Compressed{
		ID:                        r.ID,
		Primitive:                 r.Primitive,
		AABB:                      aabb.AABB3(r.AABB),
		PositionsCompressed:       r.PositionsCompressed,
		PositionsDecompressMatrix: math.Mat4(r.PositionsDecompressMatrix),
		UVsCompressed:             r.UVsCompressed,
		ColorComponents:           r.ColorComponents,
		Indices:                   r.Indices,
		EdgeIndices:               r.EdgeIndices,
	}
	if r.UVsDecompressMatrix != nil {
		m := math.Mat4(*r.UVsDecompressMatrix)
		c.UVsDecompressMatrix = &m
	}
	if len(r.ColorsCompressed) > 0 {
		c.ColorsCompressed = make([]uint8, len(r.ColorsCompressed))
		for i, v := range r.ColorsCompressed {
			if v > 0xFF {
				return nil, fmt.Errorf("record %q: color channel %d out of range: %d", r.ID, i, v)
			}
			c.ColorsCompressed[i] = uint8(v)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("record %q: %w", r.ID, err)
	}
	return c, nil
}

// MarshalJSON encodes c as an indented JSON record.
func MarshalJSON(c *geometry.Compressed) ([]byte, error) {
	return json.MarshalIndent(NewRecord(c), "", "  ")
}

// UnmarshalJSON decodes and validates a JSON record.
func UnmarshalJSON(data []byte) (*geometry.Compressed, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return r.Compressed()
}

// ReadParams decodes a JSON array of uncompressed geometries.
func ReadParams(r io.Reader) ([]geometry.Params, error) {
	var params []geometry.Params
	if err := json.NewDecoder(r).Decode(&params); err != nil {
		return nil, fmt.Errorf("decoding geometries: %w", err)
	}
	return params, nil
}

// WriteParams encodes params as a JSON array.
func WriteParams(w io.Writer, params []geometry.Params) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(params)
}
