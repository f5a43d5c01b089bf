// Package codec serializes compressed geometry records, either as JSON or as
// entries of a zlib-compressed XGC archive.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
)

// Record errors.
var (
	ErrTruncatedRecord = errors.New("truncated record")
	ErrRecordTooLarge  = errors.New("record array length exceeds data")
)

const hasUVMatrix = 0x01

// MarshalRecord encodes c as a little-endian field stream:
//
//	u8 primitive, u16 id length, id
//	6 f64 aabb
//	u32 n, n u16 positions, 16 f64 positions matrix
//	u8 flags, u32 n, n u16 uvs, [16 f64 uv matrix]
//	u8 color components, u32 n, n u8 colors
//	u32 n, n u32 indices
//	u32 n, n u32 edge indices
func MarshalRecord(c *geometry.Compressed) ([]byte, error) {
	if len(c.ID) > 0xFFFF {
		return nil, fmt.Errorf("id too long: %d bytes", len(c.ID))
	}

	buf := new(bytes.Buffer)
	buf.Grow(recordSizeHint(c))
	w := &fieldWriter{w: buf}

	w.put(uint8(c.Primitive))
	w.put(uint16(len(c.ID)))
	buf.WriteString(c.ID)
	w.put([6]float64(c.AABB))

	w.put(uint32(len(c.PositionsCompressed)))
	w.put(c.PositionsCompressed)
	w.put([16]float64(c.PositionsDecompressMatrix))

	var flags uint8
	if c.UVsDecompressMatrix != nil {
		flags |= hasUVMatrix
	}
	w.put(flags)
	w.put(uint32(len(c.UVsCompressed)))
	w.put(c.UVsCompressed)
	if c.UVsDecompressMatrix != nil {
		w.put([16]float64(*c.UVsDecompressMatrix))
	}

	w.put(uint8(c.ColorComponents))
	w.put(uint32(len(c.ColorsCompressed)))
	buf.Write(c.ColorsCompressed)

	w.put(uint32(len(c.Indices)))
	w.put(c.Indices)
	w.put(uint32(len(c.EdgeIndices)))
	w.put(c.EdgeIndices)

	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord decodes a field stream written by MarshalRecord and
// validates the result.
func UnmarshalRecord(data []byte) (*geometry.Compressed, error) {
	r := &fieldReader{r: bytes.NewReader(data)}
	c := &geometry.Compressed{}

	var primitive uint8
	r.get(&primitive)
	c.Primitive = geometry.Primitive(primitive)

	var idLen uint16
	r.get(&idLen)
	c.ID = string(r.bytes(int(idLen)))

	var box [6]float64
	r.get(&box)
	c.AABB = aabb.AABB3(box)

	c.PositionsCompressed = r.uint16s()
	var positionsMatrix [16]float64
	r.get(&positionsMatrix)
	c.PositionsDecompressMatrix = math.Mat4(positionsMatrix)

	var flags uint8
	r.get(&flags)
	c.UVsCompressed = r.uint16s()
	if flags&hasUVMatrix != 0 {
		var uvMatrix [16]float64
		r.get(&uvMatrix)
		m := math.Mat4(uvMatrix)
		c.UVsDecompressMatrix = &m
	}

	var components uint8
	r.get(&components)
	c.ColorComponents = int(components)
	var numColors uint32
	r.get(&numColors)
	if colors := r.bytes(int(numColors)); len(colors) > 0 {
		c.ColorsCompressed = colors
	}

	c.Indices = r.uint32s()
	c.EdgeIndices = r.uint32s()

	if r.err != nil {
		return nil, r.err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("record %q: %w", c.ID, err)
	}
	return c, nil
}

func recordSizeHint(c *geometry.Compressed) int {
	return 3 + len(c.ID) + 6*8 + 2*16*8 + 18 +
		2*len(c.PositionsCompressed) + 2*len(c.UVsCompressed) +
		len(c.ColorsCompressed) + 4*len(c.Indices) + 4*len(c.EdgeIndices)
}

// fieldWriter remembers the first write error so encoding reads straight through.
type fieldWriter struct {
	w   io.Writer
	err error
}

func (w *fieldWriter) put(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

type fieldReader struct {
	r   *bytes.Reader
	err error
}

func (r *fieldReader) get(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
}

// fits reports whether n elements of size bytes remain, so a corrupt length
// cannot trigger a huge allocation.
func (r *fieldReader) fits(n, size int) bool {
	if r.err != nil {
		return false
	}
	if n*size > r.r.Len() {
		r.err = fmt.Errorf("%w: %d elements of %d bytes, %d bytes left", ErrRecordTooLarge, n, size, r.r.Len())
		return false
	}
	return true
}

func (r *fieldReader) bytes(n int) []byte {
	if n == 0 || !r.fits(n, 1) {
		return nil
	}
	out := make([]byte, n)
	_, _ = io.ReadFull(r.r, out)
	return out
}

func (r *fieldReader) uint16s() []uint16 {
	var n uint32
	r.get(&n)
	if n == 0 || !r.fits(int(n), 2) {
		return nil
	}
	out := make([]uint16, n)
	r.get(out)
	return out
}

func (r *fieldReader) uint32s() []uint32 {
	var n uint32
	r.get(&n)
	if n == 0 || !r.fits(int(n), 4) {
		return nil
	}
	out := make([]uint32, n)
	r.get(out)
	return out
}
