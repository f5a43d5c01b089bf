package geometry

import (
	"fmt"
	"strings"
)

// Primitive is the kind of primitive a geometry draws.
type Primitive int

const (
	PrimitiveUnknown   Primitive = iota // Not set or not recognized
	PrimitivePoints                     // Point cloud
	PrimitiveLines                      // Line segments, index pairs
	PrimitiveTriangles                  // Open triangle mesh
	PrimitiveSolid                      // Closed triangle mesh
	PrimitiveSurface                    // Triangle mesh that is not necessarily closed
)

var primitiveNames = map[Primitive]string{
	PrimitivePoints:    "points",
	PrimitiveLines:     "lines",
	PrimitiveTriangles: "triangles",
	PrimitiveSolid:     "solid",
	PrimitiveSurface:   "surface",
}

// SupportedPrimitives lists the primitive names Compress accepts.
func SupportedPrimitives() []string {
	return []string{"points", "lines", "triangles", "solid", "surface"}
}

// String returns the lower-case primitive name.
func (p Primitive) String() string {
	if name, ok := primitiveNames[p]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(p))
}

// Valid reports whether p is one of the supported primitives.
func (p Primitive) Valid() bool {
	_, ok := primitiveNames[p]
	return ok
}

// IsTriangles reports whether p is drawn as triangles and gets edge extraction.
func (p Primitive) IsTriangles() bool {
	return p == PrimitiveTriangles || p == PrimitiveSolid || p == PrimitiveSurface
}

// ParsePrimitive parses a primitive name, case-insensitively.
func ParsePrimitive(s string) (Primitive, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range primitiveNames {
		if n == name {
			return p, nil
		}
	}
	return PrimitiveUnknown, &Error{
		Field:  "primitive",
		Value:  s,
		Err:    ErrUnsupportedPrimitive,
		Detail: "supported: " + strings.Join(SupportedPrimitives(), ", "),
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Primitive) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, &Error{Field: "primitive", Value: int(p), Err: ErrUnsupportedPrimitive}
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Primitive) UnmarshalText(text []byte) error {
	parsed, err := ParsePrimitive(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
