package geometry

import (
	"errors"
	"fmt"
)

// Structural input errors. Each is wrapped in an *Error naming the field.
var (
	ErrUnsupportedPrimitive = errors.New("unsupported primitive")
	ErrMissingPositions     = errors.New("missing positions")
	ErrPositionsNotTriplets = errors.New("positions length is not a multiple of 3")
	ErrMissingIndices       = errors.New("missing indices")
	ErrIndexCount           = errors.New("index count does not match primitive")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrUVCountMismatch      = errors.New("uv count does not match position count")
	ErrColorCountMismatch   = errors.New("color count does not match position count")
)

// Error is a structural problem with one field of a geometry.
type Error struct {
	Field  string // Offending field, e.g. "indices"
	Value  any    // Offending value, if any
	Err    error  // One of the Err* sentinels
	Detail string // Extra context for the user
}

// Error implements error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("geometry: %s: %v", e.Field, e.Err)
	if e.Value != nil {
		msg += fmt.Sprintf(" (got %v)", e.Value)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the sentinel error.
func (e *Error) Unwrap() error {
	return e.Err
}

var errorKinds = map[error]string{
	ErrUnsupportedPrimitive: "unsupported_primitive",
	ErrMissingPositions:     "missing_positions",
	ErrPositionsNotTriplets: "positions_not_triplets",
	ErrMissingIndices:       "missing_indices",
	ErrIndexCount:           "index_count",
	ErrIndexOutOfRange:      "index_out_of_range",
	ErrUVCountMismatch:      "uv_count_mismatch",
	ErrColorCountMismatch:   "color_count_mismatch",
}

// ErrorKind returns a stable short name for the sentinel err wraps, or
// "other" when it wraps none of them.
func ErrorKind(err error) string {
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return "other"
}
