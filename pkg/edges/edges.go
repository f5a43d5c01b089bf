// Package edges derives crease and boundary edges from triangle meshes for
// wireframe overlays.
package edges

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/quantize"
)

// DefaultThreshold is the dihedral angle, in degrees, above which an edge
// shared by two triangles is kept.
const DefaultThreshold = 10.0

type edge struct {
	a, b   uint32 // original vertex indices, a < b
	first  math.Vec3f // edge-oriented normal of the first triangle
	faces  int
	retain bool
}

// Build returns a flat [a0,b0, a1,b1, ...] list of undirected edges of the
// triangles in indices. positions are quantized relative to box.
//
// An edge is kept when only one triangle uses it, when a triangle using it is
// degenerate, or when its triangles deviate from one plane by more than
// thresholdDeg. The deviation is measured with normals oriented by the edge
// and each triangle's opposite vertex, so winding does not matter and a sharp
// fold reads as a large deviation.
//
// Vertices with identical quantized positions are treated as one vertex so
// split-vertex meshes still share edges. Each output pair uses the
// indices of the first triangle that produced it, ordered a < b. Triangles
// referencing a vertex outside positions are ignored.
func Build(positions []uint16, indices []uint32, box aabb.AABB3, thresholdDeg float64) []uint32 {
	numVerts := uint32(len(positions) / 3)
	if numVerts == 0 || len(indices) < 3 {
		return nil
	}

	welded, points := weld(positions, quantize.DecompressMatrix(box))
	cosThreshold := math32.Cos(float32(thresholdDeg) * math32.Pi / 180)

	byKey := make(map[uint64]int)
	var found []edge

	for i := 0; i+2 < len(indices); i += 3 {
		tri := [3]uint32{indices[i], indices[i+1], indices[i+2]}
		if tri[0] >= numVerts || tri[1] >= numVerts || tri[2] >= numVerts {
			continue
		}
		w := [3]uint32{welded[tri[0]], welded[tri[1]], welded[tri[2]]}

		ok := !degenerate(points[w[0]], points[w[1]], points[w[2]])
		if w[0] == w[1] || w[1] == w[2] || w[0] == w[2] {
			ok = false
		}

		for j := 0; j < 3; j++ {
			k, o := (j+1)%3, (j+2)%3
			if w[j] == w[k] {
				continue
			}
			lo, hi := w[j], w[k]
			if lo > hi {
				lo, hi = hi, lo
			}
			// Oriented along the welded edge, so two triangles of one plane
			// lying on either side of it get opposite normals whatever their
			// winding, and a folded-over wedge gets near-equal ones.
			normal, edgeOK := edgeNormal(points[lo], points[hi], points[w[o]])
			edgeOK = edgeOK && ok

			key := edgeKey(lo, hi)
			idx, seen := byKey[key]
			if !seen {
				a, b := tri[j], tri[k]
				if a > b {
					a, b = b, a
				}
				byKey[key] = len(found)
				found = append(found, edge{a: a, b: b, first: normal, faces: 1, retain: !edgeOK})
				continue
			}

			e := &found[idx]
			e.faces++
			if !edgeOK {
				e.retain = true
				continue
			}
			if e.retain {
				continue
			}
			if -e.first.Dot(normal) < cosThreshold {
				e.retain = true
			}
		}
	}

	out := make([]uint32, 0, len(found))
	for _, e := range found {
		if e.faces == 1 || e.retain {
			out = append(out, e.a, e.b)
		}
	}
	return out
}

// weld maps every vertex to the first vertex sharing its quantized position and
// de-quantizes positions to single precision, as the vertex shader sees them.
func weld(positions []uint16, decompress math.Mat4) ([]uint32, []math.Vec3f) {
	numVerts := len(positions) / 3
	welded := make([]uint32, numVerts)
	points := make([]math.Vec3f, numVerts)
	firstAt := make(map[[3]uint16]uint32, numVerts)

	for v := 0; v < numVerts; v++ {
		q := [3]uint16{positions[v*3], positions[v*3+1], positions[v*3+2]}
		if first, ok := firstAt[q]; ok {
			welded[v] = first
		} else {
			firstAt[q] = uint32(v)
			welded[v] = uint32(v)
		}
		points[v] = quantize.DecompressPosition(q, decompress).Vec3f()
	}
	return welded, points
}

// degenerateSine is the smallest sine of the angle between two triangle edges
// for which the face normal is still meaningful.
const degenerateSine = 1e-6

// degenerate reports whether triangle abc is too thin to have a meaningful normal.
func degenerate(a, b, c math.Vec3f) bool {
	e1, e2 := b.Sub(a), c.Sub(a)
	return e1.Cross(e2).Length() <= degenerateSine*e1.Length()*e2.Length()
}

// edgeNormal returns the unit normal of the triangle spanned by edge ab and
// the opposite vertex c, oriented as (b-a) x (c-a).
func edgeNormal(a, b, c math.Vec3f) (math.Vec3f, bool) {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

func edgeKey(a, b uint32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}
