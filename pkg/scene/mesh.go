package scene

import (
	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/tiles"
)

// Geometry is a compressed geometry shared by any number of meshes.
type Geometry struct {
	ID         string
	Compressed *geometry.Compressed

	numMeshes int
}

// NumMeshes returns the number of meshes using the geometry.
func (g *Geometry) NumMeshes() int {
	return g.numMeshes
}

// MeshParams describes a mesh. When Origin is set the caller has already
// split the transform and Matrix is taken as relative to it. Otherwise the
// world transform is Matrix, or Position/Rotation/Scale when Matrix is nil.
type MeshParams struct {
	ID         string
	GeometryID string

	Origin *math.Vec3
	Matrix *math.Mat4

	Position math.Vec3
	Rotation math.Quat // zero value means no rotation
	Scale    math.Vec3 // zero value means unit scale
}

func (p MeshParams) matrix() math.Mat4 {
	if p.Matrix != nil {
		return *p.Matrix
	}
	rot := p.Rotation
	if rot.IsZero() {
		rot = math.QuatIdentity()
	}
	scale := p.Scale
	if scale.IsZero() {
		scale = math.Vec3{1, 1, 1}
	}
	return math.Compose(p.Position, rot, scale)
}

// Mesh places a geometry in the world: world = Origin + Matrix * local.
type Mesh struct {
	ID       string
	Geometry *Geometry
	Origin   math.Vec3
	Matrix   math.Mat4

	explicitOrigin bool
	tile           *tiles.Tile
	object         *Object
}

// Tile returns the tile the mesh holds, or nil after it was destroyed.
func (m *Mesh) Tile() *tiles.Tile {
	return m.tile
}

// Object returns the owning object, or nil.
func (m *Mesh) Object() *Object {
	return m.object
}

// WorldMatrix returns the full world transform including the origin.
func (m *Mesh) WorldMatrix() math.Mat4 {
	return m.Matrix.WithTranslation(m.Matrix.Translation().Add(m.Origin))
}

// AABB returns the world bounds of the mesh.
func (m *Mesh) AABB() aabb.AABB3 {
	return m.Geometry.Compressed.AABB.Transform(m.Matrix).Translate(m.Origin)
}

// ObjectParams lists the meshes that make up an object.
type ObjectParams struct {
	ID      string
	MeshIDs []string
}

// Object aggregates meshes and caches their union bounds.
type Object struct {
	ID string

	meshes    []*Mesh
	aabb      aabb.AABB3
	aabbDirty bool
}

// Meshes returns the object's meshes in creation order.
func (o *Object) Meshes() []*Mesh {
	return append([]*Mesh(nil), o.meshes...)
}

// AABB returns the union of the mesh bounds, recomputed only after a mesh changed.
func (o *Object) AABB() aabb.AABB3 {
	if o.aabbDirty {
		o.aabb.Collapse()
		for _, mesh := range o.meshes {
			o.aabb.ExpandByAABB(mesh.AABB())
		}
		o.aabbDirty = false
	}
	return o.aabb
}

func (o *Object) remove(mesh *Mesh) {
	for i, candidate := range o.meshes {
		if candidate == mesh {
			o.meshes = append(o.meshes[:i], o.meshes[i+1:]...)
			break
		}
	}
	o.aabbDirty = true
}
