// Package scene holds the model container that ties compressed geometries to
// meshes, meshes to objects, and meshes to RTC tiles.
package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/bimtiles/internal/logger"
	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/rtc"
	"github.com/Faultbox/bimtiles/pkg/tiles"
)

// Model errors.
var (
	ErrDuplicateID     = errors.New("duplicate id")
	ErrUnknownGeometry = errors.New("unknown geometry")
	ErrUnknownMesh     = errors.New("unknown mesh")
	ErrUnknownObject   = errors.New("unknown object")
	ErrMeshOwned       = errors.New("mesh already belongs to an object")
	ErrNoMeshes        = errors.New("object has no meshes")
	ErrDestroyed       = errors.New("model destroyed")
)

// Options configures a Model.
type Options struct {
	// Origin is the model-level RTC origin.
	Origin math.Vec3
	// RTC derives mesh origins from mesh matrices when no origin is given.
	RTC bool
	// CellSize is the RTC cell edge length; non-positive means rtc.DefaultCellSize.
	CellSize float64
	// Compression is applied to every geometry created in the model.
	Compression geometry.Options
}

// DefaultOptions returns options with RTC enabled at the default cell size.
func DefaultOptions() Options {
	return Options{
		RTC:         true,
		CellSize:    rtc.DefaultCellSize,
		Compression: geometry.DefaultOptions(),
	}
}

// Model is a container of geometries, meshes and objects sharing one tile
// registry. A Model is not safe for concurrent use; the registry is.
type Model struct {
	ID string

	opts     Options
	registry *tiles.Registry
	tile     *tiles.Tile

	geometries map[string]*Geometry
	meshes     map[string]*Mesh
	objects    map[string]*Object

	aabb      aabb.AABB3
	aabbDirty bool
	destroyed bool
}

// NewModel creates a model that acquires its tiles from registry.
// An empty id is replaced by a random UUID.
func NewModel(id string, registry *tiles.Registry, opts Options) *Model {
	if id == "" {
		id = uuid.NewString()
	}
	if opts.CellSize <= 0 {
		opts.CellSize = rtc.DefaultCellSize
	}
	return &Model{
		ID:         id,
		opts:       opts,
		registry:   registry,
		tile:       registry.Get(opts.Origin),
		geometries: make(map[string]*Geometry),
		meshes:     make(map[string]*Mesh),
		objects:    make(map[string]*Object),
		aabb:       aabb.Collapsed(),
		aabbDirty:  true,
	}
}

// Tile returns the model-level tile, or nil once the model is destroyed.
func (m *Model) Tile() *tiles.Tile {
	return m.tile
}

// Geometry returns the geometry with the given ID.
func (m *Model) Geometry(id string) (*Geometry, bool) {
	g, ok := m.geometries[id]
	return g, ok
}

// Mesh returns the mesh with the given ID.
func (m *Model) Mesh(id string) (*Mesh, bool) {
	mesh, ok := m.meshes[id]
	return mesh, ok
}

// Object returns the object with the given ID.
func (m *Model) Object(id string) (*Object, bool) {
	o, ok := m.objects[id]
	return o, ok
}

// NumGeometries returns the number of stored geometries, including unreferenced ones.
func (m *Model) NumGeometries() int { return len(m.geometries) }

// NumMeshes returns the number of live meshes.
func (m *Model) NumMeshes() int { return len(m.meshes) }

// NumObjects returns the number of live objects.
func (m *Model) NumObjects() int { return len(m.objects) }

// Objects returns the live objects sorted by ID.
func (m *Model) Objects() []*Object {
	out := make([]*Object, 0, len(m.objects))
	for _, o := range m.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateGeometry compresses p and stores the result for meshes to share.
func (m *Model) CreateGeometry(p geometry.Params) (*Geometry, error) {
	if m.destroyed {
		return nil, ErrDestroyed
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.geometries[p.ID]; ok {
		return nil, fmt.Errorf("geometry %q: %w", p.ID, ErrDuplicateID)
	}

	c, err := geometry.CompressWithOptions(p, m.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("geometry %q: %w", p.ID, err)
	}

	g := &Geometry{ID: p.ID, Compressed: c}
	m.geometries[g.ID] = g
	return g, nil
}

// CreateMesh instantiates a stored geometry and acquires the tile of its origin.
func (m *Model) CreateMesh(p MeshParams) (*Mesh, error) {
	if m.destroyed {
		return nil, ErrDestroyed
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.meshes[p.ID]; ok {
		return nil, fmt.Errorf("mesh %q: %w", p.ID, ErrDuplicateID)
	}
	g, ok := m.geometries[p.GeometryID]
	if !ok {
		return nil, fmt.Errorf("mesh %q: geometry %q: %w", p.ID, p.GeometryID, ErrUnknownGeometry)
	}

	origin, local := m.placement(p.Origin, p.matrix())

	mesh := &Mesh{
		ID:       p.ID,
		Geometry: g,
		Origin:   origin,
		Matrix:   local,

		explicitOrigin: p.Origin != nil,
		tile:           m.registry.Get(origin),
	}
	g.numMeshes++
	m.meshes[mesh.ID] = mesh
	m.aabbDirty = true
	return mesh, nil
}

// SetMeshMatrix replaces the world matrix of a mesh, moving it to another
// tile when its derived origin changes. Meshes created with an explicit
// origin keep it.
func (m *Model) SetMeshMatrix(id string, matrix math.Mat4) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return fmt.Errorf("mesh %q: %w", id, ErrUnknownMesh)
	}

	var explicit *math.Vec3
	if mesh.explicitOrigin {
		explicit = &mesh.Origin
	}
	origin, local := m.placement(explicit, matrix)

	if origin != mesh.Origin {
		// Acquire first so a shared tile is never destroyed in between.
		next := m.registry.Get(origin)
		m.registry.Put(mesh.tile)
		mesh.tile = next
		mesh.Origin = origin
	}
	mesh.Matrix = local
	m.invalidate(mesh)
	return nil
}

// placement resolves the RTC origin of a mesh and the matrix relative to it.
func (m *Model) placement(origin *math.Vec3, world math.Mat4) (math.Vec3, math.Mat4) {
	switch {
	case origin != nil:
		return *origin, world
	case m.opts.RTC:
		o, local, _ := rtc.MatrixToRTC(world, m.opts.CellSize)
		return o, local
	default:
		return math.Vec3{}, world
	}
}

// CreateObject groups meshes that have no object yet.
func (m *Model) CreateObject(p ObjectParams) (*Object, error) {
	if m.destroyed {
		return nil, ErrDestroyed
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.objects[p.ID]; ok {
		return nil, fmt.Errorf("object %q: %w", p.ID, ErrDuplicateID)
	}
	if len(p.MeshIDs) == 0 {
		return nil, fmt.Errorf("object %q: %w", p.ID, ErrNoMeshes)
	}

	meshes := make([]*Mesh, 0, len(p.MeshIDs))
	seen := make(map[string]struct{}, len(p.MeshIDs))
	for _, meshID := range p.MeshIDs {
		mesh, ok := m.meshes[meshID]
		if !ok {
			return nil, fmt.Errorf("object %q: mesh %q: %w", p.ID, meshID, ErrUnknownMesh)
		}
		if _, dup := seen[meshID]; dup || mesh.object != nil {
			return nil, fmt.Errorf("object %q: mesh %q: %w", p.ID, meshID, ErrMeshOwned)
		}
		seen[meshID] = struct{}{}
		meshes = append(meshes, mesh)
	}

	o := &Object{ID: p.ID, meshes: meshes, aabb: aabb.Collapsed(), aabbDirty: true}
	for _, mesh := range meshes {
		mesh.object = o
	}
	m.objects[o.ID] = o
	m.aabbDirty = true
	return o, nil
}

// DestroyMesh releases a mesh's tile and its claim on its geometry.
func (m *Model) DestroyMesh(id string) error {
	mesh, ok := m.meshes[id]
	if !ok {
		return fmt.Errorf("mesh %q: %w", id, ErrUnknownMesh)
	}

	if o := mesh.object; o != nil {
		o.remove(mesh)
		if len(o.meshes) == 0 {
			delete(m.objects, o.ID)
		}
	}
	m.releaseMesh(mesh)
	m.aabbDirty = true
	return nil
}

// DestroyObject destroys an object together with its meshes.
func (m *Model) DestroyObject(id string) error {
	o, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("object %q: %w", id, ErrUnknownObject)
	}
	for _, mesh := range o.meshes {
		m.releaseMesh(mesh)
	}
	o.meshes = nil
	delete(m.objects, id)
	m.aabbDirty = true
	return nil
}

func (m *Model) releaseMesh(mesh *Mesh) {
	m.registry.Put(mesh.tile)
	mesh.tile = nil
	mesh.object = nil
	mesh.Geometry.numMeshes--
	delete(m.meshes, mesh.ID)
}

// Housekeep deletes geometries that no mesh uses and returns how many were deleted.
func (m *Model) Housekeep() int {
	removed := 0
	for id, g := range m.geometries {
		if g.numMeshes == 0 {
			delete(m.geometries, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("geometries released",
			zap.String("model", m.ID),
			zap.Int("count", removed))
	}
	return removed
}

// Destroy releases every tile the model holds. The model cannot be used afterwards.
func (m *Model) Destroy() {
	if m.destroyed {
		return
	}
	for _, mesh := range m.meshes {
		m.registry.Put(mesh.tile)
		mesh.tile = nil
		mesh.object = nil
	}
	m.registry.Put(m.tile)
	m.tile = nil

	m.meshes = make(map[string]*Mesh)
	m.objects = make(map[string]*Object)
	m.geometries = make(map[string]*Geometry)
	m.aabb = aabb.Collapsed()
	m.aabbDirty = false
	m.destroyed = true
}

// AABB returns the world bounds of all objects, empty when there are none.
func (m *Model) AABB() aabb.AABB3 {
	if m.aabbDirty {
		m.aabb.Collapse()
		for _, o := range m.objects {
			m.aabb.ExpandByAABB(o.AABB())
		}
		m.aabbDirty = false
	}
	return m.aabb
}

func (m *Model) invalidate(mesh *Mesh) {
	if mesh.object != nil {
		mesh.object.aabbDirty = true
	}
	m.aabbDirty = true
}
