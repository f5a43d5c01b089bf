package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/bimtiles/pkg/aabb"
	"github.com/Faultbox/bimtiles/pkg/geometry"
	"github.com/Faultbox/bimtiles/pkg/math"
	"github.com/Faultbox/bimtiles/pkg/tiles"
)

func unitCube(id string) geometry.Params {
	return geometry.Params{
		ID:        id,
		Primitive: geometry.PrimitiveTriangles,
		Positions: []float64{
			0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
			0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1,
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			3, 7, 6, 3, 6, 2,
			0, 4, 7, 0, 7, 3,
			1, 2, 6, 1, 6, 5,
		},
	}
}

func translate(x, y, z float64) *math.Mat4 {
	m := math.Translate(x, y, z)
	return &m
}

func newModel(t *testing.T, opts Options) (*Model, *tiles.Registry) {
	t.Helper()
	registry := tiles.NewRegistry()
	m := NewModel("model", registry, opts)
	_, err := m.CreateGeometry(unitCube("cube"))
	require.NoError(t, err)
	return m, registry
}

func TestCreateMeshDerivesOrigin(t *testing.T) {
	m, registry := newModel(t, DefaultOptions())

	mesh, err := m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube", Matrix: translate(1000137, 4, -63)})
	require.NoError(t, err)

	assert.Equal(t, math.Vec3{1000200, 0, 0}, mesh.Origin)
	assert.Equal(t, math.Vec3{-63, 4, -63}, mesh.Matrix.Translation())
	assert.Equal(t, math.Vec3{1000137, 4, -63}, mesh.WorldMatrix().Translation())

	require.NotNil(t, mesh.Tile())
	assert.Equal(t, tiles.Key(mesh.Origin), mesh.Tile().ID)
	assert.Equal(t, 2, registry.Len()) // model tile + mesh tile

	box := mesh.AABB()
	assert.InDeltaSlice(t, []float64{1000137, 4, -63, 1000138, 5, -62}, box[:], 1e-9)
	assert.Equal(t, 1, mesh.Geometry.NumMeshes())
}

func TestCreateMeshExplicitOrigin(t *testing.T) {
	m, _ := newModel(t, DefaultOptions())

	origin := math.Vec3{400, 0, 200}
	mesh, err := m.CreateMesh(MeshParams{GeometryID: "cube", Origin: &origin, Matrix: translate(5, 0, 0)})
	require.NoError(t, err)

	assert.NotEmpty(t, mesh.ID)
	assert.Equal(t, origin, mesh.Origin)
	assert.Equal(t, math.Vec3{5, 0, 0}, mesh.Matrix.Translation())

	// Explicit origins survive matrix updates.
	require.NoError(t, m.SetMeshMatrix(mesh.ID, math.Translate(9000, 0, 0)))
	assert.Equal(t, origin, mesh.Origin)
}

func TestCreateMeshWithoutRTC(t *testing.T) {
	opts := DefaultOptions()
	opts.RTC = false
	m, registry := newModel(t, opts)

	mesh, err := m.CreateMesh(MeshParams{GeometryID: "cube", Position: math.Vec3{1000137, 0, 0}})
	require.NoError(t, err)

	assert.True(t, mesh.Origin.IsZero())
	assert.Equal(t, math.Vec3{1000137, 0, 0}, mesh.Matrix.Translation())
	assert.Same(t, m.Tile(), mesh.Tile())
	assert.Equal(t, 2, m.Tile().RefCount())
	assert.Equal(t, 1, registry.Len())
}

func TestMeshesShareTiles(t *testing.T) {
	m, registry := newModel(t, DefaultOptions())

	a, err := m.CreateMesh(MeshParams{GeometryID: "cube", Matrix: translate(1010, 0, 0)})
	require.NoError(t, err)
	b, err := m.CreateMesh(MeshParams{GeometryID: "cube", Matrix: translate(990, 0, 0)})
	require.NoError(t, err)

	assert.Same(t, a.Tile(), b.Tile())
	assert.Equal(t, 2, a.Tile().RefCount())

	require.NoError(t, m.DestroyMesh(a.ID))
	assert.Equal(t, 1, b.Tile().RefCount())
	assert.Nil(t, a.Tile())

	require.NoError(t, m.DestroyMesh(b.ID))
	assert.Equal(t, 1, registry.Len())
}

func TestSetMeshMatrixMovesTile(t *testing.T) {
	m, registry := newModel(t, DefaultOptions())

	mesh, err := m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube", Matrix: translate(1000, 0, 0)})
	require.NoError(t, err)
	obj, err := m.CreateObject(ObjectParams{ID: "obj", MeshIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, obj.AABB()[0])

	require.NoError(t, m.SetMeshMatrix("a", math.Translate(3000, 0, 0)))
	assert.Equal(t, math.Vec3{3000, 0, 0}, mesh.Origin)
	assert.Equal(t, tiles.Key(math.Vec3{3000, 0, 0}), mesh.Tile().ID)

	_, ok := registry.Tile(tiles.Key(math.Vec3{1000, 0, 0}))
	assert.False(t, ok)
	assert.Equal(t, 3000.0, obj.AABB()[0])
	assert.Equal(t, 3000.0, m.AABB()[0])

	assert.ErrorIs(t, m.SetMeshMatrix("missing", math.Identity()), ErrUnknownMesh)
}

func TestObjectAABB(t *testing.T) {
	m, _ := newModel(t, DefaultOptions())

	_, err := m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube"})
	require.NoError(t, err)
	_, err = m.CreateMesh(MeshParams{ID: "b", GeometryID: "cube", Position: math.Vec3{10, 0, 0}, Scale: math.Vec3{2, 2, 2}})
	require.NoError(t, err)

	obj, err := m.CreateObject(ObjectParams{ID: "obj", MeshIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Len(t, obj.Meshes(), 2)

	want := aabb.AABB3{0, 0, 0, 12, 2, 2}
	got := obj.AABB()
	assert.InDeltaSlice(t, want[:], got[:], 1e-9)
	got = m.AABB()
	assert.InDeltaSlice(t, want[:], got[:], 1e-9)

	require.NoError(t, m.DestroyMesh("b"))
	got = obj.AABB()
	assert.InDeltaSlice(t, []float64{0, 0, 0, 1, 1, 1}, got[:], 1e-9)

	// Removing the last mesh removes the object.
	require.NoError(t, m.DestroyMesh("a"))
	_, ok := m.Object("obj")
	assert.False(t, ok)
	assert.True(t, m.AABB().IsEmpty())
}

func TestCreateObjectErrors(t *testing.T) {
	m, _ := newModel(t, DefaultOptions())
	_, err := m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube"})
	require.NoError(t, err)

	_, err = m.CreateObject(ObjectParams{ID: "empty"})
	assert.ErrorIs(t, err, ErrNoMeshes)

	_, err = m.CreateObject(ObjectParams{ID: "x", MeshIDs: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownMesh)

	_, err = m.CreateObject(ObjectParams{ID: "x", MeshIDs: []string{"a", "a"}})
	assert.ErrorIs(t, err, ErrMeshOwned)

	_, err = m.CreateObject(ObjectParams{ID: "x", MeshIDs: []string{"a"}})
	require.NoError(t, err)

	_, err = m.CreateObject(ObjectParams{ID: "y", MeshIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrMeshOwned)

	_, err = m.CreateObject(ObjectParams{ID: "x", MeshIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	assert.ErrorIs(t, m.DestroyObject("missing"), ErrUnknownObject)
}

func TestCreateErrors(t *testing.T) {
	m, _ := newModel(t, DefaultOptions())

	_, err := m.CreateGeometry(unitCube("cube"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = m.CreateGeometry(geometry.Params{ID: "bad", Primitive: geometry.PrimitiveTriangles})
	assert.ErrorIs(t, err, geometry.ErrMissingPositions)
	_, ok := m.Geometry("bad")
	assert.False(t, ok)

	_, err = m.CreateMesh(MeshParams{GeometryID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownGeometry)

	_, err = m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube"})
	require.NoError(t, err)
	_, err = m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube"})
	assert.ErrorIs(t, err, ErrDuplicateID)

	assert.ErrorIs(t, m.DestroyMesh("missing"), ErrUnknownMesh)
}

func TestHousekeep(t *testing.T) {
	m, _ := newModel(t, DefaultOptions())
	_, err := m.CreateGeometry(unitCube("unused"))
	require.NoError(t, err)

	_, err = m.CreateMesh(MeshParams{ID: "a", GeometryID: "cube"})
	require.NoError(t, err)
	_, err = m.CreateObject(ObjectParams{ID: "obj", MeshIDs: []string{"a"}})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Housekeep())
	assert.Equal(t, 1, m.NumGeometries())

	require.NoError(t, m.DestroyObject("obj"))
	assert.Equal(t, 0, m.NumMeshes())
	assert.Equal(t, 0, m.NumObjects())

	assert.Equal(t, 1, m.Housekeep())
	assert.Equal(t, 0, m.NumGeometries())
	assert.Equal(t, 0, m.Housekeep())
}

func TestDestroyReleasesAllTiles(t *testing.T) {
	m, registry := newModel(t, DefaultOptions())

	for i, x := range []float64{0, 500, 500, 1e7} {
		_, err := m.CreateMesh(MeshParams{GeometryID: "cube", Position: math.Vec3{x, 0, 0}})
		require.NoError(t, err, "mesh %d", i)
	}
	_, err := m.CreateMesh(MeshParams{GeometryID: "cube", Position: math.Vec3{0, -800, 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, registry.Len())

	m.Destroy()
	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, m.Tile())

	// Idempotent, and further creation is refused.
	m.Destroy()
	_, err = m.CreateGeometry(unitCube("again"))
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestModelsShareRegistry(t *testing.T) {
	registry := tiles.NewRegistry()
	a := NewModel("", registry, DefaultOptions())
	b := NewModel("", registry, DefaultOptions())

	assert.NotEqual(t, a.ID, b.ID)
	assert.Same(t, a.Tile(), b.Tile())
	assert.Equal(t, 2, a.Tile().RefCount())

	a.Destroy()
	assert.Equal(t, 1, registry.Len())
	b.Destroy()
	assert.Equal(t, 0, registry.Len())
}
