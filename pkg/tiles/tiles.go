// Package tiles keeps reference-counted tiles: shared coordinate origins for
// all geometry that falls in the same cell of world space.
package tiles

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/bimtiles/internal/logger"
	"github.com/Faultbox/bimtiles/pkg/math"
)

// Tile is a shared coordinate origin. Holders keep a non-owning pointer and
// must hand it back with Registry.Put.
type Tile struct {
	ID     string
	Origin math.Vec3

	refs atomic.Int32
}

// RefCount returns the number of holders that have not released the tile.
func (t *Tile) RefCount() int {
	return int(t.refs.Load())
}

// Event is a tile lifecycle notification.
type Event int

const (
	TileCreated   Event = iota + 1 // First holder acquired the tile
	TileDestroyed                  // Last holder released the tile
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case TileCreated:
		return "created"
	case TileDestroyed:
		return "destroyed"
	default:
		return "unknown(" + strconv.Itoa(int(e)) + ")"
	}
}

// Listener receives lifecycle events. Listeners run with the registry locked
// and must not call back into it.
type Listener func(Event, *Tile)

// Registry owns every tile of one model container. All mutation goes through
// Get and Put. It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	tiles        map[string]*Tile
	listeners    map[int]Listener
	nextListener int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tiles:     make(map[string]*Tile),
		listeners: make(map[int]Listener),
	}
}

// Key returns the cell key of an already-snapped origin.
func Key(origin math.Vec3) string {
	buf := make([]byte, 0, 48)
	for i, v := range origin {
		if i > 0 {
			buf = append(buf, '_')
		}
		// +0 folds negative zero into zero.
		buf = strconv.AppendFloat(buf, v+0, 'g', -1, 64)
	}
	return string(buf)
}

// Get returns the tile for origin and adds a reference to it, creating the
// tile when it does not exist yet.
func (r *Registry) Get(origin math.Vec3) *Tile {
	key := Key(origin)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tile, ok := r.tiles[key]; ok {
		tile.refs.Add(1)
		return tile
	}

	tile := &Tile{ID: key, Origin: origin}
	tile.refs.Store(1)
	r.tiles[key] = tile

	instrumentTileCreated()
	logger.Debug("tile created", zap.String("tile", key))
	r.emit(TileCreated, tile)
	return tile
}

// Put releases one reference to tile and destroys the tile when none remain.
// Releasing a tile that is no longer registered is a no-op, so mesh and model
// teardown may race to release the same tile.
func (r *Registry) Put(tile *Tile) {
	if tile == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.tiles[tile.ID]; !ok || current != tile {
		return
	}

	refs := tile.refs.Add(-1)
	if refs < 0 {
		underflow(tile)
		tile.refs.Store(0)
		refs = 0
	}
	if refs > 0 {
		return
	}

	delete(r.tiles, tile.ID)

	instrumentTileDestroyed()
	logger.Debug("tile destroyed", zap.String("tile", tile.ID))
	r.emit(TileDestroyed, tile)
}

// Tile returns the registered tile with the given ID.
func (r *Registry) Tile(id string) (*Tile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tile, ok := r.tiles[id]
	return tile, ok
}

// Len returns the number of live tiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tiles)
}

// Tiles returns the live tiles sorted by ID.
func (r *Registry) Tiles() []*Tile {
	r.mu.Lock()
	out := make([]*Tile, 0, len(r.tiles))
	for _, tile := range r.tiles {
		out = append(out, tile)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe registers l for lifecycle events and returns a function that
// removes it again.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextListener
	r.nextListener++
	r.listeners[id] = l

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Registry) emit(e Event, tile *Tile) {
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		r.listeners[id](e, tile)
	}
}

// underflow reports a release without a matching Get.
func underflow(tile *Tile) {
	instrumentRefCountUnderflow()
	if strictRefCounts {
		panic("tiles: reference count underflow on tile " + tile.ID)
	}
	logger.Warn("tile reference count underflow", zap.String("tile", tile.ID))
}
