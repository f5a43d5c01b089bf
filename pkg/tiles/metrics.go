package tiles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tilesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bimtiles_tiles_active",
		Help: "The number of live tiles across all registries.",
	})

	tilesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bimtiles_tiles_created_total",
		Help: "The total number of tiles created.",
	})

	tilesDestroyedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bimtiles_tiles_destroyed_total",
		Help: "The total number of tiles destroyed.",
	})

	tileRefCountUnderflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bimtiles_tile_refcount_underflow_total",
		Help: "The number of tile releases without a matching acquire.",
	})
)

func instrumentTileCreated() {
	tilesActive.Inc()
	tilesCreatedTotal.Inc()
}

func instrumentTileDestroyed() {
	tilesActive.Dec()
	tilesDestroyedTotal.Inc()
}

func instrumentRefCountUnderflow() {
	tileRefCountUnderflowTotal.Inc()
}
