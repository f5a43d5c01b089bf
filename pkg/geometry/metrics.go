package geometry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	primitiveLabel = "primitive"
	kindLabel      = "kind"
)

var (
	geometriesCompressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bimtiles_geometries_compressed_total",
		Help: "The number of geometries compressed.",
	}, []string{primitiveLabel})

	geometryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bimtiles_geometry_errors_total",
		Help: "The number of geometries rejected for structural errors.",
	}, []string{kindLabel})
)

func instrumentCompressed(p Primitive) {
	geometriesCompressed.
		With(prometheus.Labels{primitiveLabel: p.String()}).
		Inc()
}

func instrumentError(err error) {
	geometryErrors.
		With(prometheus.Labels{kindLabel: ErrorKind(err)}).
		Inc()
}
