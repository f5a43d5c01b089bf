package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/bimtiles/pkg/geometry"
)

func triangle(id string) geometry.Params {
	return geometry.Params{
		ID:        id,
		Primitive: geometry.PrimitiveTriangles,
		Positions: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:   []uint32{0, 1, 2},
	}
}

func TestRunSkipsInvalid(t *testing.T) {
	items := []geometry.Params{
		triangle("a"),
		{ID: "no-positions", Primitive: geometry.PrimitiveTriangles},
		triangle("b"),
		{ID: "bad-index", Primitive: geometry.PrimitiveLines, Positions: []float64{0, 0, 0, 1, 1, 1}, Indices: []uint32{0, 7}},
		triangle("c"),
	}

	report := Run(context.Background(), items, Options{Workers: 2})

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Skipped)

	require.Len(t, report.Results, len(items))
	for i, res := range report.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, items[i].ID, res.ID)
	}
	assert.ErrorIs(t, report.Results[1].Err, geometry.ErrMissingPositions)
	assert.ErrorIs(t, report.Results[3].Err, geometry.ErrIndexOutOfRange)

	var ids []string
	for _, c := range report.Compressed() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	err := report.Err()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestRunAllValid(t *testing.T) {
	items := make([]geometry.Params, 100)
	for i := range items {
		items[i] = triangle(fmt.Sprintf("g%03d", i))
	}

	var mu sync.Mutex
	var calls, last int
	report := Run(context.Background(), items, Options{
		Workers: 4,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			assert.Equal(t, 100, total)
			if done > last {
				last = done
			}
		},
	})

	assert.Equal(t, 100, report.Succeeded)
	assert.NoError(t, report.Err())
	assert.Equal(t, 100, calls)
	assert.Equal(t, 100, last)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []geometry.Params{triangle("a"), triangle("b")}
	report := Run(ctx, items, DefaultOptions())

	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)
	for _, res := range report.Results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRunEmpty(t *testing.T) {
	report := Run(context.Background(), nil, DefaultOptions())
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
}
