// Package batch compresses many geometries in parallel. A geometry that fails
// validation is reported and skipped; it never stops the batch.
package batch

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/bimtiles/internal/logger"
	"github.com/Faultbox/bimtiles/pkg/geometry"
)

// Options configures a batch run.
type Options struct {
	Workers     int // 0 means GOMAXPROCS
	Compression geometry.Options

	// Progress, if set, is called after each geometry with the number
	// finished so far. It may be called from several goroutines.
	Progress func(done, total int)
}

// DefaultOptions returns options using every CPU and default compression.
func DefaultOptions() Options {
	return Options{Compression: geometry.DefaultOptions()}
}

// Result holds the outcome of compressing one geometry.
type Result struct {
	Index      int
	ID         string
	Compressed *geometry.Compressed
	Err        error
}

// OK reports whether the geometry was compressed.
func (r Result) OK() bool {
	return r.Err == nil && r.Compressed != nil
}

// Report summarizes a batch run. Results are in input order.
type Report struct {
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int // not started because the context was canceled
	Elapsed   time.Duration
}

// Err combines the errors of every failed or skipped geometry, or nil.
func (r Report) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err)
	}
	return err
}

// Compressed returns the successful records in input order.
func (r Report) Compressed() []*geometry.Compressed {
	out := make([]*geometry.Compressed, 0, r.Succeeded)
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res.Compressed)
		}
	}
	return out
}

// Run compresses items using a bounded worker pool. Canceling ctx stops new
// geometries from starting; those already running finish.
func Run(ctx context.Context, items []geometry.Params, opts Options) Report {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	total := len(items)
	results := make([]Result, total)
	started := make([]bool, total)
	var finished atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			results[i] = compress(i, items[i], opts.Compression)
			n := finished.Add(1)
			if opts.Progress != nil {
				opts.Progress(int(n), total)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Results: results}
	for i := range results {
		switch {
		case !started[i]:
			results[i] = Result{Index: i, ID: items[i].ID, Err: ctx.Err()}
			report.Skipped++
		case results[i].Err != nil:
			report.Failed++
		default:
			report.Succeeded++
		}
	}
	report.Elapsed = time.Since(start)

	logger.Debug("batch finished",
		zap.Int("total", total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Elapsed))

	return report
}

func compress(index int, p geometry.Params, opts geometry.Options) Result {
	c, err := geometry.CompressWithOptions(p, opts)
	if err != nil {
		logger.Warn("skipping geometry",
			zap.Int("index", index),
			zap.String("id", p.ID),
			zap.Error(err))
		return Result{Index: index, ID: p.ID, Err: err}
	}
	return Result{Index: index, ID: p.ID, Compressed: c}
}
