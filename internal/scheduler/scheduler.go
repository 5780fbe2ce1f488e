// Package scheduler implements the Batch Scheduler (C7): slices input
// rows into batches, drives a bounded worker pool over each batch, and
// reassembles results by row_index.
//
// Grounded on the teacher's cmd/batch.go processBatch: errgroup.WithContext
// plus g.SetLimit for bounded concurrency, atomic.Int64 counters, and
// per-row failure isolation (a worker's error never aborts the batch —
// it is captured into that row's Result, per spec §4.7/§7).
package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geo-orchestrator/internal/model"
	"github.com/sells-group/geo-orchestrator/internal/precision"
)

// GeocodeRowFunc geocodes one row, returning a Result tagged with its
// row_index. It must never panic across a goroutine boundary without
// recovering — the scheduler isolates a single row's failure, not a
// worker's crash.
type GeocodeRowFunc func(ctx context.Context, rowIndex int, row model.Row) model.Result

// BatchSummary is emitted after every batch completes (spec §4.7).
type BatchSummary struct {
	Index              int
	Size               int
	SuccessCount       int
	PrecisionHistogram map[model.PrecisionLevel]int
}

// ProgressSink receives scheduler progress events. RowCompleted is
// called from the worker goroutines, concurrently, so implementations
// must be safe for concurrent use; BatchCompleted is called from the
// goroutine running Run, after the batch's workers have finished.
type ProgressSink interface {
	RowCompleted(delta int)
	BatchCompleted(summary BatchSummary)
}

// NoopSink discards every event.
type NoopSink struct{}

func (NoopSink) RowCompleted(int)            {}
func (NoopSink) BatchCompleted(BatchSummary) {}

// Config parameterizes one Run.
type Config struct {
	BatchSize   int
	WorkerCount int
	Sink        ProgressSink
}

// Run partitions rows into contiguous batches of cfg.BatchSize,
// processes each batch with cfg.WorkerCount bounded parallelism, waits
// for every row of a batch before starting the next, and reassembles
// the output by row_index (spec §4.7).
func Run(ctx context.Context, rows []model.Row, cfg Config, geocode GeocodeRowFunc) []model.Result {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = len(rows)
		if cfg.BatchSize == 0 {
			cfg.BatchSize = 1
		}
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NoopSink{}
	}

	results := make([]model.Result, len(rows))

	for batchIndex, batchStart := 0, 0; batchStart < len(rows); batchIndex, batchStart = batchIndex+1, batchStart+cfg.BatchSize {
		batchEnd := batchStart + cfg.BatchSize
		if batchEnd > len(rows) {
			batchEnd = len(rows)
		}

		summary := runBatch(ctx, rows, batchStart, batchEnd, batchIndex, cfg.WorkerCount, geocode, sink, results)
		sink.BatchCompleted(summary)
	}

	return results
}

func runBatch(ctx context.Context, rows []model.Row, start, end, batchIndex, workerCount int, geocode GeocodeRowFunc, sink ProgressSink, results []model.Result) BatchSummary {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	var success atomic.Int64

	for i := start; i < end; i++ {
		rowIndex := i
		row := rows[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				results[rowIndex] = model.Result{
					Status:       model.StatusError,
					ErrorMessage: "cancelled",
					RowIndex:     rowIndex,
				}
				sink.RowCompleted(1)
				return nil
			default:
			}

			results[rowIndex] = safeGeocode(gctx, rowIndex, row, geocode)
			sink.RowCompleted(1)
			return nil
		})
	}

	// g.Wait() cannot itself return a non-nil error here since every
	// worker recovers into a Result instead of propagating; the call
	// still drains the pool.
	_ = g.Wait()

	histogram := make(map[model.PrecisionLevel]int)
	successCount := 0
	for i := start; i < end; i++ {
		r := results[i]
		if r.OK() {
			successCount++
			histogram[r.PrecisionLevel]++
			success.Add(1)
		}
	}

	return BatchSummary{
		Index:              batchIndex,
		Size:               end - start,
		SuccessCount:       successCount,
		PrecisionHistogram: histogram,
	}
}

// safeGeocode isolates a single row's panic or error into an ERROR
// Result (spec §7 "worker exceptions are never propagated out of the
// scheduler").
func safeGeocode(ctx context.Context, rowIndex int, row model.Row, geocode GeocodeRowFunc) (result model.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = model.Result{
				Status:       model.StatusError,
				ErrorMessage: "row panicked during geocoding",
				RowIndex:     rowIndex,
			}
		}
	}()
	result = geocode(ctx, rowIndex, row)
	result.RowIndex = rowIndex
	return result
}

// BestPrecisionSeen reports whether no result in results is strictly
// better than candidate under precision.Better, i.e. whether candidate
// is the best outcome seen (spec §8 property 6). It returns true for an
// empty results slice.
func BestPrecisionSeen(results []model.Result, candidate model.Result) bool {
	for _, r := range results {
		if precision.Better(r, candidate) {
			return false
		}
	}
	return true
}
