package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// Worker processes one work item. It returns the records the item produced,
// or an error. A failed item contributes no records.
type Worker[T, R any] func(ctx context.Context, item T) ([]R, error)

// ProgressCallback is invoked after every batch barrier.
type ProgressCallback func(Progress)

// Runner executes a worker over a list of items in fixed-size batches.
// Items within a batch run concurrently; batches run strictly one after
// another with a pause in between. A Runner holds no per-run state and can
// be reused.
type Runner[T, R any] struct {
	stage      string
	logger     *slog.Logger
	pacer      Pacer
	metrics    *observability.Metrics
	onProgress ProgressCallback
	identify   func(T) string
}

// NewRunner creates a Runner for the named stage.
func NewRunner[T, R any](stage string, logger *slog.Logger) *Runner[T, R] {
	return &Runner[T, R]{
		stage:    stage,
		logger:   logger.With("component", "runner", "stage", stage),
		pacer:    SleepPacer{},
		identify: func(item T) string { return fmt.Sprint(item) },
	}
}

// SetPacer replaces the inter-batch pacer.
func (r *Runner[T, R]) SetPacer(p Pacer) {
	if p != nil {
		r.pacer = p
	}
}

// SetMetrics attaches metrics collection.
func (r *Runner[T, R]) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// OnProgress registers a callback invoked after each batch.
func (r *Runner[T, R]) OnProgress(cb ProgressCallback) {
	r.onProgress = cb
}

// SetIdentify sets how items are named in logs and errors.
func (r *Runner[T, R]) SetIdentify(fn func(T) string) {
	if fn != nil {
		r.identify = fn
	}
}

// Run partitions items into batches of batchSize and runs worker on every
// item. It waits for the whole batch before pausing for delay and starting
// the next one. There is no pause after the last batch.
//
// Per-item failures, including panics, are logged and recorded in the
// result; they are never returned. Run only fails when its arguments are
// invalid, and in that case no worker is invoked.
func (r *Runner[T, R]) Run(ctx context.Context, items []T, worker Worker[T, R], batchSize int, delay time.Duration) (*Result[R], error) {
	if batchSize < 1 {
		return nil, &types.ConfigError{Field: "batch_size", Value: batchSize, Err: types.ErrInvalidBatchSize}
	}
	if delay < 0 {
		return nil, &types.ConfigError{Field: "inter_batch_delay", Value: delay, Err: types.ErrInvalidDelay}
	}
	if worker == nil {
		return nil, &types.ConfigError{Field: "worker", Value: nil, Err: types.ErrNilWorker}
	}

	result := newResult[R](len(items))
	if len(items) == 0 {
		r.logger.Info("no items to process")
		return result, nil
	}

	totalBatches := (len(items) + batchSize - 1) / batchSize
	start := time.Now()

	r.logger.Info("run starting",
		"items", len(items),
		"batch_size", batchSize,
		"batches", totalBatches,
		"delay", delay,
	)

	for b := 0; b < totalBatches; b++ {
		lo := b * batchSize
		hi := min(lo+batchSize, len(items))

		batchStart := time.Now()
		r.runBatch(ctx, b, lo, items[lo:hi], worker, result)
		result.Batches++
		r.metrics.BatchFinished(r.stage, time.Since(batchStart))

		processed := hi
		failed := result.failedUpTo(hi)
		r.logger.Info("batch complete",
			"batch", b+1,
			"of", totalBatches,
			"processed", processed,
			"failed", failed,
			"duration", time.Since(batchStart),
		)
		if r.onProgress != nil {
			r.onProgress(Progress{
				Stage:        r.stage,
				Batch:        b + 1,
				TotalBatches: totalBatches,
				Processed:    processed,
				Total:        len(items),
				Failed:       failed,
				Elapsed:      time.Since(start),
			})
		}

		if b < totalBatches-1 {
			r.pacer.Wait(ctx, delay)
			result.Delays++
		}
	}

	result.Elapsed = time.Since(start)
	r.logger.Info("run finished",
		"items", len(items),
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
		"records", result.Len(),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// runBatch launches one goroutine per item and blocks until all of them
// return. Each goroutine writes only its own slot.
func (r *Runner[T, R]) runBatch(ctx context.Context, batch, offset int, items []T, worker Worker[T, R], result *Result[R]) {
	var g errgroup.Group
	g.SetLimit(len(items))

	for i, item := range items {
		slot := offset + i
		g.Go(func() error {
			r.metrics.ItemStarted(r.stage)
			records, err := r.invoke(ctx, worker, item)
			if err != nil {
				itemErr := &types.ItemError{
					Item:  r.identify(item),
					Batch: batch,
					Index: slot,
					Err:   err,
				}
				result.Errors[slot] = itemErr
				r.metrics.ItemFinished(r.stage, 0, err)
				r.logger.Warn("item failed",
					"item", itemErr.Item,
					"batch", batch,
					"index", slot,
					"error", err,
				)
				return nil
			}
			result.Slots[slot] = records
			r.metrics.ItemFinished(r.stage, len(records), nil)
			return nil
		})
	}

	// Goroutines never return an error; Wait is purely the barrier.
	_ = g.Wait()
}

// invoke calls the worker, converting a panic into an error.
func (r *Runner[T, R]) invoke(ctx context.Context, worker Worker[T, R], item T) (records []R, err error) {
	defer func() {
		if v := recover(); v != nil {
			records = nil
			err = &types.PanicError{Value: v}
		}
	}()
	return worker(ctx, item)
}
