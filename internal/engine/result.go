package engine

import (
	"errors"
	"time"

	"github.com/IshaanNene/bookgoat/internal/types"
)

// Result is the aggregated outcome of a Runner.Run call. It holds one slot
// per input item, in input order. A failed item leaves an empty slot and a
// non-nil entry in Errors.
type Result[R any] struct {
	Slots   [][]R
	Errors  []error
	Batches int
	Delays  int
	Elapsed time.Duration
}

func newResult[R any](n int) *Result[R] {
	return &Result[R]{
		Slots:  make([][]R, n),
		Errors: make([]error, n),
	}
}

// Records returns every record from every slot, in input order.
func (r *Result[R]) Records() []R {
	out := make([]R, 0, r.Len())
	for _, slot := range r.Slots {
		out = append(out, slot...)
	}
	return out
}

// Len returns the total number of records.
func (r *Result[R]) Len() int {
	n := 0
	for _, slot := range r.Slots {
		n += len(slot)
	}
	return n
}

// Failed returns the number of items that failed.
func (r *Result[R]) Failed() int {
	return r.failedUpTo(len(r.Errors))
}

// Succeeded returns the number of items that completed without error.
func (r *Result[R]) Succeeded() int {
	return len(r.Slots) - r.Failed()
}

// ItemErrors returns the item failures in input order.
func (r *Result[R]) ItemErrors() []*types.ItemError {
	var out []*types.ItemError
	for _, err := range r.Errors {
		var itemErr *types.ItemError
		if errors.As(err, &itemErr) {
			out = append(out, itemErr)
		}
	}
	return out
}

func (r *Result[R]) failedUpTo(n int) int {
	failed := 0
	for _, err := range r.Errors[:n] {
		if err != nil {
			failed++
		}
	}
	return failed
}

// Progress is reported after each batch.
type Progress struct {
	Stage        string
	Batch        int
	TotalBatches int
	Processed    int
	Total        int
	Failed       int
	Elapsed      time.Duration
}

// Percent returns the share of items processed so far.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) / float64(p.Total) * 100
}
