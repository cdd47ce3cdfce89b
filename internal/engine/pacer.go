package engine

import (
	"context"
	"time"
)

// Pacer waits between batches.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration)
}

// SleepPacer waits on a timer and returns early if ctx is done.
type SleepPacer struct{}

func (SleepPacer) Wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
