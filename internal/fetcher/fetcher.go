package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// Fetcher retrieves a page by URL.
type Fetcher interface {
	// Fetch retrieves the content at rawURL.
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Session is an isolated browser session owned by a single work item.
// Sessions are never shared between items.
type Session interface {
	Navigate(ctx context.Context, rawURL string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	PressEnter(ctx context.Context) error

	// WaitLoad waits for the page to finish loading after a navigation
	// triggered by an interaction.
	WaitLoad(ctx context.Context, timeout time.Duration) error

	URL() string
	Snapshot(ctx context.Context) (*types.Page, error)

	// Close releases the page and the browser. Failures are returned as
	// *types.CleanupError values, joined.
	Close() error
}

// SessionFactory opens a fresh session for one work item.
type SessionFactory interface {
	Open(ctx context.Context, item string) (Session, error)
}

// Release closes s and logs every cleanup failure. It never returns an
// error so that a failed close cannot replace the item's own outcome.
func Release(s Session, item string, logger *slog.Logger, metrics *observability.Metrics) {
	err := s.Close()
	if err == nil {
		return
	}

	for _, e := range flatten(err) {
		var cleanupErr *types.CleanupError
		if errors.As(e, &cleanupErr) {
			metrics.CleanupFailed(cleanupErr.Resource)
			logger.Warn("session cleanup failed",
				"item", item,
				"resource", cleanupErr.Resource,
				"error", cleanupErr.Err,
			)
			continue
		}
		metrics.CleanupFailed("session")
		logger.Warn("session cleanup failed", "item", item, "error", e)
	}
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
