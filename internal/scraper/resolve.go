// Package scraper implements the two stage workers: resolving an ISBN to
// its product page through the site search, and extracting the detail
// record from a product page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/bookgoat/internal/cache"
	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/fetcher"
	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// popupTimeout bounds the attempt to dismiss the site's consent pop-up.
const popupTimeout = 5 * time.Second

// Resolver finds the product page URL of an ISBN by driving the site's
// search box in a fresh browser session.
type Resolver struct {
	sessions       fetcher.SessionFactory
	selectors      *config.SelectorSet
	baseURL        string
	elementTimeout time.Duration
	navTimeout     time.Duration
	noCache        []string
	cache          cache.Cache
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewResolver creates a Resolver. Its Resolve method is the Stage A worker.
func NewResolver(cfg *config.Config, selectors *config.SelectorSet, sessions fetcher.SessionFactory, logger *slog.Logger) *Resolver {
	return &Resolver{
		sessions:       sessions,
		selectors:      selectors,
		baseURL:        cfg.Site.BaseURL,
		elementTimeout: cfg.Browser.ElementTimeout,
		navTimeout:     cfg.Browser.RequestTimeout,
		noCache:        cfg.Engine.ExcludeURLSubstrings,
		logger:         logger.With("component", "resolver"),
	}
}

// SetCache enables the ISBN to URL cache.
func (r *Resolver) SetCache(c cache.Cache) {
	r.cache = c
}

// SetMetrics sets the metrics used for cleanup failures.
func (r *Resolver) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Resolve returns a single {isbn, url} record. The URL is wherever the
// search lands; a failed search lands on a results page, which the detail
// stage filters out.
func (r *Resolver) Resolve(ctx context.Context, isbn string) ([]*types.Record, error) {
	if url, ok := r.cached(ctx, isbn); ok {
		return []*types.Record{urlRecord(isbn, url)}, nil
	}

	s, err := r.sessions.Open(ctx, isbn)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer fetcher.Release(s, isbn, r.logger, r.metrics)

	r.logger.Info("navigating to search page", "isbn", isbn, "url", r.baseURL)
	if err := navigate(ctx, s, r.baseURL, r.navTimeout); err != nil {
		return nil, err
	}

	dismissPopup(ctx, s, r.selectors.CloseButton, isbn, r.logger)

	if err := s.WaitVisible(ctx, r.selectors.SearchBox, r.elementTimeout); err != nil {
		return nil, fmt.Errorf("search box: %w", err)
	}
	if err := s.Click(ctx, r.selectors.SearchBox, r.elementTimeout); err != nil {
		return nil, fmt.Errorf("search box: %w", err)
	}
	if err := s.Type(ctx, r.selectors.SearchBox, isbn, r.elementTimeout); err != nil {
		return nil, fmt.Errorf("type isbn: %w", err)
	}

	if err := r.submit(ctx, s, isbn); err != nil {
		return nil, err
	}
	loadCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	err = s.WaitLoad(loadCtx, r.navTimeout)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("wait for results: %w", err)
	}

	url := s.URL()
	if url == "" {
		return nil, &types.FetchError{URL: r.baseURL, Err: types.ErrEmptyResponse}
	}
	r.logger.Info("search submitted", "isbn", isbn, "url", url)

	r.store(ctx, isbn, url)
	return []*types.Record{urlRecord(isbn, url)}, nil
}

// submit clicks the submit button, falling back to the Enter key.
func (r *Resolver) submit(ctx context.Context, s fetcher.Session, isbn string) error {
	err := s.WaitVisible(ctx, r.selectors.SubmitButton, r.elementTimeout)
	if err == nil {
		err = s.Click(ctx, r.selectors.SubmitButton, r.elementTimeout)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("submit search: %w", err)
	}

	r.logger.Warn("submit button failed, pressing enter", "isbn", isbn, "error", err)
	if enterErr := s.PressEnter(ctx); enterErr != nil {
		return fmt.Errorf("submit search: %w", errors.Join(err, enterErr))
	}
	return nil
}

func (r *Resolver) cached(ctx context.Context, isbn string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	url, err := r.cache.Get(ctx, isbn)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("cache lookup failed", "isbn", isbn, "error", err)
		}
		return "", false
	}
	r.logger.Debug("cache hit", "isbn", isbn, "url", url)
	return url, true
}

// store caches a resolution unless url is a failed-search page.
func (r *Resolver) store(ctx context.Context, isbn, url string) {
	if r.cache == nil {
		return
	}
	for _, sub := range r.noCache {
		if sub != "" && strings.Contains(url, sub) {
			return
		}
	}
	if err := r.cache.Set(ctx, isbn, url); err != nil {
		r.logger.Warn("cache store failed", "isbn", isbn, "error", err)
	}
}

func urlRecord(isbn, url string) *types.Record {
	rec := types.NewRecord(isbn)
	rec.Set("isbn", isbn)
	rec.Set("url", url)
	return rec
}

// dismissPopup tries to close the consent pop-up. Failure is logged and
// otherwise ignored.
func dismissPopup(ctx context.Context, s fetcher.Session, selector, item string, logger *slog.Logger) {
	if selector == "" {
		return
	}
	if err := s.Click(ctx, selector, popupTimeout); err != nil {
		logger.Warn("close button not found or click failed", "item", item, "error", err)
		return
	}
	logger.Debug("closed pop-up window", "item", item)
}

// navigate loads rawURL with the whole load bounded by timeout. A load cut
// off by the deadline is reported as types.ErrTimeout.
func navigate(ctx context.Context, s fetcher.Session, rawURL string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return deadlineErr(navCtx, rawURL, s.Navigate(navCtx, rawURL))
}

func deadlineErr(ctx context.Context, rawURL string, err error) error {
	if err == nil || errors.Is(err, types.ErrTimeout) || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	return &types.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", types.ErrTimeout, err)}
}
