package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/fetcher"
	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/parser"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// DetailScraper extracts one detail record per product page URL. Pages are
// rendered in a fresh browser session, or fetched over plain HTTP when a
// Fetcher is set.
type DetailScraper struct {
	sessions       fetcher.SessionFactory
	pages          fetcher.Fetcher
	parser         parser.Parser
	selectors      *config.SelectorSet
	navTimeout     time.Duration
	ratingsTimeout time.Duration
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewDetailScraper creates a DetailScraper. Its Scrape method is the
// Stage B worker.
func NewDetailScraper(cfg *config.Config, selectors *config.SelectorSet, p parser.Parser, logger *slog.Logger) *DetailScraper {
	return &DetailScraper{
		parser:         p,
		selectors:      selectors,
		navTimeout:     cfg.Browser.RequestTimeout,
		ratingsTimeout: cfg.Browser.RatingsTimeout,
		logger:         logger.With("component", "detail_scraper"),
	}
}

// SetSessions sets the browser session factory.
func (d *DetailScraper) SetSessions(f fetcher.SessionFactory) {
	d.sessions = f
}

// SetFetcher switches page retrieval to f instead of browser sessions.
func (d *DetailScraper) SetFetcher(f fetcher.Fetcher) {
	d.pages = f
}

// SetMetrics sets the metrics used for cleanup failures.
func (d *DetailScraper) SetMetrics(m *observability.Metrics) {
	d.metrics = m
}

// Scrape returns the detail record for rawURL.
func (d *DetailScraper) Scrape(ctx context.Context, rawURL string) ([]*types.Record, error) {
	var (
		page *types.Page
		err  error
	)
	switch {
	case d.pages != nil:
		page, err = d.pages.Fetch(ctx, rawURL)
	case d.sessions != nil:
		page, err = d.render(ctx, rawURL)
	default:
		return nil, errors.New("detail scraper has no page source")
	}
	if err != nil {
		return nil, err
	}

	rec, err := d.parser.Parse(page)
	if err != nil {
		return nil, err
	}
	rec.Source = rawURL

	d.logger.Info("processing book", "url", rawURL, "title", rec.Value("title_name"))
	return []*types.Record{rec}, nil
}

// render loads rawURL in a dedicated session and waits for the ratings
// element, which is the last part of the page to render.
func (d *DetailScraper) render(ctx context.Context, rawURL string) (*types.Page, error) {
	s, err := d.sessions.Open(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer fetcher.Release(s, rawURL, d.logger, d.metrics)

	if err := navigate(ctx, s, rawURL, d.navTimeout); err != nil {
		return nil, err
	}

	dismissPopup(ctx, s, d.selectors.CloseButton, rawURL, d.logger)

	if d.selectors.Ratings != "" {
		if err := s.WaitVisible(ctx, d.selectors.Ratings, d.ratingsTimeout); err != nil {
			return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("ratings not rendered: %w", err)}
		}
	}

	snapCtx, cancel := context.WithTimeout(ctx, d.navTimeout)
	defer cancel()
	page, err := s.Snapshot(snapCtx)
	if err != nil {
		return nil, deadlineErr(snapCtx, rawURL, err)
	}
	page.URL = rawURL
	return page, nil
}
