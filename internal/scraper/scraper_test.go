package scraper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/bookgoat/internal/cache"
	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/fetcher"
	"github.com/IshaanNene/bookgoat/internal/parser"
	"github.com/IshaanNene/bookgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSession records the calls made on it. Selectors listed in fail
// return an error from WaitVisible and Click.
type fakeSession struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool
	navErr   error
	url      string
	html     string
	typed    string
	closeErr error
	closed   bool

	// hang makes the named call block until its context is done.
	hang map[string]bool
}

func (s *fakeSession) wait(ctx context.Context, call string) error {
	if !s.hang[call] {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Navigate(ctx context.Context, rawURL string) error {
	s.record("navigate " + rawURL)
	if s.navErr != nil {
		return s.navErr
	}
	if err := s.wait(ctx, "navigate"); err != nil {
		return err
	}
	if s.url == "" {
		s.url = rawURL
	}
	return nil
}

func (s *fakeSession) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	s.record("wait " + sel)
	if s.fail[sel] {
		return errors.New("not visible: " + sel)
	}
	return nil
}

func (s *fakeSession) Click(_ context.Context, sel string, _ time.Duration) error {
	s.record("click " + sel)
	if s.fail[sel] {
		return errors.New("not found: " + sel)
	}
	return nil
}

func (s *fakeSession) Type(_ context.Context, sel, text string, _ time.Duration) error {
	s.record("type " + sel)
	s.typed = text
	return nil
}

func (s *fakeSession) PressEnter(context.Context) error {
	s.record("enter")
	return nil
}

func (s *fakeSession) WaitLoad(context.Context, time.Duration) error {
	s.record("load")
	return nil
}

func (s *fakeSession) URL() string { return s.url }

func (s *fakeSession) Snapshot(ctx context.Context) (*types.Page, error) {
	s.record("snapshot")
	if err := s.wait(ctx, "snapshot"); err != nil {
		return nil, err
	}
	return types.NewBrowserPage(s.url, s.url, []byte(s.html), 0), nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return s.closeErr
}

type fakeFactory struct {
	session *fakeSession
	err     error
	opened  []string
}

func (f *fakeFactory) Open(_ context.Context, item string) (fetcher.Session, error) {
	f.opened = append(f.opened, item)
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type mapCache struct {
	data map[string]string
	sets int
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mapCache) Close() error { return nil }

func testSelectors() *config.SelectorSet {
	return &config.SelectorSet{
		CloseButton:  "button.close",
		SearchBox:    "input.search",
		SubmitButton: "button.submit",
		Ratings:      "div.rating",
		Fields: []config.FieldRule{
			{Name: "title_name", Selector: "h1", Required: true},
			{Name: "rating", Selector: "div.rating", Attribute: "aria-label"},
			{Name: "url", Type: config.RuleSourceURL},
		},
	}
}

func TestResolver_SearchFlow(t *testing.T) {
	cfg := config.DefaultConfig()
	s := &fakeSession{fail: map[string]bool{"button.close": true}}
	factory := &fakeFactory{session: s}

	// The search lands on the product page.
	s.url = "https://www.kobo.com/us/en/ebook/dune"

	r := NewResolver(cfg, testSelectors(), factory, testLogger())
	recs, err := r.Resolve(context.Background(), "9780441013593")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, []string{"isbn", "url"}, recs[0].Keys())
	assert.Equal(t, "9780441013593", recs[0].GetString("isbn"))
	assert.Equal(t, "https://www.kobo.com/us/en/ebook/dune", recs[0].GetString("url"))
	assert.Equal(t, "9780441013593", s.typed)
	assert.True(t, s.closed)
	assert.Equal(t, []string{"9780441013593"}, factory.opened)

	assert.Equal(t, []string{
		"navigate " + cfg.Site.BaseURL,
		"click button.close",
		"wait input.search",
		"click input.search",
		"type input.search",
		"wait button.submit",
		"click button.submit",
		"load",
	}, s.calls)
}

func TestResolver_SubmitFallsBackToEnter(t *testing.T) {
	s := &fakeSession{fail: map[string]bool{"button.submit": true}}
	r := NewResolver(config.DefaultConfig(), testSelectors(), &fakeFactory{session: s}, testLogger())

	_, err := r.Resolve(context.Background(), "1")
	require.NoError(t, err)
	assert.Contains(t, s.calls, "enter")
}

func TestResolver_Failures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		r := NewResolver(config.DefaultConfig(), testSelectors(), &fakeFactory{err: errors.New("no chromium")}, testLogger())
		_, err := r.Resolve(context.Background(), "1")
		assert.ErrorContains(t, err, "no chromium")
	})

	t.Run("navigate", func(t *testing.T) {
		s := &fakeSession{navErr: &types.FetchError{URL: "x", Err: types.ErrTimeout}}
		r := NewResolver(config.DefaultConfig(), testSelectors(), &fakeFactory{session: s}, testLogger())
		_, err := r.Resolve(context.Background(), "1")
		assert.ErrorIs(t, err, types.ErrTimeout)
		assert.True(t, s.closed, "session must be released on failure")
	})

	t.Run("search box", func(t *testing.T) {
		s := &fakeSession{fail: map[string]bool{"input.search": true}}
		r := NewResolver(config.DefaultConfig(), testSelectors(), &fakeFactory{session: s}, testLogger())
		_, err := r.Resolve(context.Background(), "1")
		assert.ErrorContains(t, err, "search box")
		assert.True(t, s.closed)
	})
}

func TestResolver_NavigationTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.RequestTimeout = 20 * time.Millisecond
	s := &fakeSession{hang: map[string]bool{"navigate": true}}
	r := NewResolver(cfg, testSelectors(), &fakeFactory{session: s}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), "1")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, types.ErrTimeout)
		var fe *types.FetchError
		assert.ErrorAs(t, err, &fe)
		assert.True(t, s.closed)
	case <-time.After(5 * time.Second):
		t.Fatal("Resolve did not return after the navigation deadline")
	}
}

func TestResolver_CleanupErrorDoesNotFailItem(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := &fakeSession{
		url:      "https://www.kobo.com/us/en/ebook/x",
		closeErr: &types.CleanupError{Resource: "browser", Item: "1", Err: errors.New("already exited")},
	}
	r := NewResolver(config.DefaultConfig(), testSelectors(), &fakeFactory{session: s}, logger)

	recs, err := r.Resolve(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Contains(t, buf.String(), "session cleanup failed")
}

func TestResolver_Cache(t *testing.T) {
	cfg := config.DefaultConfig()
	c := &mapCache{data: map[string]string{"111": "https://www.kobo.com/us/en/ebook/cached"}}

	factory := &fakeFactory{session: &fakeSession{url: "https://www.kobo.com/us/en/ebook/fresh"}}
	r := NewResolver(cfg, testSelectors(), factory, testLogger())
	r.SetCache(c)

	recs, err := r.Resolve(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, "https://www.kobo.com/us/en/ebook/cached", recs[0].GetString("url"))
	assert.Empty(t, factory.opened, "cache hit must not open a browser")

	_, err = r.Resolve(context.Background(), "222")
	require.NoError(t, err)
	assert.Equal(t, "https://www.kobo.com/us/en/ebook/fresh", c.data["222"])

	// failed searches are not cached
	factory.session = &fakeSession{url: "https://www.kobo.com/us/en/search?query=333"}
	_, err = r.Resolve(context.Background(), "333")
	require.NoError(t, err)
	assert.NotContains(t, c.data, "333")
	assert.Equal(t, 1, c.sets)
}

const detailHTML = `<html><body>
<h1> Dune </h1>
<div class="rating" aria-label="Rated 4.5 out of 5 stars"></div>
</body></html>`

func newDetailScraper(t *testing.T) *DetailScraper {
	t.Helper()
	sel := testSelectors()
	ex, err := parser.NewExtractor(sel.Fields, testLogger())
	require.NoError(t, err)
	return NewDetailScraper(config.DefaultConfig(), sel, ex, testLogger())
}

func TestDetailScraper_Browser(t *testing.T) {
	url := "https://www.kobo.com/us/en/ebook/dune"
	s := &fakeSession{html: detailHTML}
	d := newDetailScraper(t)
	d.SetSessions(&fakeFactory{session: s})

	recs, err := d.Scrape(context.Background(), url)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "Dune", rec.GetString("title_name"))
	assert.Equal(t, "Rated 4.5 out of 5 stars", rec.GetString("rating"))
	assert.Equal(t, url, rec.GetString("url"))
	assert.Equal(t, url, rec.Source)
	assert.True(t, s.closed)
	assert.Equal(t, []string{"navigate " + url, "click button.close", "wait div.rating", "snapshot"}, s.calls)
}

func TestDetailScraper_RatingsTimeout(t *testing.T) {
	s := &fakeSession{html: detailHTML, fail: map[string]bool{"div.rating": true}}
	d := newDetailScraper(t)
	d.SetSessions(&fakeFactory{session: s})

	_, err := d.Scrape(context.Background(), "https://www.kobo.com/us/en/ebook/dune")
	var fe *types.FetchError
	assert.ErrorAs(t, err, &fe)
	assert.True(t, s.closed)
}

func TestDetailScraper_Timeouts(t *testing.T) {
	for _, call := range []string{"navigate", "snapshot"} {
		t.Run(call, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Browser.RequestTimeout = 20 * time.Millisecond
			sel := testSelectors()
			ex, err := parser.NewExtractor(sel.Fields, testLogger())
			require.NoError(t, err)
			d := NewDetailScraper(cfg, sel, ex, testLogger())

			s := &fakeSession{html: detailHTML, hang: map[string]bool{call: true}}
			d.SetSessions(&fakeFactory{session: s})

			start := time.Now()
			_, err = d.Scrape(context.Background(), "https://www.kobo.com/us/en/ebook/stuck")
			assert.ErrorIs(t, err, types.ErrTimeout)
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.True(t, s.closed)
		})
	}
}

func TestDetailScraper_CancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSession{hang: map[string]bool{"navigate": true}}
	d := newDetailScraper(t)
	d.SetSessions(&fakeFactory{session: s})

	_, err := d.Scrape(ctx, "https://www.kobo.com/us/en/ebook/dune")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, types.ErrTimeout)
}

func TestDetailScraper_MissingRequiredField(t *testing.T) {
	s := &fakeSession{html: `<html><div class="rating"></div></html>`}
	d := newDetailScraper(t)
	d.SetSessions(&fakeFactory{session: s})

	_, err := d.Scrape(context.Background(), "https://www.kobo.com/us/en/ebook/none")
	assert.ErrorIs(t, err, types.ErrMissingField)
}

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*types.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return types.NewBrowserPage(rawURL, rawURL, []byte(f.body), 0), nil
}

func (f *fakeFetcher) Close() error { return nil }
func (f *fakeFetcher) Type() string { return "fake" }

func TestDetailScraper_HTTP(t *testing.T) {
	d := newDetailScraper(t)
	d.SetFetcher(&fakeFetcher{body: detailHTML})

	recs, err := d.Scrape(context.Background(), "https://www.kobo.com/us/en/ebook/dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", recs[0].GetString("title_name"))

	d.SetFetcher(&fakeFetcher{err: &types.FetchError{URL: "x", StatusCode: 404, Err: errors.New("HTTP 404")}})
	_, err = d.Scrape(context.Background(), "https://www.kobo.com/us/en/ebook/gone")
	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 404, fe.StatusCode)
}

func TestDetailScraper_NoSource(t *testing.T) {
	_, err := newDetailScraper(t).Scrape(context.Background(), "https://x")
	assert.Error(t, err)
}
