package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T, metrics *observability.Metrics) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Browser.RequestTimeout = 5 * time.Second
	f, err := NewHTTPFetcher(cfg, nil, metrics, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetcher_Plain(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><h1 class='title'>Dune</h1></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	page, err := f.Fetch(context.Background(), srv.URL+"/book")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "Dune")
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, config.DefaultConfig().Browser.UserAgents, gotUA)
	assert.Equal(t, "http", f.Type())
}

func TestHTTPFetcher_Encodings(t *testing.T) {
	const body = "<html><p>compressed</p></html>"

	tests := []struct {
		name     string
		encoding string
		encode   func(t *testing.T) []byte
	}{
		{
			name:     "gzip",
			encoding: "gzip",
			encode: func(t *testing.T) []byte {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				_, err := zw.Write([]byte(body))
				require.NoError(t, err)
				require.NoError(t, zw.Close())
				return buf.Bytes()
			},
		},
		{
			name:     "brotli",
			encoding: "br",
			encode: func(t *testing.T) []byte {
				var buf bytes.Buffer
				bw := brotli.NewWriter(&buf)
				_, err := bw.Write([]byte(body))
				require.NoError(t, err)
				require.NoError(t, bw.Close())
				return buf.Bytes()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.encode(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
				w.Header().Set("Content-Encoding", tt.encoding)
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			page, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, body, string(page.Body))
		})
	}
}

func TestHTTPFetcher_ErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "no such book", http.StatusNotFound)
		case "/slow-down":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	metrics := observability.NewMetrics(testLogger())
	f := newTestFetcher(t, metrics)
	ctx := context.Background()

	_, err := f.Fetch(ctx, srv.URL+"/missing")
	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, fe.Error(), "no such book")

	_, err = f.Fetch(ctx, srv.URL+"/slow-down")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)

	_, err = f.Fetch(ctx, srv.URL+"/broken")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)

	_, err = f.Fetch(ctx, srv.URL+"/empty")
	assert.ErrorIs(t, err, types.ErrEmptyResponse)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPResponses.WithLabelValues("4xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPResponses.WithLabelValues("5xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPResponses.WithLabelValues("2xx")))
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(t, nil).Fetch(context.Background(), "http://[::1")
	assert.ErrorIs(t, err, types.ErrInvalidURL)
}

func TestHTTPFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, nil)
	code, err := f.Status(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, err = f.Status(context.Background(), srv.URL+"/gone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, code)
}

func TestHTTPFetcher_BodyLimit(t *testing.T) {
	page := strings.Repeat("a", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/big" {
			_, _ = w.Write([]byte(page + "b"))
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Fetcher.MaxBodySize = 1024
	f, err := NewHTTPFetcher(cfg, nil, nil, testLogger())
	require.NoError(t, err)
	defer f.Close()

	got, err := f.Fetch(context.Background(), srv.URL+"/exact")
	require.NoError(t, err)
	assert.Len(t, got.Body, 1024)

	_, err = f.Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, types.ErrBodyTooLarge)
}

func TestRandomUserAgent(t *testing.T) {
	assert.Equal(t, defaultUserAgent, RandomUserAgent(nil))

	agents := []string{"a", "b", "c"}
	for range 20 {
		assert.Contains(t, agents, RandomUserAgent(agents))
	}
}

func TestNewProfile(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	cfg.ViewportWidth = 0

	p := NewProfile(&cfg)
	assert.Equal(t, 1920, p.ViewportWidth)
	assert.Equal(t, 1080, p.ViewportHeight)
	assert.Equal(t, "1920,1080", p.WindowSize())
	assert.True(t, p.Stealth)
	assert.Contains(t, cfg.UserAgents, p.UserAgent)
}

func TestProxyManager(t *testing.T) {
	assert.Nil(t, NewProxyManager(&config.ProxyConfig{}, testLogger()))

	var nilPM *ProxyManager
	assert.Nil(t, nilPM.Next())
	assert.Zero(t, nilPM.Count())

	pm := NewProxyManager(&config.ProxyConfig{
		Enabled:  true,
		Rotation: "round_robin",
		URLs:     []string{"http://p1:8080", "::bad::", "http://p2:8080"},
	}, testLogger())
	require.NotNil(t, pm)
	assert.Equal(t, 2, pm.Count())

	var hosts []string
	for range 4 {
		hosts = append(hosts, pm.Next().Host)
	}
	assert.Equal(t, []string{"p1:8080", "p2:8080", "p1:8080", "p2:8080"}, hosts)

	u, err := pm.ProxyFunc()(nil)
	require.NoError(t, err)
	assert.Equal(t, "p1:8080", u.Host)
}

type fakeSession struct {
	closeErr error
	closed   int
}

func (s *fakeSession) Navigate(context.Context, string) error                    { return nil }
func (s *fakeSession) WaitVisible(context.Context, string, time.Duration) error  { return nil }
func (s *fakeSession) Click(context.Context, string, time.Duration) error        { return nil }
func (s *fakeSession) Type(context.Context, string, string, time.Duration) error { return nil }
func (s *fakeSession) PressEnter(context.Context) error                          { return nil }
func (s *fakeSession) WaitLoad(context.Context, time.Duration) error             { return nil }
func (s *fakeSession) URL() string                                               { return "" }
func (s *fakeSession) Snapshot(context.Context) (*types.Page, error)             { return nil, nil }

func (s *fakeSession) Close() error {
	s.closed++
	return s.closeErr
}

func TestRelease(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	metrics := observability.NewMetrics(logger)

	s := &fakeSession{closeErr: errors.Join(
		&types.CleanupError{Resource: "page", Item: "978", Err: errors.New("target closed")},
		&types.CleanupError{Resource: "browser", Item: "978", Err: errors.New("process gone")},
	)}
	Release(s, "978", logger, metrics)

	assert.Equal(t, 1, s.closed)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "session cleanup failed"))
	assert.Contains(t, out, "resource=page")
	assert.Contains(t, out, "resource=browser")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CleanupErrors.WithLabelValues("page")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CleanupErrors.WithLabelValues("browser")))
}

func TestRelease_CleanAndPlainErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Release(&fakeSession{}, "1", logger, nil)
	assert.Empty(t, buf.String())

	Release(&fakeSession{closeErr: errors.New("boom")}, "2", logger, nil)
	assert.Contains(t, buf.String(), "boom")
}
