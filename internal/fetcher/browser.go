package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/bookgoat/internal/automation"
	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// RodSessionFactory launches a dedicated Chromium process per session.
type RodSessionFactory struct {
	cfg    *config.BrowserConfig
	proxy  *ProxyManager
	logger *slog.Logger
}

// NewRodSessionFactory creates a session factory backed by go-rod.
func NewRodSessionFactory(cfg *config.BrowserConfig, proxy *ProxyManager, logger *slog.Logger) *RodSessionFactory {
	return &RodSessionFactory{
		cfg:    cfg,
		proxy:  proxy,
		logger: logger.With("component", "rod_sessions"),
	}
}

// Open launches a browser, opens a page and applies the session profile.
// On failure everything acquired so far is released before returning.
func (f *RodSessionFactory) Open(ctx context.Context, item string) (Session, error) {
	profile := NewProfile(f.cfg)

	l := f.launcher(profile)
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &rodSession{
		item:     item,
		launcher: l,
		browser:  browser,
		logger:   f.logger,
	}

	var page *rod.Page
	if profile.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = page
	s.auto = automation.NewBrowserAutomation(page, f.logger)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      profile.UserAgent,
		AcceptLanguage: profile.Language,
	}); err != nil {
		f.logger.Warn("failed to set user agent", "item", item, "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  profile.ViewportWidth,
		Height: profile.ViewportHeight,
	}); err != nil {
		f.logger.Warn("failed to set viewport", "item", item, "error", err)
	}

	f.logger.Debug("session opened", "item", item, "user_agent", profile.UserAgent)
	return s, nil
}

func (f *RodSessionFactory) launcher(profile Profile) *launcher.Launcher {
	l := launcher.New().
		Headless(f.cfg.Headless).
		Leakless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", profile.WindowSize())

	if f.cfg.Bin != "" {
		l = l.Bin(f.cfg.Bin)
	}
	if proxyURL := f.proxy.Next(); proxyURL != nil {
		l = l.Proxy(proxyURL.String())
	}
	return l
}

// rodSession is one browser process with one page.
type rodSession struct {
	item     string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	auto     *automation.BrowserAutomation
	logger   *slog.Logger
}

func (s *rodSession) Navigate(ctx context.Context, rawURL string) error {
	if err := s.page.Context(ctx).Navigate(rawURL); err != nil {
		return &types.FetchError{URL: rawURL, Err: timeoutErr(err)}
	}
	if err := s.page.Context(ctx).WaitLoad(); err != nil {
		return &types.FetchError{URL: rawURL, Err: timeoutErr(err)}
	}
	return nil
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return timeoutErr(s.auto.WaitVisible(ctx, selector, timeout))
}

func (s *rodSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return timeoutErr(s.auto.Click(ctx, selector, timeout))
}

func (s *rodSession) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	return timeoutErr(s.auto.TypeText(ctx, selector, text, timeout))
}

func (s *rodSession) PressEnter(ctx context.Context) error {
	return timeoutErr(s.auto.PressEnter(ctx))
}

func (s *rodSession) WaitLoad(ctx context.Context, timeout time.Duration) error {
	return timeoutErr(s.auto.WaitForNavigation(ctx, timeout))
}

func (s *rodSession) URL() string {
	return s.auto.CurrentURL()
}

func (s *rodSession) Snapshot(ctx context.Context) (*types.Page, error) {
	start := time.Now()
	html, err := s.auto.HTML(ctx)
	if err != nil {
		return nil, &types.FetchError{URL: s.URL(), Err: err}
	}
	u := s.URL()
	return types.NewBrowserPage(u, u, []byte(html), time.Since(start)), nil
}

// Close closes the page, then the browser, then removes the launcher's
// profile directory. All steps run even if an earlier one fails.
func (s *rodSession) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, &types.CleanupError{Resource: "page", Item: s.item, Err: err})
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, &types.CleanupError{Resource: "browser", Item: s.item, Err: err})
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

// timeoutErr tags context deadline failures with types.ErrTimeout.
func timeoutErr(err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return err
}
