package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserAutomation handles element-level interactions on a page. Every
// call is bounded by both the caller's context and an explicit timeout.
type BrowserAutomation struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewBrowserAutomation wraps a Rod page with automation helpers.
func NewBrowserAutomation(page *rod.Page, logger *slog.Logger) *BrowserAutomation {
	return &BrowserAutomation{
		page:   page,
		logger: logger.With("component", "browser_automation"),
	}
}

// element waits for selector to appear and returns it bound to tctx.
func (ba *BrowserAutomation) element(tctx context.Context, selector string) (*rod.Element, error) {
	el, err := ba.page.Context(tctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el, nil
}

// Click clicks an element matched by the CSS selector.
func (ba *BrowserAutomation) Click(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := ba.element(tctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// TypeText replaces the contents of an input field with text.
func (ba *BrowserAutomation) TypeText(ctx context.Context, selector, text string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := ba.element(tctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		ba.logger.Debug("select text failed, typing anyway", "selector", selector, "error", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// WaitVisible waits until the element matched by selector is visible.
func (ba *BrowserAutomation) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := ba.element(tctx, selector)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

// PressEnter sends the Enter key to the focused element.
func (ba *BrowserAutomation) PressEnter(ctx context.Context) error {
	return ba.page.Context(ctx).Keyboard.Press(input.Enter)
}

// WaitForNavigation waits for the page to settle after a navigation.
func (ba *BrowserAutomation) WaitForNavigation(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ba.page.Context(tctx).WaitLoad(); err != nil {
		return err
	}
	return ba.page.Context(tctx).WaitStable(500 * time.Millisecond)
}

// CurrentURL returns the page's current URL.
func (ba *BrowserAutomation) CurrentURL() string {
	info, err := ba.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// HTML returns the page's current rendered HTML.
func (ba *BrowserAutomation) HTML(ctx context.Context) (string, error) {
	return ba.page.Context(ctx).HTML()
}
