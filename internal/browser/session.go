// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Session is one browser tab. It implements automation.Page.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ automation.Page = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// Close releases the tab.
func (s *Session) Close() {
	s.cancel()
}

// query translates a Selector into a chromedp query and its lookup option.
func query(sel automation.Selector) (string, chromedp.QueryOption) {
	switch sel.By {
	case automation.ByID:
		return "[id=" + strconv.Quote(sel.Query) + "]", chromedp.ByQuery
	case automation.ByName:
		return "[name=" + strconv.Quote(sel.Query) + "]", chromedp.ByQuery
	case automation.ByXPath:
		return sel.Query, chromedp.BySearch
	default:
		return sel.Query, chromedp.ByQuery
	}
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", automation.ErrTimeout, err)
	default:
		return err
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// find resolves sel once without waiting.
func (s *Session) find(ctx context.Context, sel automation.Selector) ([]cdp.NodeID, error) {
	q, by := query(sel)
	var nodes []*cdp.Node
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Nodes(q, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("lookup of %s failed: %w", sel, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", automation.ErrElementNotFound, sel)
	}
	return []cdp.NodeID{nodes[0].NodeID}, nil
}

// Fill clears the element and types value into it.
func (s *Session) Fill(ctx context.Context, sel automation.Selector, value string) error {
	ids, err := s.find(ctx, sel)
	if err != nil {
		return err
	}
	err = s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", sel, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, sel automation.Selector) error {
	ids, err := s.find(ctx, sel)
	if err != nil {
		return err
	}
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(ids, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("failed to click %s: %w", sel, err)
	}
	return nil
}

func (s *Session) WaitPresent(ctx context.Context, sel automation.Selector, timeout time.Duration) error {
	q, by := query(sel)
	if err := s.run(ctx, timeout, chromedp.WaitReady(q, by)); err != nil {
		return fmt.Errorf("waiting for %s: %w", sel, err)
	}
	return nil
}

func (s *Session) WaitClickable(ctx context.Context, sel automation.Selector, timeout time.Duration) error {
	q, by := query(sel)
	if err := s.run(ctx, timeout, chromedp.WaitVisible(q, by), chromedp.WaitEnabled(q, by)); err != nil {
		return fmt.Errorf("waiting for %s to be clickable: %w", sel, err)
	}
	return nil
}

// CurrentURL returns the location of the tab.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *Session) WaitURL(ctx context.Context, match func(url string) bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		loc, err := s.CurrentURL(ctx)
		if err != nil && !errors.Is(err, automation.ErrTimeout) {
			return err
		}
		if err == nil && match(loc) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: url still %q", automation.ErrTimeout, loc)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) Snapshot(ctx context.Context) (automation.Snapshot, error) {
	var snap automation.Snapshot
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Location(&snap.URL),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return automation.Snapshot{}, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return snap, nil
}

func (s *Session) ClearCookies(ctx context.Context) error {
	if err := s.run(ctx, s.cfg.ActionTimeout, network.ClearBrowserCookies()); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}
