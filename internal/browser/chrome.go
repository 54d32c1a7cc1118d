// internal/browser/chrome.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// ChromeSession drives a single Chrome tab over the DevTools protocol.
type ChromeSession struct {
	// tabCtx carries the CDP target. It outlives every operational context.
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	actionTimeout   time.Duration
	pageLoadTimeout time.Duration
	logger          *zap.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

var _ Browser = (*ChromeSession)(nil)

// NewChromeSession launches Chrome and opens a tab. The browser process is
// tied to a detached copy of ctx, so only Quit shuts it down.
func NewChromeSession(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (*ChromeSession, error) {
	logger = logger.Named("chromedp")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), DefaultAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug("CDP error.", zap.String("detail", fmt.Sprintf(format, args...)))
		}),
	)

	// The first Run starts the browser and attaches to the tab. Stealth tasks
	// go in the same call so they are in place before the first navigation.
	if err := chromedp.Run(tabCtx, stealthTasks(cfg, logger)...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: could not start chrome: %w", ErrDriverSetup, err)
	}

	logger.Debug("Chrome started.", zap.Bool("headless", cfg.Headless))
	return &ChromeSession{
		tabCtx:        tabCtx,
		tabCancel:     tabCancel,
		allocCancel:   allocCancel,
		actionTimeout:   actionTimeout,
		pageLoadTimeout: pageLoadTimeout(cfg),
		logger:          logger,
	}, nil
}

// run executes actions against the tab, bounded by ctx and, when positive, timeout.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrClosed
	}

	opCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runCtx, cancel := CombineContext(s.tabCtx, opCtx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Navigate loads url and waits for the load event.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.pageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL reports the address of the page the tab is showing.
func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, s.actionTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read current url: %w", err)
	}
	return location, nil
}

// Refresh reloads the current page.
func (s *ChromeSession) Refresh(ctx context.Context) error {
	if err := s.run(ctx, s.pageLoadTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// FindElement queries the DOM once. AtLeast(0) stops chromedp from polling
// until a node shows up.
func (s *ChromeSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	sel, opt := chromeSelector(loc)

	var nodes []*cdp.Node
	if err := s.run(ctx, s.actionTimeout, chromedp.Nodes(sel, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return &chromeElement{session: s, node: nodes[0]}, nil
}

// WaitForElement polls until the element is present in the DOM or timeout elapses.
func (s *ChromeSession) WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	sel, opt := chromeSelector(loc)

	waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
	defer waitCancel()
	runCtx, cancel := CombineContext(s.tabCtx, waitCtx)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(runCtx, chromedp.Nodes(sel, &nodes, opt))
	switch {
	case err == nil && len(nodes) > 0:
		return &chromeElement{session: s, node: nodes[0]}, nil
	case errors.Is(waitCtx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, loc, timeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	default:
		return nil, fmt.Errorf("wait for %s: %w", loc, err)
	}
}

// Quit closes the tab and terminates the browser process.
func (s *ChromeSession) Quit() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Cancel on the first tab closes the whole browser gracefully.
		if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close chrome: %w", err)
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Chrome closed.")
	})
	return s.closeErr
}

// chromeSelector maps a Locator onto a chromedp selector and query option.
func chromeSelector(loc Locator) (string, chromedp.QueryOption) {
	switch loc.Kind {
	case ByID:
		return cssAttr("id", loc.Value), chromedp.ByQuery
	case ByXPath:
		return loc.Value, chromedp.BySearch
	default:
		return cssAttr("name", loc.Value), chromedp.ByQuery
	}
}

// chromeElement acts on a node through its DOM node id.
type chromeElement struct {
	session *ChromeSession
	node    *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.session.run(ctx, e.session.actionTimeout, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Type(ctx context.Context, text string) error {
	return e.session.run(ctx, e.session.actionTimeout, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, e.session.actionTimeout, chromedp.Click(e.ids(), chromedp.ByNodeID))
}
