// internal/browser/playwright.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// PlaywrightSession drives a single Chromium page through the Playwright driver.
// Playwright calls do not take a context, so ctx is checked before each call
// and the action and page load timeouts are passed down as Playwright timeouts.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	actionTimeout   time.Duration
	pageLoadTimeout time.Duration
	logger          *zap.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

var _ Browser = (*PlaywrightSession)(nil)

// NewPlaywrightSession starts the Playwright driver and opens a page in Chromium.
// Browsers are expected to be installed already.
func NewPlaywrightSession(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (*PlaywrightSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger = logger.Named("playwright")

	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start playwright driver: %w", ErrDriverSetup, err)
	}

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     commandLineArgs(cfg),
		Timeout:  playwright.Float(60000),
	}
	if cfg.ExecPath != "" {
		launchOptions.ExecutablePath = playwright.String(cfg.ExecPath)
	}

	browser, err := pw.Chromium.Launch(launchOptions)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: failed to launch browser instance: %w", ErrDriverSetup, err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(cfg.IgnoreTLSErrors),
	}
	if cfg.UserAgent != "" {
		contextOptions.UserAgent = playwright.String(cfg.UserAgent)
	}
	if cfg.WindowSize.Width > 0 && cfg.WindowSize.Height > 0 {
		contextOptions.Viewport = &playwright.Size{Width: cfg.WindowSize.Width, Height: cfg.WindowSize.Height}
	}
	browserCtx, err := browser.NewContext(contextOptions)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: failed to create browser context: %w", ErrDriverSetup, err)
	}
	if cfg.Stealth {
		if err := browserCtx.AddInitScript(playwright.Script{Content: playwright.String(evasionScript)}); err != nil {
			_ = browser.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("%w: failed to inject evasions script: %w", ErrDriverSetup, err)
		}
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: failed to open page: %w", ErrDriverSetup, err)
	}

	logger.Debug("Playwright browser started.", zap.String("browser_version", browser.Version()))
	return &PlaywrightSession{
		pw:            pw,
		browser:       browser,
		page:          page,
		actionTimeout:   actionTimeout,
		pageLoadTimeout: pageLoadTimeout(cfg),
		logger:          logger,
	}, nil
}

// check fails fast when the session is closed or the caller gave up.
func (s *PlaywrightSession) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// timeoutMillis converts d into Playwright's millisecond timeout. Zero means no limit.
func timeoutMillis(d time.Duration) *float64 {
	if d <= 0 {
		return playwright.Float(0)
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMillis(s.pageLoadTimeout),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *PlaywrightSession) CurrentURL(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *PlaywrightSession) Refresh(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.page.Reload(playwright.PageReloadOptions{Timeout: timeoutMillis(s.pageLoadTimeout)}); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (s *PlaywrightSession) FindElement(ctx context.Context, loc Locator) (Element, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	locator := s.page.Locator(playwrightSelector(loc)).First()
	count, err := locator.Count()
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return &playwrightElement{session: s, locator: locator}, nil
}

func (s *PlaywrightSession) WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	locator := s.page.Locator(playwrightSelector(loc)).First()
	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: timeoutMillis(timeout),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, loc, timeout)
		}
		return nil, fmt.Errorf("wait for %s: %w", loc, err)
	}
	return &playwrightElement{session: s, locator: locator}, nil
}

// Quit closes the browser and stops the driver process.
func (s *PlaywrightSession) Quit() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("Playwright browser closed.")
	})
	return s.closeErr
}

// playwrightSelector maps a Locator onto a Playwright selector string.
func playwrightSelector(loc Locator) string {
	switch loc.Kind {
	case ByID:
		return cssAttr("id", loc.Value)
	case ByXPath:
		return "xpath=" + loc.Value
	default:
		return cssAttr("name", loc.Value)
	}
}

type playwrightElement struct {
	session *PlaywrightSession
	locator playwright.Locator
}

func (e *playwrightElement) Clear(ctx context.Context) error {
	if err := e.session.check(ctx); err != nil {
		return err
	}
	return e.locator.Clear(playwright.LocatorClearOptions{Timeout: timeoutMillis(e.session.actionTimeout)})
}

func (e *playwrightElement) Type(ctx context.Context, text string) error {
	if err := e.session.check(ctx); err != nil {
		return err
	}
	return e.locator.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Timeout: timeoutMillis(e.session.actionTimeout),
	})
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := e.session.check(ctx); err != nil {
		return err
	}
	return e.locator.Click(playwright.LocatorClickOptions{Timeout: timeoutMillis(e.session.actionTimeout)})
}
