// internal/keeper/fake_browser_test.go
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/session-keeper/internal/browser"
	"github.com/xkilldash9x/session-keeper/internal/config"
)

// fakeBrowser is a scripted browser.Browser that records every call.
type fakeBrowser struct {
	mu sync.Mutex

	// present holds the locators that resolve to an element.
	present map[browser.Locator]bool
	// urlAfterClick is where a click on any element lands. Empty stays put.
	urlAfterClick string

	navigateErr   map[string]error
	currentURLErr error
	clickErr      error
	// refreshErrs is consumed one entry per Refresh; past the end refreshes succeed.
	refreshErrs []error
	// onRefresh, when set, runs before each refresh result is returned.
	onRefresh func(call int)
	// panicOn makes the named operation panic.
	panicOn string

	url       string
	calls     []string
	typed     map[browser.Locator]string
	refreshes int
	quits     int
}

func newFakeBrowser(present ...browser.Locator) *fakeBrowser {
	f := &fakeBrowser{
		present:     make(map[browser.Locator]bool),
		navigateErr: make(map[string]error),
		typed:       make(map[browser.Locator]string),
	}
	for _, loc := range present {
		f.present[loc] = true
	}
	return f
}

func (f *fakeBrowser) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.panicOn != "" && f.panicOn == call {
		panic(fmt.Sprintf("fake browser: %s exploded", call))
	}
}

func (f *fakeBrowser) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.record("navigate " + url)
	if err := f.navigateErr[url]; err != nil {
		return err
	}
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) CurrentURL(context.Context) (string, error) {
	f.record("current_url")
	if f.currentURLErr != nil {
		return "", f.currentURLErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakeBrowser) FindElement(_ context.Context, loc browser.Locator) (browser.Element, error) {
	f.record("find " + loc.String())
	if !f.present[loc] {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, loc)
	}
	return &fakeElement{browser: f, loc: loc}, nil
}

func (f *fakeBrowser) WaitForElement(_ context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	f.record("wait " + loc.String())
	if !f.present[loc] {
		return nil, fmt.Errorf("%w: %s after %s", browser.ErrWaitTimeout, loc, timeout)
	}
	return &fakeElement{browser: f, loc: loc}, nil
}

func (f *fakeBrowser) Refresh(context.Context) error {
	f.record("refresh")
	f.mu.Lock()
	call := f.refreshes
	f.refreshes++
	var err error
	if call < len(f.refreshErrs) {
		err = f.refreshErrs[call]
	}
	hook := f.onRefresh
	f.mu.Unlock()

	if hook != nil {
		hook(call + 1)
	}
	return err
}

func (f *fakeBrowser) Quit() error {
	f.record("quit")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits++
	return nil
}

type fakeElement struct {
	browser *fakeBrowser
	loc     browser.Locator
}

func (e *fakeElement) Clear(context.Context) error {
	e.browser.record("clear " + e.loc.String())
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	delete(e.browser.typed, e.loc)
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.browser.record("type " + e.loc.String())
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	e.browser.typed[e.loc] += text
	return nil
}

func (e *fakeElement) Click(context.Context) error {
	e.browser.record("click " + e.loc.String())
	if e.browser.clickErr != nil {
		return e.browser.clickErr
	}
	e.browser.mu.Lock()
	defer e.browser.mu.Unlock()
	if e.browser.urlAfterClick != "" {
		e.browser.url = e.browser.urlAfterClick
	}
	return nil
}

// recordingSleeper never blocks. It fails with context.Canceled once
// stopAfter sleeps have happened (0 never stops) or when ctx is done.
type recordingSleeper struct {
	mu        sync.Mutex
	slept     []time.Duration
	stopAfter int
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.stopAfter > 0 && len(s.slept) >= s.stopAfter {
		return context.Canceled
	}
	return nil
}

func (s *recordingSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

var errTransport = errors.New("websocket: close 1006 (abnormal closure)")

const (
	testLoginURL   = "https://portal.example.test/login/index.php"
	testSessionURL = "https://portal.example.test/my/"
	testHomeURL    = "https://portal.example.test/"
)

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LoginURL = testLoginURL
	cfg.SessionURL = testSessionURL
	cfg.Credentials = config.Credentials{Username: "alice", Password: "s3cret"}
	cfg.FormFields = config.FormFields{UsernameField: "username", PasswordField: "password"}
	cfg.SessionSettings.Timeout = 10
	cfg.SessionSettings.RefreshInterval = 300
	cfg.SessionSettings.MaxRetries = 3
	return cfg
}

// loginPage returns a browser whose login form has the username and password
// fields plus the given submit controls, and which leaves the login page on click.
func loginPage(submit ...browser.Locator) *fakeBrowser {
	f := newFakeBrowser(append([]browser.Locator{browser.Name("username"), browser.Name("password")}, submit...)...)
	f.urlAfterClick = testHomeURL
	return f
}
