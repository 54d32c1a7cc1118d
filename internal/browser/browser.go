// internal/browser/browser.go
//
// Package browser is the narrow capability the keeper needs from a browser
// automation driver: navigate, locate elements, type, click, refresh, report
// the current URL, and quit. Two backends implement it, chromedp (default) and
// playwright.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDriverSetup is returned when the browser process cannot be launched.
	ErrDriverSetup = errors.New("browser driver setup failed")
	// ErrElementNotFound is returned by FindElement when nothing matches.
	ErrElementNotFound = errors.New("element not found")
	// ErrWaitTimeout is returned by WaitForElement when the element does not appear in time.
	ErrWaitTimeout = errors.New("timed out waiting for element")
	// ErrClosed is returned by any operation after Quit.
	ErrClosed = errors.New("browser already closed")
)

// Browser is a single browser tab driven by an automation backend.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// FindElement looks the element up once, without waiting.
	FindElement(ctx context.Context, loc Locator) (Element, error)
	WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	Refresh(ctx context.Context) error
	// Quit releases the browser. Calling it more than once is harmless.
	Quit() error
}

// Element is a located DOM element.
type Element interface {
	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Click(ctx context.Context) error
}

// LocatorKind is the strategy used to find an element.
type LocatorKind int

const (
	ByName LocatorKind = iota
	ByID
	ByXPath
)

func (k LocatorKind) String() string {
	switch k {
	case ByName:
		return "name"
	case ByID:
		return "id"
	case ByXPath:
		return "xpath"
	default:
		return fmt.Sprintf("LocatorKind(%d)", int(k))
	}
}

// Locator is a strategy plus value.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// Name locates by the name attribute.
func Name(v string) Locator { return Locator{Kind: ByName, Value: v} }

// ID locates by the id attribute.
func ID(v string) Locator { return Locator{Kind: ByID, Value: v} }

// XPath locates by an XPath expression.
func XPath(v string) Locator { return Locator{Kind: ByXPath, Value: v} }

func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

// cssAttr renders an attribute-equals CSS selector with the value quoted.
func cssAttr(attr, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`[%s="%s"]`, attr, r.Replace(value))
}
