// internal/browser/allocator.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// launchFlag is one Chrome command-line switch without its leading dashes.
// Value is either a bool (presence switch) or a string.
type launchFlag struct {
	Name  string
	Value interface{}
}

// launchFlags translates the browser configuration into Chrome switches.
// Both backends start from this list so they launch the same browser.
func launchFlags(cfg config.BrowserConfig) []launchFlag {
	flags := []launchFlag{
		{Name: "headless", Value: cfg.Headless},
		// Hide navigator.webdriver from the page.
		{Name: "disable-blink-features", Value: "AutomationControlled"},
		{Name: "start-maximized", Value: true},
		{Name: "disable-dev-shm-usage", Value: true},
	}

	if cfg.Headless {
		flags = append(flags, launchFlag{Name: "disable-gpu", Value: true})
	}
	if cfg.IgnoreTLSErrors {
		flags = append(flags,
			launchFlag{Name: "ignore-certificate-errors", Value: true},
			launchFlag{Name: "allow-insecure-localhost", Value: true},
		)
	}
	if cfg.WindowSize.Width > 0 && cfg.WindowSize.Height > 0 {
		flags = append(flags, launchFlag{
			Name:  "window-size",
			Value: fmt.Sprintf("%d,%d", cfg.WindowSize.Width, cfg.WindowSize.Height),
		})
	}

	// User supplied args come last so they can override the above.
	for _, arg := range cfg.Args {
		if f, ok := parseArg(arg); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

// parseArg accepts "--name", "name", "--name=value" or "name=value".
func parseArg(arg string) (launchFlag, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return launchFlag{}, false
	}
	name, value, hasValue := strings.Cut(arg, "=")
	if name == "" {
		return launchFlag{}, false
	}
	if !hasValue {
		return launchFlag{Name: name, Value: true}, true
	}
	return launchFlag{Name: name, Value: value}, true
}

// DefaultAllocatorOptions translates the application config into chromedp allocator options.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+8)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)

	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// commandLineArgs renders the flags as "--name" / "--name=value" strings for
// drivers that take raw arguments. Headless is handled by the driver itself.
func commandLineArgs(cfg config.BrowserConfig) []string {
	var args []string
	for _, f := range launchFlags(cfg) {
		if f.Name == "headless" {
			continue
		}
		switch v := f.Value.(type) {
		case bool:
			if v {
				args = append(args, "--"+f.Name)
			}
		default:
			args = append(args, fmt.Sprintf("--%s=%v", f.Name, v))
		}
	}
	return args
}
