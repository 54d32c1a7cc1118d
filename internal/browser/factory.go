// internal/browser/factory.go
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// Factory launches a fresh browser. The keeper receives one so tests can
// substitute a fake driver.
type Factory func(ctx context.Context) (Browser, error)

// New launches the backend selected by cfg.Driver. An empty driver means chromedp.
// actionTimeout bounds element actions; page loads use cfg.PageLoadTimeout.
func New(ctx context.Context, cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) (Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		b   Browser
		err error
	)
	switch cfg.Driver {
	case "", config.DriverChromedp:
		b, err = NewChromeSession(ctx, cfg, actionTimeout, logger)
	case config.DriverPlaywright:
		b, err = NewPlaywrightSession(ctx, cfg, actionTimeout, logger)
	default:
		err = fmt.Errorf("%w: unknown driver %q", ErrDriverSetup, cfg.Driver)
	}
	if err != nil {
		// Never hand back a typed nil inside the interface.
		return nil, err
	}
	return b, nil
}

// DefaultPageLoadTimeout bounds navigation and reload when the configuration
// leaves it unset.
const DefaultPageLoadTimeout = 60 * time.Second

func pageLoadTimeout(cfg config.BrowserConfig) time.Duration {
	if cfg.PageLoadTimeout > 0 {
		return cfg.PageLoadTimeout
	}
	return DefaultPageLoadTimeout
}

// NewFactory binds the configuration into a Factory.
func NewFactory(cfg config.BrowserConfig, actionTimeout time.Duration, logger *zap.Logger) Factory {
	return func(ctx context.Context) (Browser, error) {
		return New(ctx, cfg, actionTimeout, logger)
	}
}
