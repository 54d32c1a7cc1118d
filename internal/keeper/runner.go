// internal/keeper/runner.go
package keeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
	"github.com/xkilldash9x/session-keeper/internal/config"
)

// Runner owns the browser for one run: launch, login, navigate, keep alive, quit.
type Runner struct {
	cfg     *config.Config
	factory browser.Factory
	logger  *zap.Logger
	opts    []Option
}

// NewRunner returns a Runner that launches its browser through factory.
// opts are passed to the Keeper it creates.
func NewRunner(cfg *config.Config, factory browser.Factory, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, factory: factory, logger: logger, opts: opts}
}

// Run executes the whole flow and returns nil when the keepalive loop was
// interrupted. The browser is released exactly once on every exit path,
// including a panic in one of the phases.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	if r.cfg.SessionSettings.Headless {
		logger.Info("Headless mode enabled (browser hidden).")
	} else {
		logger.Info("Visible mode enabled (browser shown).")
	}

	b, err := r.factory(browser.Detach(ctx))
	if err != nil {
		logger.Error("Failed to set up the browser driver.", zap.Error(err))
		if !errors.Is(err, browser.ErrDriverSetup) {
			err = fmt.Errorf("%w: %w", browser.ErrDriverSetup, err)
		}
		return err
	}
	logger.Info("Browser driver ready.", zap.String("driver", r.cfg.Browser.Driver))
	defer release(b, logger)

	k := New(r.cfg, b, logger, r.opts...)

	if !k.Login(ctx) {
		logger.Error("Could not complete login.")
		return ErrLoginFailed
	}
	if !k.NavigateToSessionURL(ctx) {
		logger.Error("Could not navigate to the session url.")
		return ErrNavigationFailed
	}

	if outcome := k.KeepAlive(ctx); outcome == Failed {
		return fmt.Errorf("%w: %d consecutive failures", ErrRetriesExhausted, k.State().ConsecutiveRefreshFailures)
	}
	return nil
}

func release(b browser.Browser, logger *zap.Logger) {
	logger.Info("Closing browser...")
	if err := b.Quit(); err != nil {
		logger.Warn("Error while closing the browser.", zap.Error(err))
		return
	}
	logger.Info("Browser closed.")
}
