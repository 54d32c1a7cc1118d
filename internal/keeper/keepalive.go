// internal/keeper/keepalive.go
package keeper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
)

const refreshTimeLayout = "2006-01-02 15:04:05"

// NavigateToSessionURL opens session_url and waits the navigation settle
// period. The page content is not checked.
func (k *Keeper) NavigateToSessionURL(ctx context.Context) bool {
	ctx = browser.Detach(ctx)
	sessionURL := k.cfg.SessionURL

	k.logger.Info("Navigating to session url.", zap.String("url", sessionURL))
	if err := k.browser.Navigate(ctx, sessionURL); err != nil {
		k.logger.Error("Error navigating to the session url.", zap.String("url", sessionURL), zap.Error(err))
		return false
	}
	k.settle(ctx, k.cfg.SessionSettings.NavigationSettleDuration())
	return true
}

// KeepAlive reloads the page every refresh_interval until max_retries
// consecutive reloads fail (Failed) or ctx ends during the sleep (Stopped).
// A successful reload resets the failure count.
func (k *Keeper) KeepAlive(ctx context.Context) Outcome {
	interval := k.cfg.SessionSettings.RefreshIntervalDuration()
	maxRetries := k.cfg.SessionSettings.MaxRetries

	k.logger.Info("Keeping session alive.",
		zap.Duration("refresh_interval", interval), zap.Int("max_retries", maxRetries))

	k.state.ConsecutiveRefreshFailures = 0
	for {
		if err := k.sleeper.Sleep(ctx, interval); err != nil {
			k.logger.Info("Session interrupted by user.",
				zap.Int("consecutive_failures", k.state.ConsecutiveRefreshFailures))
			return Stopped
		}

		if err := k.refresh(browser.Detach(ctx)); err != nil {
			k.state.ConsecutiveRefreshFailures++
			k.logger.Warn(fmt.Sprintf("Refresh failed (%d/%d).", k.state.ConsecutiveRefreshFailures, maxRetries),
				zap.Int("consecutive_failures", k.state.ConsecutiveRefreshFailures),
				zap.Int("max_retries", maxRetries),
				zap.Error(err))

			if k.state.ConsecutiveRefreshFailures >= maxRetries {
				k.logger.Error("Maximum retries reached.",
					zap.Int("consecutive_failures", k.state.ConsecutiveRefreshFailures),
					zap.Int("max_retries", maxRetries))
				return Failed
			}
			continue
		}
		k.state.ConsecutiveRefreshFailures = 0
	}
}

func (k *Keeper) refresh(ctx context.Context) error {
	k.logger.Info("Refreshing page...")
	if err := k.browser.Refresh(ctx); err != nil {
		k.logger.Error("Error refreshing the page.", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRefreshFailure, err)
	}
	k.logger.Info("Page refreshed.", zap.String("refreshed_at", k.now().Format(refreshTimeLayout)))
	return nil
}
