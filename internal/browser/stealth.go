// internal/browser/stealth.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/config"
)

// evasionScript runs before any page script. Login pages that refuse
// automated browsers usually look at navigator.webdriver first.
const evasionScript = `(() => {
  Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined });
  if (!window.chrome) { window.chrome = { runtime: {} }; }
})();`

// stealthTasks returns the CDP actions that disguise the tab. It is empty
// when stealth is off and no user agent is configured.
func stealthTasks(cfg config.BrowserConfig, logger *zap.Logger) chromedp.Tasks {
	var tasks chromedp.Tasks

	if cfg.UserAgent != "" {
		logger.Debug("Overriding user agent.", zap.String("user_agent", cfg.UserAgent))
		tasks = append(tasks, emulation.SetUserAgentOverride(cfg.UserAgent))
	}
	if cfg.Stealth {
		logger.Debug("Applying stealth evasions.")
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			// AddScriptToEvaluateOnNewDocument returns an identifier too, so it needs wrapping.
			if _, err := page.AddScriptToEvaluateOnNewDocument(evasionScript).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}))
	}
	return tasks
}
