// internal/keeper/login.go
package keeper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
)

// loginButtonID is the id tried when no submit locator is configured or it matches nothing.
const loginButtonID = "loginbtn"

// Generic submit controls, tried last.
const (
	submitButtonXPath = "//button[@type='submit']"
	submitInputXPath  = "//input[@type='submit']"
)

// Login fills and submits the login form. It reports false instead of
// returning errors; the reason is logged.
//
// Success means the browser left login_url after the settle period. The
// destination is not checked, so a redirect to an error page also counts.
func (k *Keeper) Login(ctx context.Context) bool {
	if err := k.attemptLogin(ctx); err != nil {
		switch {
		case errors.Is(err, ErrLoginTimeout):
			k.logger.Error("Timed out waiting for the login form.",
				zap.Duration("timeout", k.cfg.SessionSettings.TimeoutDuration()), zap.Error(err))
		case errors.Is(err, ErrLoginVerificationFailed):
			k.logger.Error("Login failed, still on the login page.")
		default:
			k.logger.Error("Error during login.", zap.Error(err))
		}
		return false
	}
	return true
}

func (k *Keeper) attemptLogin(ctx context.Context) error {
	ctx = browser.Detach(ctx)
	loginURL := k.cfg.LoginURL
	fields := k.cfg.FormFields

	k.logger.Info("Attempting login.", zap.String("url", loginURL))
	if err := k.browser.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	timeout := k.cfg.SessionSettings.TimeoutDuration()
	username, err := k.browser.WaitForElement(ctx, browser.Name(fields.UsernameField), timeout)
	if err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return fmt.Errorf("%w: username field %q: %w", ErrLoginTimeout, fields.UsernameField, err)
		}
		return fmt.Errorf("locate username field: %w", err)
	}
	if err := fill(ctx, username, k.cfg.Credentials.Username); err != nil {
		return fmt.Errorf("fill username field: %w", err)
	}
	k.logger.Info("Username field filled.")

	password, err := k.browser.FindElement(ctx, browser.Name(fields.PasswordField))
	if err != nil {
		return fmt.Errorf("locate password field: %w", err)
	}
	if err := fill(ctx, password, k.cfg.Credentials.Password); err != nil {
		return fmt.Errorf("fill password field: %w", err)
	}
	k.logger.Info("Password field filled.")

	submit, err := k.findSubmitControl(ctx, fields.SubmitButton)
	if err != nil {
		return err
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("click submit control: %w", err)
	}
	k.logger.Info("Form submitted.")

	k.settle(ctx, k.cfg.SessionSettings.LoginSettleDuration())

	current, err := k.browser.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("read url after submit: %w", err)
	}
	if current == loginURL {
		return ErrLoginVerificationFailed
	}

	k.state.IsLoggedIn = true
	k.logger.Info("Login successful.", zap.String("landed_on", current))
	return nil
}

// submitCandidate is one step of the submit control fallback chain.
type submitCandidate struct {
	locator browser.Locator
	found   string
}

// submitCandidates lists the locators tried for the submit control, in order.
// The configured XPath comes first when set.
func submitCandidates(configured string) []submitCandidate {
	var candidates []submitCandidate
	if configured != "" {
		candidates = append(candidates, submitCandidate{browser.XPath(configured), "Submit control found using the configured XPath."})
	}
	return append(candidates,
		submitCandidate{browser.ID(loginButtonID), "Submit control found by id 'loginbtn'."},
		submitCandidate{browser.XPath(submitButtonXPath), "Submit control found by button type submit."},
		submitCandidate{browser.XPath(submitInputXPath), "Submit control found by input type submit."},
	)
}

// findSubmitControl returns the first candidate that exists. Lookups do not wait.
func (k *Keeper) findSubmitControl(ctx context.Context, configured string) (browser.Element, error) {
	var tried []string
	for i, c := range submitCandidates(configured) {
		el, err := k.browser.FindElement(ctx, c.locator)
		if err == nil {
			k.logger.Info(c.found)
			return el, nil
		}
		tried = append(tried, c.locator.String())
		if i == 0 && configured != "" {
			k.logger.Warn("Submit control not found with the configured XPath, trying alternatives.",
				zap.String("xpath", configured), zap.Error(err))
		} else {
			k.logger.Debug("Submit control candidate did not match.", zap.Stringer("locator", c.locator), zap.Error(err))
		}
	}
	return nil, fmt.Errorf("%w: tried %v", ErrSubmitControlNotFound, tried)
}

func fill(ctx context.Context, el browser.Element, text string) error {
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.Type(ctx, text)
}
