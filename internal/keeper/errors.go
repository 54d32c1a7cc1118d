// internal/keeper/errors.go
package keeper

import "errors"

// Login diagnostics. Login reports them as false; attemptLogin returns them wrapped.
var (
	ErrLoginTimeout            = errors.New("login form did not appear in time")
	ErrSubmitControlNotFound   = errors.New("submit control not found")
	ErrLoginVerificationFailed = errors.New("still on login page after submit")
)

// ErrRefreshFailure wraps a failed page reload inside the keepalive loop.
var ErrRefreshFailure = errors.New("page refresh failed")

// Run results returned by Runner.Run.
var (
	ErrLoginFailed      = errors.New("login failed")
	ErrNavigationFailed = errors.New("navigation to session url failed")
	ErrRetriesExhausted = errors.New("maximum refresh retries reached")
)
