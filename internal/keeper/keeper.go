// internal/keeper/keeper.go
//
// Package keeper logs into a website through a browser.Browser and keeps the
// server-side session alive by reloading the page on a timer.
//
// The flow has three phases run in order by a Runner: Login, NavigateToSessionURL
// and KeepAlive. Only the sleep between refreshes observes cancellation. Login
// and navigation run to completion once started.
package keeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/session-keeper/internal/browser"
	"github.com/xkilldash9x/session-keeper/internal/config"
)

// Outcome is the state of the keepalive loop.
type Outcome int

const (
	// Running is the state while refreshes are being issued.
	Running Outcome = iota
	// Failed means max_retries consecutive refreshes failed.
	Failed
	// Stopped means the loop was interrupted while sleeping.
	Stopped
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "RUNNING"
	case Failed:
		return "FAILED"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// SessionState is mutated only by Login and KeepAlive.
type SessionState struct {
	IsLoggedIn                 bool
	ConsecutiveRefreshFailures int
}

// Sleeper suspends the caller for d. It returns ctx.Err() if ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithSleeper replaces the timer-based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(k *Keeper) {
		if s != nil {
			k.sleeper = s
		}
	}
}

// WithClock replaces time.Now for refresh timestamps.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

// Keeper drives one browser session through login, navigation and keepalive.
// It is not safe for concurrent use.
type Keeper struct {
	cfg     *config.Config
	browser browser.Browser
	logger  *zap.Logger
	sleeper Sleeper
	now     func() time.Time

	state SessionState
}

// New returns a Keeper for an already launched browser.
func New(cfg *config.Config, b browser.Browser, logger *zap.Logger, opts ...Option) *Keeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &Keeper{
		cfg:     cfg,
		browser: b,
		logger:  logger,
		sleeper: timerSleeper{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// State returns a copy of the current session state.
func (k *Keeper) State() SessionState {
	return k.state
}

// settle waits out a settle period. It cannot be interrupted.
func (k *Keeper) settle(ctx context.Context, d time.Duration) {
	_ = k.sleeper.Sleep(browser.Detach(ctx), d)
}
