// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from ctx1 (primary) that is
// canceled when either ctx1 or ctx2 (operational) is canceled. It inherits
// values from ctx1, which for chromedp carries the CDP connection, while ctx2
// carries the caller's deadline or cancellation.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	// The goroutine stops when either context is done.
	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext inherits all values from its parent but ignores the
// parent's deadline and cancellation signal.
type valueOnlyContext struct {
	context.Context
}

// Deadline always returns false, removing any deadline from the parent.
func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }

// Done always returns nil, making the context un-cancellable from its parent.
func (valueOnlyContext) Done() <-chan struct{} { return nil }

// Err always returns nil.
func (valueOnlyContext) Err() error { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. The browser process and the login/navigation phases run on a
// detached context so an interrupt is only observed at the keepalive sleep.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
