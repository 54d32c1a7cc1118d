// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxKey string

const sessionKey ctxKey = "cdp-target"

func TestCombineContext(t *testing.T) {
	t.Run("keeps primary values", func(t *testing.T) {
		primary := context.WithValue(context.Background(), sessionKey, "tab-1")

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(sessionKey))
		assert.NoError(t, combined.Err())
	})

	t.Run("operational cancel propagates", func(t *testing.T) {
		op, cancelOp := context.WithCancel(context.Background())

		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool { return combined.Err() != nil },
			time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("primary close propagates", func(t *testing.T) {
		primary, closeTab := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		closeTab()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("operational deadline surfaces as cancel", func(t *testing.T) {
		op, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()

		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		<-combined.Done()
		assert.ErrorIs(t, op.Err(), context.DeadlineExceeded)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	t.Run("keeps values", func(t *testing.T) {
		parent := context.WithValue(context.Background(), sessionKey, "tab-2")
		assert.Equal(t, "tab-2", Detach(parent).Value(sessionKey))
	})

	t.Run("ignores interrupt of parent", func(t *testing.T) {
		parent, interrupt := context.WithCancel(context.Background())
		detached := Detach(parent)

		interrupt()

		assert.Error(t, parent.Err())
		assert.NoError(t, detached.Err())
		assert.Nil(t, detached.Done())
		_, hasDeadline := detached.Deadline()
		assert.False(t, hasDeadline)
	})

	t.Run("children keep their own timeout", func(t *testing.T) {
		parent, interrupt := context.WithCancel(context.Background())
		child, cancel := context.WithTimeout(Detach(parent), 20*time.Millisecond)
		defer cancel()

		interrupt()
		<-child.Done()
		assert.ErrorIs(t, child.Err(), context.DeadlineExceeded)
	})
}
