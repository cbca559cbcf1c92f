package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esunday5/staff-portal/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func statusChanged(requestID int64) *event.Event {
	return event.NewEvent(event.TypeStatusChanged, requestID, 9, map[string]interface{}{"new_status": "AUTHORIZED_BY_SUPERVISOR"})
}

func TestSubscribe_GeneratesNames(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeStatusChanged, noop)
	d.SubscribeNamed(event.TypeStatusChanged, "outbox-wake", noop)
	d.Subscribe(event.TypeStatusChanged, noop)

	assert.Equal(t,
		[]string{"request.status_changed#0", "outbox-wake", "request.status_changed#2"},
		d.Handlers(event.TypeStatusChanged))
	assert.Empty(t, d.Handlers(event.TypeRequestCreated))
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.SubscribeNamed(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), statusChanged(1)))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("continues after a failing handler", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("boom")
		called := false
		d.SubscribeNamed(event.TypeStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
			return boom
		})
		d.SubscribeNamed(event.TypeStatusChanged, "after", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), statusChanged(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.True(t, called)
		assert.Equal(t, 1, logger.ErrorCount())
	})

	t.Run("recovers from panics", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			panic("handler exploded")
		})

		err := d.Dispatch(context.Background(), statusChanged(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler exploded")
	})

	t.Run("rejects after close", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.ErrorIs(t, d.Dispatch(context.Background(), statusChanged(1)), ErrClosed)
		assert.ErrorIs(t, d.Close(), ErrClosed)
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("close waits for handlers", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32
		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
				time.Sleep(10 * time.Millisecond)
				count.Add(1)
				return nil
			})
		}

		d.DispatchAsync(context.Background(), statusChanged(1))
		require.NoError(t, d.Close())
		assert.Equal(t, int32(3), count.Load())
	})

	t.Run("handlers outlive the caller context", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value
		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			ctxErr.Store(ctx.Err() == nil)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, statusChanged(1))
		cancel()
		require.NoError(t, d.Close())
		assert.Equal(t, true, ctxErr.Load())
	})

	t.Run("drops events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			t.Error("handler must not run")
			return nil
		})
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), statusChanged(1))
		assert.Equal(t, 1, logger.ErrorCount())
	})
}
