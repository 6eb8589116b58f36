package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	var calls []string
	record := func(name string) EventHandler {
		return func(ctx context.Context, e Event) error {
			calls = append(calls, name)
			return nil
		}
	}

	_, err := bus.Subscribe("basket.changed", record("first"))
	require.NoError(t, err)
	_, err = bus.Subscribe("basket.*", record("pattern"))
	require.NoError(t, err)
	_, err = bus.Subscribe("basket.changed", record("second"))
	require.NoError(t, err)
	_, err = bus.Subscribe("catalog.changed", record("other"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "basket.changed", 3))
	assert.Equal(t, []string{"first", "pattern", "second"}, calls)
}

func TestMemoryEventBusPassesPayload(t *testing.T) {
	bus := NewMemoryEventBus()

	var got Event
	_, err := bus.Subscribe("catalog.changed", func(ctx context.Context, e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "catalog.changed", []string{"a", "b"}))
	assert.Equal(t, "catalog.changed", got.Topic)
	assert.Equal(t, []string{"a", "b"}, got.Payload)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestMemoryEventBusDuplicateRegistration(t *testing.T) {
	bus := NewMemoryEventBus()

	count := 0
	handler := func(ctx context.Context, e Event) error {
		count++
		return nil
	}
	_, err := bus.Subscribe("order.submitted", handler)
	require.NoError(t, err)
	_, err = bus.Subscribe("order.submitted", handler)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "order.submitted", nil))
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, bus.SubscriberCount("order.submitted"))
}

func TestMemoryEventBusFailingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewMemoryEventBus()
	boom := errors.New("boom")

	var ran []string
	_, _ = bus.Subscribe("order.failed", func(ctx context.Context, e Event) error {
		ran = append(ran, "error")
		return boom
	})
	_, _ = bus.Subscribe("order.failed", func(ctx context.Context, e Event) error {
		ran = append(ran, "panic")
		panic("kaput")
	})
	_, _ = bus.Subscribe("order.failed", func(ctx context.Context, e Event) error {
		ran = append(ran, "ok")
		return nil
	})

	err := bus.Publish(context.Background(), "order.failed", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "kaput")
	assert.Equal(t, []string{"error", "panic", "ok"}, ran)

	delivered, failed := bus.Stats()
	assert.Equal(t, uint64(1), delivered)
	assert.Equal(t, uint64(2), failed)
}

func TestMemoryEventBusUnsubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	count := 0
	sub, err := bus.Subscribe("basket.changed", func(ctx context.Context, e Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "basket.changed", nil))
	require.NoError(t, bus.Unsubscribe(sub))
	require.NoError(t, bus.Publish(ctx, "basket.changed", nil))
	assert.Equal(t, 1, count)

	t.Run("unknown subscription is a no-op", func(t *testing.T) {
		assert.NoError(t, bus.Unsubscribe(sub))
		assert.NoError(t, bus.Unsubscribe(nil))
		assert.NoError(t, NewMemoryEventBus().Unsubscribe(sub))
	})

	assert.Empty(t, bus.Topics())
}

func TestMemoryEventBusCancelDuringDispatch(t *testing.T) {
	bus := NewMemoryEventBus()

	var second Subscription
	secondCalled := false
	_, err := bus.Subscribe("catalog.changed", func(ctx context.Context, e Event) error {
		return second.Cancel()
	})
	require.NoError(t, err)
	second, err = bus.Subscribe("catalog.changed", func(ctx context.Context, e Event) error {
		secondCalled = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "catalog.changed", nil))
	assert.False(t, secondCalled)
}

func TestMemoryEventBusNestedPublish(t *testing.T) {
	bus := NewMemoryEventBus()

	var order []string
	_, _ = bus.Subscribe("intent.field.edited", func(ctx context.Context, e Event) error {
		order = append(order, "edit")
		return bus.Publish(ctx, "order.shipping.errors", nil)
	})
	_, _ = bus.Subscribe("order.shipping.errors", func(ctx context.Context, e Event) error {
		order = append(order, "errors")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), "intent.field.edited", nil))
	assert.Equal(t, []string{"edit", "errors"}, order)
}

func TestMemoryEventBusRejectsRecursivePublish(t *testing.T) {
	bus := NewMemoryEventBus()

	depth := 0
	_, _ = bus.Subscribe("basket.changed", func(ctx context.Context, e Event) error {
		depth++
		return bus.Publish(ctx, "basket.changed", nil)
	})

	err := bus.Publish(context.Background(), "basket.changed", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecursivePublish)
	assert.Equal(t, 1, depth)
}

func TestMemoryEventBusSubscribeValidation(t *testing.T) {
	bus := NewMemoryEventBus()

	_, err := bus.Subscribe("topic", nil)
	assert.ErrorIs(t, err, ErrEventHandlerNil)

	_, err = bus.Subscribe("", func(ctx context.Context, e Event) error { return nil })
	assert.ErrorIs(t, err, ErrTopicEmpty)

	assert.ErrorIs(t, bus.Publish(context.Background(), "", nil), ErrTopicEmpty)
}

func TestMemoryEventBusSubscribeDuringDispatchIsVisibleNextTime(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	late := 0
	subscribed := false
	_, _ = bus.Subscribe("catalog.changed", func(ctx context.Context, e Event) error {
		if subscribed {
			return nil
		}
		subscribed = true
		_, err := bus.Subscribe("catalog.changed", func(ctx context.Context, e Event) error {
			late++
			return nil
		})
		return err
	})

	require.NoError(t, bus.Publish(ctx, "catalog.changed", nil))
	assert.Equal(t, 0, late)
	require.NoError(t, bus.Publish(ctx, "catalog.changed", nil))
	assert.Equal(t, 1, late)
}

func TestMemoryEventBusSerializesPublishers(t *testing.T) {
	bus := NewMemoryEventBus()

	// Unsynchronized on purpose: the bus must serialize dispatch.
	counter := 0
	_, _ = bus.Subscribe("counter.bump", func(ctx context.Context, e Event) error {
		counter++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), "counter.bump", nil)
		}()
	}
	wg.Wait()

	var got int
	require.NoError(t, bus.Exclusive(context.Background(), func(ctx context.Context) error {
		assert.True(t, IsDispatching(ctx))
		got = counter
		return nil
	}))
	assert.Equal(t, 50, got)
}

func TestMemoryEventBusExclusiveHonorsContext(t *testing.T) {
	bus := NewMemoryEventBus()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = bus.Exclusive(context.Background(), func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := bus.Exclusive(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	err = bus.Publish(ctx, "catalog.changed", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetachLeavesDispatch(t *testing.T) {
	bus := NewMemoryEventBus()

	finished := make(chan error, 1)
	_, err := bus.Subscribe("order.start", func(ctx context.Context, e Event) error {
		require.True(t, IsDispatching(ctx))
		detached := Detach(ctx)
		assert.False(t, IsDispatching(detached))
		go func() {
			// Waits for the running publication to end, then takes the lock.
			finished <- bus.Exclusive(detached, func(ctx context.Context) error {
				if !IsDispatching(ctx) {
					return errors.New("exclusive callback outside dispatch")
				}
				return nil
			})
		}()
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, "order.start", nil))
	cancel()

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("detached work never acquired the dispatch lock")
	}
}
