package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitReachesAllSubscribers(t *testing.T) {
	bus := NewEventBus()
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		bus.Subscribe(EventDanmaku, "h", func(ctx context.Context, ev Event) error {
			calls.Add(1)
			return nil
		})
	}

	bus.Emit(context.Background(), Event{Type: EventDanmaku})
	bus.Stop()

	if got := calls.Load(); got != 3 {
		t.Errorf("handler calls = %d, want 3", got)
	}
}

func TestEmitIgnoresOtherEventTypes(t *testing.T) {
	bus := NewEventBus()
	var called atomic.Bool

	bus.Subscribe(EventGift, "gift", func(ctx context.Context, ev Event) error {
		called.Store(true)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventDanmaku})
	bus.Stop()

	if called.Load() {
		t.Error("gift handler called for danmaku event")
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(EventDanmaku, "a", func(ctx context.Context, ev Event) error { return nil })
	bus.Subscribe(EventDanmaku, "b", func(ctx context.Context, ev Event) error { return nil })

	bus.Unsubscribe(EventDanmaku, "a")

	if got := bus.HandlerCount(EventDanmaku); got != 1 {
		t.Errorf("HandlerCount = %d, want 1", got)
	}
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	bus := NewEventBus()
	wantErr := errors.New("handler failed")

	bus.Subscribe(EventShutdown, "ok", func(ctx context.Context, ev Event) error { return nil })
	bus.Subscribe(EventShutdown, "bad", func(ctx context.Context, ev Event) error { return wantErr })

	err := bus.EmitSync(context.Background(), Event{Type: EventShutdown})
	if !errors.Is(err, wantErr) {
		t.Errorf("EmitSync = %v, want %v", err, wantErr)
	}
}

func TestPanickingHandlerDoesNotCrashBus(t *testing.T) {
	bus := NewEventBus()
	var survived atomic.Bool

	bus.Subscribe(EventDanmaku, "panics", func(ctx context.Context, ev Event) error {
		panic("boom")
	})
	bus.Subscribe(EventDanmaku, "survives", func(ctx context.Context, ev Event) error {
		survived.Store(true)
		return nil
	})

	bus.Emit(context.Background(), Event{Type: EventDanmaku})
	bus.Stop()

	if !survived.Load() {
		t.Error("sibling handler did not run after panic")
	}
}

func TestStopRejectsNewEvents(t *testing.T) {
	bus := NewEventBus()
	var called atomic.Bool

	bus.Subscribe(EventDanmaku, "h", func(ctx context.Context, ev Event) error {
		called.Store(true)
		return nil
	})

	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventDanmaku})

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Error("handler called after Stop")
	}
}
