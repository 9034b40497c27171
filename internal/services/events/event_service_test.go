package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func TestPublish_NoSubscribersIsANoop(t *testing.T) {
	bus := NewService(testLogger())
	err := bus.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMessageEnriched})
	if err != nil {
		t.Fatalf("unexpected error publishing with no subscribers: %v", err)
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	bus := NewService(testLogger())

	var calls atomic.Int32
	handler := func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}

	if err := bus.Subscribe(interfaces.EventMessageEnriched, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Subscribe(interfaces.EventMessageEnriched, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := bus.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMessageEnriched}); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected both subscribers invoked, got %d calls", got)
	}
}

func TestPublish_OnlyInvokesSubscribersForMatchingEventType(t *testing.T) {
	bus := NewService(testLogger())

	var enrichedCalls, classifiedCalls atomic.Int32
	bus.Subscribe(interfaces.EventMessageEnriched, func(ctx context.Context, event interfaces.Event) error {
		enrichedCalls.Add(1)
		return nil
	})
	bus.Subscribe(interfaces.EventMessageClassified, func(ctx context.Context, event interfaces.Event) error {
		classifiedCalls.Add(1)
		return nil
	})

	bus.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMessageEnriched})

	if enrichedCalls.Load() != 1 {
		t.Errorf("enrichedCalls = %d, want 1", enrichedCalls.Load())
	}
	if classifiedCalls.Load() != 0 {
		t.Errorf("classifiedCalls = %d, want 0", classifiedCalls.Load())
	}
}

func TestPublish_AggregatesHandlerErrors(t *testing.T) {
	bus := NewService(testLogger())

	bus.Subscribe(interfaces.EventMessageEnriched, func(ctx context.Context, event interfaces.Event) error {
		return nil
	})
	bus.Subscribe(interfaces.EventMessageEnriched, func(ctx context.Context, event interfaces.Event) error {
		return fmt.Errorf("handler exploded")
	})

	err := bus.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMessageEnriched})
	if err == nil {
		t.Fatal("expected aggregated error when a handler fails")
	}
}

func TestSubscribe_RejectsNilHandler(t *testing.T) {
	bus := NewService(testLogger())
	if err := bus.Subscribe(interfaces.EventMessageEnriched, nil); err == nil {
		t.Fatal("expected error subscribing a nil handler")
	}
}

func TestClose_ClearsSubscribers(t *testing.T) {
	bus := NewService(testLogger())
	var calls atomic.Int32
	bus.Subscribe(interfaces.EventMessageEnriched, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bus.Publish(context.Background(), interfaces.Event{Type: interfaces.EventMessageEnriched})
	if calls.Load() != 0 {
		t.Fatalf("expected no handlers invoked after Close, got %d", calls.Load())
	}
}
