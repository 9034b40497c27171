package interfaces

import "context"

// EventType represents a bus topic in the DLQ pipeline (§6 Events on the bus).
type EventType string

const (
	EventMessageEnriched   EventType = "MessageEnriched"
	EventMessageClassified EventType = "MessageClassified"
)

// Event represents a message on the pipeline's event bus.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(ctx context.Context, event Event) error

// EventBus manages the pub/sub bus linking Monitor -> Analyzer -> Executor.
// Publish must durably accept the event before returning nil: per §3 invariant 4,
// the Monitor only deletes a source message after Publish succeeds.
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Unsubscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	Close() error
}
