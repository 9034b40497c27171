// Package events implements the in-process event bus carrying
// MessageEnriched (Monitor -> Analyzer) and MessageClassified
// (Analyzer -> Executor) events between pipeline stages.
package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Service implements interfaces.EventBus with synchronous delivery: Publish
// does not return until every subscriber handler has run, so a caller that
// deletes the source message only after Publish succeeds never loses a
// message to a dropped in-process event (the in-process analog of the
// pipeline's "never delete before downstream has durably accepted" rule).
type Service struct {
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event bus.
func NewService(logger arbor.ILogger) interfaces.EventBus {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("event handler subscribed")
	return nil
}

func (s *Service) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := s.subscribers[eventType]
	target := reflect.ValueOf(handler).Pointer()
	for i := range handlers {
		if reflect.ValueOf(handlers[i]).Pointer() == target {
			s.subscribers[eventType] = append(handlers[:i], handlers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("handler not found for event type: %s", eventType)
}

// Publish runs every subscriber for event.Type synchronously and returns an
// aggregated error if any handler failed.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.RLock()
	handlers := append([]interfaces.EventHandler(nil), s.subscribers[event.Type]...)
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("no subscribers for event")
		return nil
	}

	s.logger.Info().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(handlers)).
		Msg("publishing event")

	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("event handler failed")
				errCh <- err
			}
		}(handler)
	}

	wg.Wait()
	close(errCh)

	var failed int
	for err := range errCh {
		_ = err
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d event handlers failed for %s", failed, len(handlers), event.Type)
	}
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.logger.Info().Msg("event bus closed")
	return nil
}
