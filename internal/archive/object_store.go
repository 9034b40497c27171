// Package archive provides an in-memory interfaces.ObjectStore standing in
// for the object-store service (S3, GCS, Azure Blob, ...) the Executor's
// Archive handler writes poison-pill messages to (§5 Archive handler). The
// concrete object-store service is an out-of-scope external collaborator
// (§1 Non-goals); this adapter keeps the write path exercisable.
package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Object is a single archived payload, retained for inspection by tests and
// operators.
type Object struct {
	ContentType string
	Body        []byte
	Metadata    map[string]string
}

// Store is an in-memory key/value object store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
	logger  arbor.ILogger
}

// NewStore creates an empty object store.
func NewStore(logger arbor.ILogger) *Store {
	return &Store{objects: make(map[string]Object), logger: logger}
}

func (s *Store) Put(ctx context.Context, key string, contentType string, body []byte, metadata map[string]string) error {
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	s.mu.Lock()
	s.objects[key] = Object{ContentType: contentType, Body: body, Metadata: metadata}
	s.mu.Unlock()

	s.logger.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int("size", len(body)).
		Msg("archived object written")
	return nil
}

// Get returns a previously archived object, used by tests that assert on
// what the Archive handler wrote.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

var _ interfaces.ObjectStore = (*Store)(nil)
