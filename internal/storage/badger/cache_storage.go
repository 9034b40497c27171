package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
)

// CacheStorage implements interfaces.SemanticCacheStore: classifications
// keyed by semantic hash with a short (default 1 hour) TTL, letting the
// Analyzer skip the LLM call for a hash it has seen recently.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	ttl    time.Duration
}

// NewCacheStorage creates a new CacheStorage instance.
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger, ttl time.Duration) interfaces.SemanticCacheStore {
	return &CacheStorage{db: db, logger: logger, ttl: ttl}
}

func (s *CacheStorage) Get(ctx context.Context, semanticHash string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(semanticHash, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if time.Since(entry.CachedAt) > s.ttl {
		return nil, interfaces.ErrNotFound
	}
	return &entry, nil
}

func (s *CacheStorage) Put(ctx context.Context, entry *models.CacheEntry) error {
	if entry.SemanticHash == "" {
		return fmt.Errorf("cache entry semantic_hash is required")
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now()
	}
	if err := s.db.Store().Upsert(entry.SemanticHash, entry); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}
