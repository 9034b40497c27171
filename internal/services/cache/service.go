// Package cache implements the Analyzer's semantic-cache freshness check
// (classification pipeline step 2): a classification keyed by semantic hash
// is reused as-is if it was cached within the configured TTL, skipping both
// the heuristic and LLM stages.
package cache

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
)

// Service implements interfaces.CacheService over a SemanticCacheStore.
type Service struct {
	store  interfaces.SemanticCacheStore
	logger arbor.ILogger
}

// NewService creates a new semantic cache service.
func NewService(store interfaces.SemanticCacheStore, logger arbor.ILogger) *Service {
	return &Service{store: store, logger: logger}
}

// Lookup returns the cached classification for hash if one exists and was
// cached within ttl. The store itself expires entries past its own TTL, but
// callers may request a tighter window (e.g. a cold-start sanity check).
func (s *Service) Lookup(ctx context.Context, hash string, ttl time.Duration) (*models.Classification, bool) {
	entry, err := s.store.Get(ctx, hash)
	if err != nil {
		return nil, false
	}
	if ttl > 0 && time.Since(entry.CachedAt) > ttl {
		return nil, false
	}

	s.logger.Debug().
		Str("semantic_hash", hash).
		Str("category", string(entry.Result.Category)).
		Msg("semantic cache hit")

	result := entry.Result
	return &result, true
}

// Store records a classification under its semantic hash for future reuse.
func (s *Service) Store(ctx context.Context, hash string, result models.Classification) error {
	entry := &models.CacheEntry{
		SemanticHash: hash,
		Result:       result,
		CachedAt:     time.Now(),
	}
	if err := s.store.Put(ctx, entry); err != nil {
		return err
	}
	s.logger.Debug().Str("semantic_hash", hash).Msg("semantic cache stored")
	return nil
}

var _ interfaces.CacheService = (*Service)(nil)
