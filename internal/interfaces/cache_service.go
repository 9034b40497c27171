// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/dlq-recover/internal/models"
)

// CacheService provides semantic-cache freshness checking for the Analyzer's
// decision pipeline (§4.2 step 2). It wraps a SemanticCacheStore with the
// TTL-freshness rule so callers never duplicate "now - cached_at <= ttl" logic.
type CacheService interface {
	// Lookup returns a cached Classification for hash if present and fresh.
	// Read failures and misses are both reported as (nil, false) - the caller
	// treats a cache failure the same as a miss (§4.2: "Cache read failures are
	// silently treated as misses").
	Lookup(ctx context.Context, hash string, ttl time.Duration) (*models.Classification, bool)

	// Store records a fresh classification result for hash. Failures are
	// non-fatal to the caller (§4.2: "cache write fails" does not block publish).
	Store(ctx context.Context, hash string, result models.Classification) error
}
