package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/dlq-recover/internal/models"
)

// ErrNotFound is returned by Get-style lookups when the key is absent.
var ErrNotFound = errors.New("not found")

// LedgerStore is the deduplication/retry-accounting store the Monitor owns (§3 Dedup Ledger).
type LedgerStore interface {
	Get(ctx context.Context, sourceQueue, messageID string) (*models.LedgerEntry, error)
	// Upsert performs the conditional-read-then-write described in §4.1: mutate receives
	// the current entry (nil if absent) and returns the entry to persist.
	Upsert(ctx context.Context, sourceQueue, messageID string, mutate func(existing *models.LedgerEntry) *models.LedgerEntry) (*models.LedgerEntry, error)
}

// RecordStore is the classification-record audit store (§3 Classification Record),
// exposing the secondary indexes named in §6.
type RecordStore interface {
	Put(ctx context.Context, rec *models.Record) error
	Get(ctx context.Context, messageID string) (*models.Record, error)
	// CountByQueueSince counts records for sourceQueue with Timestamp >= since.
	CountByQueueSince(ctx context.Context, sourceQueue string, since time.Time) (int, error)
	// ByDeploymentSince returns records attributed to suspectedDeployment with
	// Timestamp >= since, newest first - the by-deployment-by-timestamp index.
	ByDeploymentSince(ctx context.Context, suspectedDeployment string, since time.Time) ([]models.Record, error)
	// UpdateOutcome performs the Executor's idempotent outcome write-back.
	UpdateOutcome(ctx context.Context, messageID string, mutate func(rec *models.Record)) error
}

// SemanticCacheStore is the cross-message classification cache (§3 Semantic-Cache Entry).
type SemanticCacheStore interface {
	Get(ctx context.Context, semanticHash string) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error
}

// DeploymentStore resolves recent deployments for a service within a lookback window (§4.1 enrichment).
type DeploymentStore interface {
	RecentDeployments(ctx context.Context, affectedService string, window time.Duration) ([]models.Deployment, error)
}

// ObjectStore is the archive destination for poison-pill messages (§4.3 Archive handler).
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body []byte, metadata map[string]string) error
}

// AlertPublisher is the pub/sub topic used to raise poison-pill alerts (§4.3).
type AlertPublisher interface {
	Publish(ctx context.Context, subject, body string) error
}

// IncidentRequest is the payload posted to the incident API (§4.3 Escalate handler).
type IncidentRequest struct {
	Summary  string
	Severity string
	Source   string
	Details  map[string]interface{}
	DedupKey string
}

// IncidentClient posts systemic-failure incidents and returns the acknowledged dedup key.
type IncidentClient interface {
	PostIncident(ctx context.Context, req IncidentRequest) (dedupKey string, err error)
}
