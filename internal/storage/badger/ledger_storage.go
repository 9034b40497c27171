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

// LedgerStorage implements interfaces.LedgerStore on top of BadgerDB. Entries
// are keyed by "<sourceQueue>/<messageID>" so a single Get/Upsert pair covers
// the Monitor's dedup-and-hard-cap check for one message in one queue.
type LedgerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	ttl    time.Duration
}

// NewLedgerStorage creates a new LedgerStorage instance. ttl is the retention
// window after which an entry is considered expired for dedup purposes
// (default 7 days).
func NewLedgerStorage(db *BadgerDB, logger arbor.ILogger, ttl time.Duration) interfaces.LedgerStore {
	return &LedgerStorage{db: db, logger: logger, ttl: ttl}
}

func (s *LedgerStorage) Get(ctx context.Context, sourceQueue, messageID string) (*models.LedgerEntry, error) {
	key := models.LedgerKey(sourceQueue, messageID)
	var entry models.LedgerEntry
	err := s.db.Store().Get(key, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if time.Now().After(entry.TTL) {
		return nil, interfaces.ErrNotFound
	}
	return &entry, nil
}

// Upsert reads the existing entry (if any, and not expired), passes it to
// mutate, and stores the result; the read and the write are two separate
// store calls, not one transaction. mutate receives nil when no
// live entry exists, letting the caller distinguish "first sighting" from
// "seen before" without a separate existence check.
func (s *LedgerStorage) Upsert(ctx context.Context, sourceQueue, messageID string, mutate func(existing *models.LedgerEntry) *models.LedgerEntry) (*models.LedgerEntry, error) {
	key := models.LedgerKey(sourceQueue, messageID)

	var existing models.LedgerEntry
	err := s.db.Store().Get(key, &existing)
	var existingPtr *models.LedgerEntry
	switch {
	case err == nil:
		if time.Now().Before(existing.TTL) {
			existingPtr = &existing
		}
	case err == badgerhold.ErrNotFound:
		existingPtr = nil
	default:
		return nil, fmt.Errorf("failed to read ledger entry: %w", err)
	}

	updated := mutate(existingPtr)
	if updated == nil {
		return nil, fmt.Errorf("ledger mutate returned nil for key %s", key)
	}
	updated.Key = key
	updated.SourceQueue = sourceQueue
	updated.MessageID = messageID
	if updated.TTL.IsZero() {
		updated.TTL = time.Now().Add(s.ttl)
	}

	if err := s.db.Store().Upsert(key, updated); err != nil {
		return nil, fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return updated, nil
}
