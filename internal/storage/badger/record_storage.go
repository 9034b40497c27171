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

// RecordStorage implements interfaces.RecordStore. Classification records are
// keyed by message_id with secondary indexes on Timestamp, SourceQueue,
// Category, SuspectedDeployment and SemanticHash (badgerhold:"index" tags on
// models.Record), so the by-queue, by-category, by-deployment and
// by-semantic-hash lookups the Analyzer and Executor need never do a full
// scan.
type RecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	ttl    time.Duration
}

// NewRecordStorage creates a new RecordStorage instance. ttl is the record
// retention window (default 30 days).
func NewRecordStorage(db *BadgerDB, logger arbor.ILogger, ttl time.Duration) interfaces.RecordStore {
	return &RecordStorage{db: db, logger: logger, ttl: ttl}
}

func (s *RecordStorage) Put(ctx context.Context, rec *models.Record) error {
	if rec.MessageID == "" {
		return fmt.Errorf("record message_id is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.TTL.IsZero() {
		rec.TTL = rec.Timestamp.Add(s.ttl)
	}
	if err := s.db.Store().Upsert(rec.MessageID, rec); err != nil {
		return fmt.Errorf("failed to put classification record: %w", err)
	}
	return nil
}

func (s *RecordStorage) Get(ctx context.Context, messageID string) (*models.Record, error) {
	var rec models.Record
	err := s.db.Store().Get(messageID, &rec)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification record: %w", err)
	}
	return &rec, nil
}

// CountByQueueSince counts records for a queue with Timestamp >= since. Used
// by the Monitor's enrichment to fill similar_failures_last_hour, which the
// Analyzer's systemic heuristic reads (§4.2 step 3).
func (s *RecordStorage) CountByQueueSince(ctx context.Context, sourceQueue string, since time.Time) (int, error) {
	count, err := s.db.Store().Count(&models.Record{}, badgerhold.Where("SourceQueue").Eq(sourceQueue).And("Timestamp").Ge(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count records by queue: %w", err)
	}
	return int(count), nil
}

// ByDeploymentSince returns records attributed to suspectedDeployment with
// Timestamp >= since, newest first. Used by incident/rollback triage to find
// every failure correlated with one deployment (§6 by-deployment-by-
// timestamp index).
func (s *RecordStorage) ByDeploymentSince(ctx context.Context, suspectedDeployment string, since time.Time) ([]models.Record, error) {
	var recs []models.Record
	err := s.db.Store().Find(&recs, badgerhold.Where("SuspectedDeployment").Eq(suspectedDeployment).And("Timestamp").Ge(since).SortBy("Timestamp").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to find records by deployment: %w", err)
	}
	return recs, nil
}

// UpdateOutcome reads the existing record, lets mutate adjust it in place
// (outcome, retry_count, archive_location, incident_key, ...) and writes it
// back. Returns ErrNotFound if the record doesn't exist - the Executor must
// classify before it can update an outcome.
func (s *RecordStorage) UpdateOutcome(ctx context.Context, messageID string, mutate func(rec *models.Record)) error {
	rec, err := s.Get(ctx, messageID)
	if err != nil {
		return err
	}
	mutate(rec)
	if err := s.db.Store().Upsert(messageID, rec); err != nil {
		return fmt.Errorf("failed to update record outcome: %w", err)
	}
	return nil
}
