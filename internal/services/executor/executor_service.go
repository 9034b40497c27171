// Package executor implements the pipeline's dispatch stage: consume
// MessageClassified, run exactly one of the three action handlers keyed on
// category, and record the outcome (§4.3).
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
)

// Service is the Executor stage of the pipeline.
type Service struct {
	discovery interfaces.DiscoveryService
	records   interfaces.RecordStore
	objects   interfaces.ObjectStore
	alerts    interfaces.AlertPublisher
	incidents interfaces.IncidentClient
	logger    arbor.ILogger

	maxRetries        int
	backoffBaseS      int
	backoffMaxS       int
	autoReplayEnabled bool
	incidentsEnabled  bool
	projectName       string
}

// Config bundles the Executor's tunables, read from common.Config.Executor.
type Config struct {
	MaxRetries        int
	BackoffBaseS      int
	BackoffMaxS       int
	AutoReplayEnabled bool
	IncidentsEnabled  bool
	ProjectName       string
}

// NewService wires the Executor's collaborators.
func NewService(
	discovery interfaces.DiscoveryService,
	records interfaces.RecordStore,
	objects interfaces.ObjectStore,
	alerts interfaces.AlertPublisher,
	incidents interfaces.IncidentClient,
	logger arbor.ILogger,
	cfg Config,
) *Service {
	return &Service{
		discovery:         discovery,
		records:           records,
		objects:           objects,
		alerts:            alerts,
		incidents:         incidents,
		logger:            logger,
		maxRetries:        cfg.MaxRetries,
		backoffBaseS:      cfg.BackoffBaseS,
		backoffMaxS:       cfg.BackoffMaxS,
		autoReplayEnabled: cfg.AutoReplayEnabled,
		incidentsEnabled:  cfg.IncidentsEnabled,
		projectName:       cfg.ProjectName,
	}
}

// HandleMessageClassified is the EventBus subscriber entrypoint for
// MessageClassified events.
func (s *Service) HandleMessageClassified(ctx context.Context, event interfaces.Event) error {
	classified, ok := event.Payload.(models.MessageClassifiedEvent)
	if !ok {
		return fmt.Errorf("executor: unexpected payload type %T for MessageClassified", event.Payload)
	}
	return s.Dispatch(ctx, classified.Message, classified.Classification)
}

// Dispatch routes by category to exactly one action handler (§4.3 Dispatch).
// An unknown category is fatal so the bus retries the event, guarding
// against corrupted events (§7 taxonomy).
func (s *Service) Dispatch(ctx context.Context, msg models.EnrichedMessage, classification models.Classification) error {
	invocationID := common.NewInvocationID()
	log := s.logger.WithCorrelationId(invocationID)

	switch classification.Category {
	case models.CategoryTransient:
		return s.handleRetry(ctx, log, msg, classification)
	case models.CategoryPoisonPill:
		return s.handleArchive(ctx, log, msg, classification)
	case models.CategorySystemic:
		return s.handleEscalate(ctx, log, msg, classification)
	default:
		return fmt.Errorf("executor: unknown classification category %q for message %s", classification.Category, msg.MessageID)
	}
}

// handleRetry re-enqueues the message into its original queue with
// exponential backoff, or records a terminal FAILED outcome at the
// Executor's own hard cap (§4.3 Retry handler).
func (s *Service) handleRetry(ctx context.Context, log arbor.ILogger, msg models.EnrichedMessage, classification models.Classification) error {
	if !s.autoReplayEnabled {
		log.Info().Str("message_id", msg.MessageID).Msg("auto-replay disabled, recording pending without re-enqueue")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomePending, nil)
	}

	if msg.RetryCount >= s.maxRetries {
		log.Warn().
			Str("message_id", msg.MessageID).
			Int("retry_count", msg.RetryCount).
			Msg("executor hard cap reached, not re-enqueuing")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, func(rec *models.Record) {
			rec.Reasoning = "max retries"
		})
	}

	// Idempotency guard against duplicate MessageClassified delivery (§5, §8):
	// a retry already scheduled for this message_id must not be re-enqueued a
	// second time. RetryScheduledFor is only ever set after a successful
	// SendWithDelay below, so its presence means an earlier delivery already
	// did the enqueue.
	if existing, err := s.records.Get(ctx, msg.MessageID); err == nil && existing.RetryScheduledFor != nil {
		log.Info().
			Str("message_id", msg.MessageID).
			Str("retry_scheduled_for", existing.RetryScheduledFor.Format(time.RFC3339)).
			Msg("retry already scheduled, skipping duplicate re-enqueue")
		return nil
	}

	delay := classification.Recommended.RetryDelayS
	if delay <= 0 {
		delay = backoffSeconds(msg.RetryCount, s.backoffBaseS, s.backoffMaxS)
	}
	if delay > s.backoffMaxS {
		delay = s.backoffMaxS
	}

	original, err := s.discovery.Original(ctx, msg.SourceQueue)
	if err != nil {
		log.Error().Err(err).Str("source_queue", msg.SourceQueue).Msg("could not resolve original queue")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, func(rec *models.Record) {
			rec.Reasoning = fmt.Sprintf("could not resolve original queue: %v", err)
		})
	}

	attrs := map[string]string{
		"retryCount":             fmt.Sprintf("%d", msg.RetryCount+1),
		"originalMessageId":      msg.MessageID,
		"classificationCategory": string(classification.Category),
	}

	if err := original.SendWithDelay(ctx, msg.Body, attrs, time.Duration(delay)*time.Second); err != nil {
		log.Error().Err(err).Str("message_id", msg.MessageID).Msg("re-enqueue failed")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, nil)
	}

	scheduledFor := time.Now().Add(time.Duration(delay) * time.Second)
	return s.recordOutcome(ctx, msg.MessageID, models.OutcomePending, func(rec *models.Record) {
		rec.RetryScheduledFor = &scheduledFor
	})
}

// handleArchive writes the poison-pill payload to the object store, then
// alerts. The archive write must succeed before the alert is published
// (§4.3 Archive handler).
func (s *Service) handleArchive(ctx context.Context, log arbor.ILogger, msg models.EnrichedMessage, classification models.Classification) error {
	key := archiveKey(msg.SourceQueue, msg.MessageID)
	body, err := buildArchiveObject(msg, classification)
	if err != nil {
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, func(rec *models.Record) {
			rec.Reasoning = fmt.Sprintf("failed to build archive payload: %v", err)
		})
	}

	metadata := map[string]string{
		"message-id":   msg.MessageID,
		"source-queue": msg.SourceQueue,
		"category":     string(classification.Category),
		"confidence":   fmt.Sprintf("%.2f", classification.Confidence),
	}

	if err := s.objects.Put(ctx, key, "application/json", body, metadata); err != nil {
		log.Error().Err(err).Str("key", key).Msg("archive write failed")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, nil)
	}

	excerpt := msg.ErrorPattern.Message
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	subject := fmt.Sprintf("Poison Pill Detected: %s", msg.SourceQueue)
	alertBody := fmt.Sprintf("archive location: %s\nerror: %s", key, excerpt)

	if err := s.alerts.Publish(ctx, subject, alertBody); err != nil {
		// Alert-publish failure fails the outcome even though the archive
		// write already succeeded, and the error is returned so the event
		// bus retries; the archive write is idempotent under that retry (§4.3).
		log.Error().Err(err).Str("key", key).Msg("alert publish failed")
		if recErr := s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, func(rec *models.Record) {
			rec.ArchiveLocation = key
		}); recErr != nil {
			return recErr
		}
		return fmt.Errorf("alert publish failed for %s: %w", msg.MessageID, err)
	}

	return s.recordOutcome(ctx, msg.MessageID, models.OutcomeSuccess, func(rec *models.Record) {
		rec.ArchiveLocation = key
	})
}

// handleEscalate posts a deduplicated incident for a systemic failure
// (§4.3 Escalate handler).
func (s *Service) handleEscalate(ctx context.Context, log arbor.ILogger, msg models.EnrichedMessage, classification models.Classification) error {
	if !s.incidentsEnabled {
		log.Info().Str("message_id", msg.MessageID).Msg("incident integration disabled, recording without posting")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomePending, nil)
	}

	severity := severityFor(classification.Recommended.Severity)
	dedupKey := incidentDedupKey(s.projectName, msg.SourceQueue, msg.ErrorPattern.Type)

	req := interfaces.IncidentRequest{
		Summary:  fmt.Sprintf("Systemic failure detected in %s", msg.SourceQueue),
		Severity: severity,
		Source:   incidentSource(s.projectName, msg.SourceQueue),
		DedupKey: dedupKey,
		Details: map[string]interface{}{
			"message_id":             msg.MessageID,
			"source_queue":           msg.SourceQueue,
			"error_type":             msg.ErrorPattern.Type,
			"similar_failures_count": msg.SimilarFailuresLastHour,
			"recent_deployments":     msg.RecentDeployments,
			"retry_count":            msg.RetryCount,
			"reasoning":              classification.Reasoning,
			"recommended_action":     classification.Recommended.Action,
		},
	}

	incidentKey, err := s.incidents.PostIncident(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("dedup_key", dedupKey).Msg("incident post failed")
		return s.recordOutcome(ctx, msg.MessageID, models.OutcomeFailed, nil)
	}

	return s.recordOutcome(ctx, msg.MessageID, models.OutcomeSuccess, func(rec *models.Record) {
		rec.IncidentKey = incidentKey
	})
}

// recordOutcome performs the Executor's idempotent outcome write-back
// (§4.3 Outcome write-back). extra may set an action-specific field.
func (s *Service) recordOutcome(ctx context.Context, messageID string, outcome models.Outcome, extra func(rec *models.Record)) error {
	return s.records.UpdateOutcome(ctx, messageID, func(rec *models.Record) {
		rec.Outcome = outcome
		if extra != nil {
			extra(rec)
		}
	})
}

// backoffSeconds computes min(base * 2^retryCount, max), mirroring the
// Analyzer's recommendation so the Executor can fall back to it when the
// record carries no explicit retry_delay_s.
func backoffSeconds(retryCount, base, max int) int {
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// severityFor maps the Analyzer's P1/P2/P3 severity to the incident API's
// vocabulary, defaulting to "error" (§4.3 Escalate handler).
func severityFor(severity string) string {
	switch severity {
	case "P1":
		return "critical"
	case "P2":
		return "error"
	case "P3":
		return "warning"
	default:
		return "error"
	}
}

// incidentDedupKey derives the deterministic dedup key that coalesces
// repeated systemic-failure reports into one open incident (§4.3, §6, §9).
func incidentDedupKey(project, sourceQueue, errorType string) string {
	return fmt.Sprintf("%s-systemic-%s-%s", project, sourceQueue, errorType)
}

// incidentSource derives the incident's source identifier (§4.3).
func incidentSource(project, sourceQueue string) string {
	return fmt.Sprintf("%s-dlq-%s", project, sourceQueue)
}
