// Package monitor implements the pipeline's first stage: discover DLQs,
// poll each in parallel, deduplicate against the Ledger, enrich with
// context, publish MessageEnriched and only then delete the source
// message (§4.1).
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
	"github.com/ternarybob/dlq-recover/internal/services/errorpattern"
)

// Service is the Monitor stage of the pipeline.
type Service struct {
	discovery   interfaces.DiscoveryService
	ledger      interfaces.LedgerStore
	records     interfaces.RecordStore
	deployments interfaces.DeploymentStore
	bus         interfaces.EventBus
	logger      arbor.ILogger

	namePattern        string
	maxMessagesPerPoll int
	visibilityTimeout  time.Duration
	longPollWait       time.Duration
	hardCap            int
	deploymentWindow   time.Duration
}

// Config bundles the Monitor's tunables, read from common.Config.Monitor.
type Config struct {
	DLQNamePattern     string
	MaxMessagesPerPoll int
	VisibilityTimeout  time.Duration
	LongPollWait       time.Duration
	HardCap            int
	DeploymentWindow   time.Duration
}

// NewService wires the Monitor's collaborators.
func NewService(
	discovery interfaces.DiscoveryService,
	ledger interfaces.LedgerStore,
	records interfaces.RecordStore,
	deployments interfaces.DeploymentStore,
	bus interfaces.EventBus,
	logger arbor.ILogger,
	cfg Config,
) *Service {
	return &Service{
		discovery:          discovery,
		ledger:             ledger,
		records:            records,
		deployments:        deployments,
		bus:                bus,
		logger:             logger,
		namePattern:        cfg.DLQNamePattern,
		maxMessagesPerPoll: cfg.MaxMessagesPerPoll,
		visibilityTimeout:  cfg.VisibilityTimeout,
		longPollWait:       cfg.LongPollWait,
		hardCap:            cfg.HardCap,
		deploymentWindow:   cfg.DeploymentWindow,
	}
}

// Run performs one Monitor invocation: discover, poll every queue in
// parallel, process each queue's messages sequentially. No per-queue
// failure aborts the others (§4.1 Poll contract).
func (s *Service) Run(ctx context.Context) error {
	invocationID := common.NewInvocationID()
	log := s.logger.WithCorrelationId(invocationID)

	queues, err := s.discovery.DiscoverDLQs(ctx, s.namePattern)
	if err != nil {
		log.Error().Err(err).Str("pattern", s.namePattern).Msg("DLQ discovery failed, treating as empty")
		return nil
	}
	log.Info().Int("queue_count", len(queues)).Msg("monitor invocation starting")

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		q := q
		common.SafeGo(log, "monitor.poll."+q.Name(), func() {
			defer wg.Done()
			s.pollQueue(ctx, log, q)
		})
	}
	wg.Wait()

	log.Info().Msg("monitor invocation complete")
	return nil
}

// pollQueue drains up to maxMessagesPerPoll from a single DLQ and processes
// each message sequentially, keeping per-queue ledger writes simple (§5).
func (s *Service) pollQueue(ctx context.Context, log arbor.ILogger, q interfaces.QueueService) {
	messages, err := q.Receive(ctx, s.maxMessagesPerPoll, s.longPollWait, s.visibilityTimeout)
	if err != nil {
		log.Error().Err(err).Str("queue", q.Name()).Msg("poll failed, isolated from other queues")
		return
	}

	for _, msg := range messages {
		if err := s.processMessage(ctx, log, q, msg); err != nil {
			log.Error().Err(err).Str("queue", q.Name()).Str("message_id", msg.MessageID).Msg("message processing failed")
		}
	}
}

// processMessage applies dedup/hard-cap, enrichment, publish, then delete
// (§4.1 Deduplication & retry accounting, Enrichment, Publish, Delete).
func (s *Service) processMessage(ctx context.Context, log arbor.ILogger, q interfaces.QueueService, msg interfaces.QueueMessage) error {
	now := time.Now()

	// The hard-cap boundary is decided on the stored (pre-increment)
	// retry_count: a message only gets incremented-and-proceeds while the
	// stored value is below hardCap; at or above hardCap it is left
	// untouched and dropped (§4.1, §8).
	capped := false
	entry, err := s.ledger.Upsert(ctx, q.Name(), msg.MessageID, func(existing *models.LedgerEntry) *models.LedgerEntry {
		if existing == nil {
			return &models.LedgerEntry{
				FirstSeenAt: now,
				LastSeenAt:  now,
				RetryCount:  0,
			}
		}
		if existing.RetryCount >= s.hardCap {
			capped = true
			return existing
		}
		existing.LastSeenAt = now
		existing.RetryCount++
		return existing
	})
	if err != nil {
		// Ledger unavailability fails open: proceed as first-seen rather than
		// drop the message (§4.1: "favors duplicate work over data loss").
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("ledger unavailable, failing open as first-seen")
		entry = &models.LedgerEntry{FirstSeenAt: now, LastSeenAt: now, RetryCount: 0}
		capped = false
	}

	if capped {
		log.Warn().
			Str("message_id", msg.MessageID).
			Str("queue", q.Name()).
			Int("retry_count", entry.RetryCount).
			Msg("runaway loop detected, dropping message at hard cap")
		return q.Delete(ctx, msg.ReceiptToken)
	}

	enriched := s.enrich(ctx, log, q, msg, entry)

	event := interfaces.Event{
		Type: interfaces.EventMessageEnriched,
		Payload: models.MessageEnrichedEvent{
			Source:  "monitor",
			Message: enriched,
		},
	}

	if err := s.bus.Publish(ctx, event); err != nil {
		// Must not delete on publish failure; the message is re-received
		// after its visibility timeout (§4.1 Publish, §3 invariant 4).
		return fmt.Errorf("publish failed, message will be re-received: %w", err)
	}

	return q.Delete(ctx, msg.ReceiptToken)
}

// enrich builds the EnrichedMessage from the message body, the ledger entry
// already written above, the record store's similar-failure count, and the
// deployment store's recent-deployment window (§4.1 Enrichment).
func (s *Service) enrich(ctx context.Context, log arbor.ILogger, q interfaces.QueueService, msg interfaces.QueueMessage, entry *models.LedgerEntry) models.EnrichedMessage {
	now := time.Now()
	pattern := errorpattern.Parse(msg.Body, q.Name())

	similar := 0
	if s.records != nil {
		count, err := s.records.CountByQueueSince(ctx, q.Name(), now.Add(-time.Hour))
		if err != nil {
			log.Warn().Err(err).Str("queue", q.Name()).Msg("similar-failure count query failed, using 0")
		} else {
			similar = count - 1
			if similar < 0 {
				similar = 0
			}
		}
	}

	var deployments []models.Deployment
	if s.deployments != nil {
		recent, err := s.deployments.RecentDeployments(ctx, pattern.AffectedService, s.deploymentWindow)
		if err != nil {
			log.Debug().Err(err).Str("service", pattern.AffectedService).Msg("deployment lookup failed, treating as absent")
		} else {
			deployments = recent
		}
	}

	return models.EnrichedMessage{
		MessageID:               msg.MessageID,
		ReceiptToken:            msg.ReceiptToken,
		SourceQueue:             q.Name(),
		Body:                    msg.Body,
		ReceiveCount:            msg.ReceiveCount,
		FirstSeenAt:             entry.FirstSeenAt.UnixMilli(),
		LastFailedAt:            entry.LastSeenAt.UnixMilli(),
		RetryCount:              entry.RetryCount,
		SimilarFailuresLastHour: similar,
		RecentDeployments:       deployments,
		ErrorPattern:            pattern,
	}
}
