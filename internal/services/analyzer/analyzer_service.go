// Package analyzer implements the pipeline's decision engine: turn one
// enriched message into one classification record and one MessageClassified
// event via the layered cache -> heuristics -> LLM pipeline (§4.2).
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
	"github.com/ternarybob/dlq-recover/internal/services/fingerprint"
)

// Service is the Analyzer stage of the pipeline.
type Service struct {
	cache   interfaces.CacheService
	records interfaces.RecordStore
	llm     interfaces.LLMService
	bus     interfaces.EventBus
	logger  arbor.ILogger

	confidenceThreshold float64
	systemicMinSimilar  int
	cacheTTL            time.Duration
	recordTTL           time.Duration
	llmEnabled          bool
}

// Config bundles the Analyzer's tunables, read from common.Config.Analyzer.
type Config struct {
	ConfidenceThreshold float64
	SystemicMinSimilar  int
	CacheTTL            time.Duration
	RecordTTL           time.Duration
	LLMEnabled          bool
}

// NewService wires the Analyzer's collaborators. llm may be nil when
// llm_classification_enabled is false; the pipeline then takes the
// heuristic/fallback paths exclusively (§6 "disabling llm forces fallback path").
func NewService(
	cache interfaces.CacheService,
	records interfaces.RecordStore,
	llm interfaces.LLMService,
	bus interfaces.EventBus,
	logger arbor.ILogger,
	cfg Config,
) *Service {
	return &Service{
		cache:               cache,
		records:             records,
		llm:                 llm,
		bus:                 bus,
		logger:              logger,
		confidenceThreshold: cfg.ConfidenceThreshold,
		systemicMinSimilar:  cfg.SystemicMinSimilar,
		cacheTTL:            cfg.CacheTTL,
		recordTTL:           cfg.RecordTTL,
		llmEnabled:          cfg.LLMEnabled && llm != nil,
	}
}

// HandleMessageEnriched is the EventBus subscriber entrypoint for
// MessageEnriched events.
func (s *Service) HandleMessageEnriched(ctx context.Context, event interfaces.Event) error {
	enriched, ok := event.Payload.(models.MessageEnrichedEvent)
	if !ok {
		return fmt.Errorf("analyzer: unexpected payload type %T for MessageEnriched", event.Payload)
	}
	return s.Classify(ctx, enriched.Message)
}

// Classify runs the decision pipeline for one enriched message, persists the
// resulting record, and publishes MessageClassified (§4.2).
func (s *Service) Classify(ctx context.Context, msg models.EnrichedMessage) error {
	invocationID := common.NewInvocationID()
	log := s.logger.WithCorrelationId(invocationID)

	hash := fingerprint.Compute(msg.ErrorPattern)
	classification, cacheHit := s.resolveClassification(ctx, log, msg, hash)

	rec := &models.Record{
		MessageID:            msg.MessageID,
		Timestamp:            time.Now(),
		SourceQueue:          msg.SourceQueue,
		Category:             classification.Category,
		Confidence:           classification.Confidence,
		Reasoning:            classification.Reasoning,
		ModelTag:             classification.ModelTag,
		Tokens:               classification.Tokens,
		ActionTaken:          classification.Recommended.Action,
		Outcome:              models.OutcomePending,
		RetryCount:           msg.RetryCount,
		SimilarFailuresCount: msg.SimilarFailuresLastHour,
		SemanticHash:         hash,
		TTL:                  time.Now().Add(s.recordTTL),
	}
	if len(msg.RecentDeployments) > 0 {
		rec.SuspectedDeployment = msg.RecentDeployments[0].Version
	}

	if err := s.records.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist classification record: %w", err)
	}

	if !cacheHit {
		if err := s.cache.Store(ctx, hash, classification); err != nil {
			log.Warn().Err(err).Str("hash", hash).Msg("semantic-cache write failed, continuing")
		}
	}

	detailType := models.DetailTypeForCategory(classification.Category)
	event := interfaces.Event{
		Type: interfaces.EventMessageClassified,
		Payload: models.MessageClassifiedEvent{
			Source:         "analyzer",
			DetailType:     detailType,
			Message:        msg,
			Classification: classification,
		},
	}

	if err := s.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish MessageClassified: %w", err)
	}

	log.Info().
		Str("message_id", msg.MessageID).
		Str("category", string(classification.Category)).
		Float64("confidence", classification.Confidence).
		Str("model_tag", classification.ModelTag).
		Msg("message classified")

	return nil
}

// resolveClassification runs cache -> heuristics -> LLM -> fallback in order
// and reports whether the result came from the cache (so the caller skips
// re-writing it).
func (s *Service) resolveClassification(ctx context.Context, log arbor.ILogger, msg models.EnrichedMessage, hash string) (models.Classification, bool) {
	if cached, ok := s.cache.Lookup(ctx, hash, s.cacheTTL); ok {
		result := *cached
		result.ModelTag = models.ModelTagCache
		return result, true
	}

	if result, ok := s.deploymentCorrelation(msg); ok {
		return result, false
	}

	if r := matchRuleTable(msg.ErrorPattern.Message, s.confidenceThreshold); r != nil {
		return models.Classification{
			Category:    r.category,
			Confidence:  r.confidence,
			Reasoning:   r.reasoning,
			ModelTag:    models.ModelTagHeuristic,
			Recommended: recommendedAction(r.category, msg.RetryCount),
		}, false
	}

	if s.llmEnabled {
		return s.classifyWithLLM(ctx, log, msg)
	}

	return s.fallback(msg.RetryCount), false
}

// deploymentCorrelation is the Analyzer's first heuristic stage (§4.2 step 3):
// a spike of similar failures coinciding with a recent deployment is SYSTEMIC
// regardless of the error text.
func (s *Service) deploymentCorrelation(msg models.EnrichedMessage) (models.Classification, bool) {
	if msg.SimilarFailuresLastHour >= s.systemicMinSimilar && len(msg.RecentDeployments) > 0 {
		return models.Classification{
			Category:    models.CategorySystemic,
			Confidence:  0.92,
			Reasoning:   "spike correlated with recent deployment",
			ModelTag:    models.ModelTagHeuristic,
			Recommended: recommendedAction(models.CategorySystemic, msg.RetryCount),
		}, true
	}
	return models.Classification{}, false
}

// classifyWithLLM builds the prompt, calls the LLM under a hard timeout, and
// parses the strict JSON response, falling back to the conservative SYSTEMIC
// result on any failure (§4.2 steps 4-5).
func (s *Service) classifyWithLLM(ctx context.Context, log arbor.ILogger, msg models.EnrichedMessage) (models.Classification, bool) {
	prompt := buildPrompt(msg)

	raw, err := s.llm.Chat(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("LLM call failed, taking fallback path")
		return s.fallback(msg.RetryCount), false
	}

	category, confidence, reasoning, err := parseLLMResponse(raw)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("LLM response invalid, taking fallback path")
		return s.fallback(msg.RetryCount), false
	}

	inputTokens := 0
	for _, m := range prompt {
		inputTokens += estimateTokens(m.Content)
	}

	return models.Classification{
		Category:   category,
		Confidence: confidence,
		Reasoning:  reasoning,
		ModelTag:   s.llmModelTag(),
		Tokens: models.TokenUsage{
			Input:  inputTokens,
			Output: estimateTokens(raw),
		},
		Recommended: recommendedAction(category, msg.RetryCount),
	}, false
}

// llmModelTag reports the model identifier used for model_tag when the LLM
// path produced the classification (§3: "heuristic, cache, fallback, or LLM
// model identifier").
func (s *Service) llmModelTag() string {
	if tagged, ok := s.llm.(interface{ ModelTag() string }); ok {
		return tagged.ModelTag()
	}
	return "llm"
}

// fallback is the conservative result taken whenever the LLM call fails,
// times out, or returns invalid output (§4.2 step 5).
func (s *Service) fallback(retryCount int) models.Classification {
	return models.Classification{
		Category:    models.CategorySystemic,
		Confidence:  0.6,
		Reasoning:   "LLM classification failed, requires human review",
		ModelTag:    models.ModelTagFallback,
		Recommended: recommendedAction(models.CategorySystemic, retryCount),
	}
}

// recommendedAction computes the deterministic recommended action from a
// category (§4.2 "Recommended action").
func recommendedAction(category models.Category, retryCount int) models.RecommendedAction {
	switch category {
	case models.CategoryTransient:
		return models.RecommendedAction{
			Action:      models.ActionReplayed,
			RetryDelayS: backoffSeconds(retryCount, 30, 900),
			MaxRetries:  3,
			HumanReview: false,
		}
	case models.CategoryPoisonPill:
		return models.RecommendedAction{
			Action:      models.ActionArchived,
			HumanReview: true,
		}
	case models.CategorySystemic:
		return models.RecommendedAction{
			Action:      models.ActionEscalated,
			Severity:    "P1",
			HumanReview: true,
		}
	default:
		return models.RecommendedAction{}
	}
}

// backoffSeconds computes min(base * 2^retryCount, max) (§4.2, §8 boundary
// behavior: saturates at 900 for retry_count >= 5 when base=30, max=900).
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
