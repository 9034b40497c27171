package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
)

type stubCache struct {
	hit    *models.Classification
	stored map[string]models.Classification
}

func newStubCache() *stubCache {
	return &stubCache{stored: make(map[string]models.Classification)}
}

func (s *stubCache) Lookup(ctx context.Context, hash string, ttl time.Duration) (*models.Classification, bool) {
	if s.hit != nil {
		return s.hit, true
	}
	return nil, false
}

func (s *stubCache) Store(ctx context.Context, hash string, result models.Classification) error {
	s.stored[hash] = result
	return nil
}

type stubRecords struct {
	put []*models.Record
}

func (s *stubRecords) Put(ctx context.Context, rec *models.Record) error {
	s.put = append(s.put, rec)
	return nil
}
func (s *stubRecords) Get(ctx context.Context, messageID string) (*models.Record, error) {
	return nil, interfaces.ErrNotFound
}
func (s *stubRecords) CountByQueueSince(ctx context.Context, sourceQueue string, since time.Time) (int, error) {
	return 0, nil
}
func (s *stubRecords) ByDeploymentSince(ctx context.Context, suspectedDeployment string, since time.Time) ([]models.Record, error) {
	return nil, nil
}
func (s *stubRecords) UpdateOutcome(ctx context.Context, messageID string, mutate func(rec *models.Record)) error {
	return nil
}

type stubBus struct {
	published []interfaces.Event
}

func (b *stubBus) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}
func (b *stubBus) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}
func (b *stubBus) Publish(ctx context.Context, event interfaces.Event) error {
	b.published = append(b.published, event)
	return nil
}
func (b *stubBus) Close() error { return nil }

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func newTestService(cache *stubCache, records *stubRecords, bus *stubBus) *Service {
	return NewService(cache, records, nil, bus, testLogger(), Config{
		ConfidenceThreshold: 0.85,
		SystemicMinSimilar:  5,
		CacheTTL:            time.Hour,
		RecordTTL:           24 * time.Hour,
		LLMEnabled:          false,
	})
}

func TestBackoffSeconds_DoublesAndSaturates(t *testing.T) {
	tests := []struct {
		retryCount int
		want       int
	}{
		{0, 30},
		{1, 60},
		{2, 120},
		{3, 240},
		{4, 480},
		{5, 900},  // 30*2^5 = 960, saturates at max
		{10, 900}, // deep retries still saturate
	}
	for _, tc := range tests {
		if got := backoffSeconds(tc.retryCount, 30, 900); got != tc.want {
			t.Errorf("backoffSeconds(%d, 30, 900) = %d, want %d", tc.retryCount, got, tc.want)
		}
	}
}

func TestRecommendedAction_Transient(t *testing.T) {
	ra := recommendedAction(models.CategoryTransient, 1)
	if ra.Action != models.ActionReplayed {
		t.Errorf("Action = %q, want REPLAYED", ra.Action)
	}
	if ra.HumanReview {
		t.Error("transient should not require human review")
	}
	if ra.RetryDelayS != 60 {
		t.Errorf("RetryDelayS = %d, want 60", ra.RetryDelayS)
	}
}

func TestRecommendedAction_PoisonPill(t *testing.T) {
	ra := recommendedAction(models.CategoryPoisonPill, 0)
	if ra.Action != models.ActionArchived {
		t.Errorf("Action = %q, want ARCHIVED", ra.Action)
	}
	if !ra.HumanReview {
		t.Error("poison pill should require human review")
	}
}

func TestRecommendedAction_Systemic(t *testing.T) {
	ra := recommendedAction(models.CategorySystemic, 0)
	if ra.Action != models.ActionEscalated {
		t.Errorf("Action = %q, want ESCALATED", ra.Action)
	}
	if ra.Severity != "P1" {
		t.Errorf("Severity = %q, want P1", ra.Severity)
	}
	if !ra.HumanReview {
		t.Error("systemic should require human review")
	}
}

func TestDeploymentCorrelation_TriggersAboveThreshold(t *testing.T) {
	svc := newTestService(newStubCache(), &stubRecords{}, &stubBus{})
	msg := models.EnrichedMessage{
		SimilarFailuresLastHour: 5,
		RecentDeployments:       []models.Deployment{{ID: "d1", Version: "1.0.0"}},
	}

	result, ok := svc.deploymentCorrelation(msg)
	if !ok {
		t.Fatal("expected deployment correlation to trigger")
	}
	if result.Category != models.CategorySystemic {
		t.Errorf("Category = %q, want SYSTEMIC", result.Category)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
}

func TestDeploymentCorrelation_RequiresBothSimilarCountAndDeployment(t *testing.T) {
	svc := newTestService(newStubCache(), &stubRecords{}, &stubBus{})

	// Below the similar-failures threshold.
	_, ok := svc.deploymentCorrelation(models.EnrichedMessage{
		SimilarFailuresLastHour: 4,
		RecentDeployments:       []models.Deployment{{ID: "d1"}},
	})
	if ok {
		t.Error("expected no correlation below systemicMinSimilar")
	}

	// No recent deployments, even with a large spike.
	_, ok = svc.deploymentCorrelation(models.EnrichedMessage{
		SimilarFailuresLastHour: 50,
	})
	if ok {
		t.Error("expected no correlation without a recent deployment")
	}
}

func TestClassify_CacheHitSkipsCacheWriteAndTagsCache(t *testing.T) {
	cache := newStubCache()
	cache.hit = &models.Classification{
		Category:   models.CategoryTransient,
		Confidence: 0.8,
		Reasoning:  "previously classified",
	}
	records := &stubRecords{}
	bus := &stubBus{}
	svc := newTestService(cache, records, bus)

	msg := models.EnrichedMessage{
		MessageID:   "m1",
		SourceQueue: "orders-dlq",
		ErrorPattern: models.ErrorPattern{
			Type:    "NetworkError",
			Message: "connection reset",
		},
	}

	if err := svc.Classify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records.put) != 1 {
		t.Fatalf("expected one record persisted, got %d", len(records.put))
	}
	if records.put[0].ModelTag != models.ModelTagCache {
		t.Errorf("ModelTag = %q, want %q", records.put[0].ModelTag, models.ModelTagCache)
	}
	if len(cache.stored) != 0 {
		t.Errorf("expected no cache write on a cache hit, got %d writes", len(cache.stored))
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one MessageClassified event published, got %d", len(bus.published))
	}
}

func TestClassify_RuleTableMatchWritesThroughCache(t *testing.T) {
	cache := newStubCache()
	records := &stubRecords{}
	bus := &stubBus{}
	svc := newTestService(cache, records, bus)

	msg := models.EnrichedMessage{
		MessageID:   "m2",
		SourceQueue: "orders-dlq",
		ErrorPattern: models.ErrorPattern{
			Type:    "NetworkError",
			Message: "ECONNRESET: socket hang up",
		},
	}

	if err := svc.Classify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records.put[0].Category != models.CategoryTransient {
		t.Errorf("Category = %q, want TRANSIENT", records.put[0].Category)
	}
	if len(cache.stored) != 1 {
		t.Errorf("expected classification written to cache, got %d entries", len(cache.stored))
	}
}

func TestClassify_NoRuleAndLLMDisabledFallsBackToSystemic(t *testing.T) {
	records := &stubRecords{}
	bus := &stubBus{}
	svc := newTestService(newStubCache(), records, bus)

	msg := models.EnrichedMessage{
		MessageID:   "m3",
		SourceQueue: "orders-dlq",
		ErrorPattern: models.ErrorPattern{
			Type:    "MysteryError",
			Message: "something truly novel happened",
		},
	}

	if err := svc.Classify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if records.put[0].Category != models.CategorySystemic {
		t.Errorf("Category = %q, want SYSTEMIC fallback", records.put[0].Category)
	}
	if records.put[0].ModelTag != models.ModelTagFallback {
		t.Errorf("ModelTag = %q, want %q", records.put[0].ModelTag, models.ModelTagFallback)
	}
}
