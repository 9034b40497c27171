package executor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ternarybob/dlq-recover/internal/models"
)

func TestArchiveKey_Layout(t *testing.T) {
	key := archiveKey("orders-dlq", "m1")
	if !strings.HasPrefix(key, "poison-pills/") {
		t.Errorf("key = %q, want poison-pills/ prefix", key)
	}
	if !strings.HasSuffix(key, "/orders-dlq/m1.json") {
		t.Errorf("key = %q, want .../orders-dlq/m1.json suffix", key)
	}
}

func TestBuildArchiveObject_RoundTrips(t *testing.T) {
	msg := models.EnrichedMessage{MessageID: "m1", SourceQueue: "orders-dlq"}
	classification := models.Classification{Category: models.CategoryPoisonPill, Reasoning: "bad payload"}

	body, err := buildArchiveObject(msg, classification)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded archiveObject
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("failed to decode archive object: %v", err)
	}
	if decoded.Message.MessageID != "m1" {
		t.Errorf("Message.MessageID = %q", decoded.Message.MessageID)
	}
	if decoded.Reasoning != "bad payload" {
		t.Errorf("Reasoning = %q", decoded.Reasoning)
	}
}
