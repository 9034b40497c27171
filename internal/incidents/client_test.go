package incidents

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

func TestPostIncident_SecondPostWithSameDedupKeyDeduplicates(t *testing.T) {
	client := NewClient(arbor.NewLogger())
	ctx := context.Background()

	key1, err := client.PostIncident(ctx, interfaces.IncidentRequest{DedupKey: "d1", Summary: "first"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key2, err := client.PostIncident(ctx, interfaces.IncidentRequest{DedupKey: "d1", Summary: "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if key1 != key2 {
		t.Errorf("expected same dedup key returned, got %q and %q", key1, key2)
	}
	if !client.IsOpen("d1") {
		t.Error("expected incident to be open after posting")
	}
}

func TestPostIncident_DistinctDedupKeysAreSeparateIncidents(t *testing.T) {
	client := NewClient(arbor.NewLogger())
	ctx := context.Background()

	client.PostIncident(ctx, interfaces.IncidentRequest{DedupKey: "d1"})
	client.PostIncident(ctx, interfaces.IncidentRequest{DedupKey: "d2"})

	if !client.IsOpen("d1") || !client.IsOpen("d2") {
		t.Error("expected both distinct incidents to be open")
	}
}

func TestIsOpen_FalseForUnknownKey(t *testing.T) {
	client := NewClient(arbor.NewLogger())
	if client.IsOpen("never-posted") {
		t.Error("expected IsOpen false for a key that was never posted")
	}
}
