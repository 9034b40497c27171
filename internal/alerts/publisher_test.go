package alerts

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
)

func TestPublish_NeverErrors(t *testing.T) {
	p := NewPublisher(arbor.NewLogger())
	if err := p.Publish(context.Background(), "Poison Pill Detected: orders-dlq", "details"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
