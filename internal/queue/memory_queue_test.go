package queue

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func testLogger() arbor.ILogger { return arbor.NewLogger() }

func TestReceive_LeasesMessagesOutOfReadyQueue(t *testing.T) {
	q := NewMemoryQueue("orders-dlq", testLogger())
	q.Seed([]byte("a"), 0)
	q.Seed([]byte("b"), 0)

	msgs, err := q.Receive(context.Background(), 10, 0, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.ReceiptToken == "" {
			t.Error("expected a receipt token on every received message")
		}
		if m.ReceiveCount != 1 {
			t.Errorf("ReceiveCount = %d, want 1", m.ReceiveCount)
		}
	}

	// Leased messages are not visible to a second Receive.
	more, err := q.Receive(context.Background(), 10, 0, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(more) != 0 {
		t.Fatalf("expected leased messages hidden from second receive, got %d", len(more))
	}
}

func TestDelete_RemovesLease(t *testing.T) {
	q := NewMemoryQueue("orders-dlq", testLogger())
	q.Seed([]byte("a"), 0)

	msgs, _ := q.Receive(context.Background(), 10, 0, time.Minute)
	if err := q.Delete(context.Background(), msgs[0].ReceiptToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Delete(context.Background(), msgs[0].ReceiptToken); err == nil {
		t.Fatal("expected error deleting an already-deleted receipt token")
	}
}

func TestReceive_ReapsExpiredLeaseBackOntoReadyQueue(t *testing.T) {
	q := NewMemoryQueue("orders-dlq", testLogger())
	q.Seed([]byte("a"), 0)

	msgs, _ := q.Receive(context.Background(), 10, 0, time.Millisecond)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 leased message, got %d", len(msgs))
	}

	time.Sleep(5 * time.Millisecond)

	// Not deleted before its visibility window elapsed: the next Receive
	// call should see it reaped back onto the ready queue and re-delivered.
	redelivered, err := q.Receive(context.Background(), 10, 0, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(redelivered) != 1 {
		t.Fatalf("expected expired lease reaped and re-delivered, got %d messages", len(redelivered))
	}
	if redelivered[0].ReceiveCount != 2 {
		t.Errorf("ReceiveCount = %d, want 2 after redelivery", redelivered[0].ReceiveCount)
	}
}

func TestSendWithDelay_ZeroDelayIsImmediatelyReady(t *testing.T) {
	q := NewMemoryQueue("orders", testLogger())
	if err := q.SendWithDelay(context.Background(), []byte("payload"), nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, _ := q.Receive(context.Background(), 10, 0, time.Minute)
	if len(msgs) != 1 {
		t.Fatalf("expected the zero-delay send to be immediately receivable, got %d", len(msgs))
	}
}

func TestSendWithDelay_BecomesReadyAfterDelay(t *testing.T) {
	q := NewMemoryQueue("orders", testLogger())
	if err := q.SendWithDelay(context.Background(), []byte("payload"), nil, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	immediate, _ := q.Receive(context.Background(), 10, 0, time.Minute)
	if len(immediate) != 0 {
		t.Fatalf("expected delayed send not yet ready, got %d", len(immediate))
	}

	time.Sleep(30 * time.Millisecond)
	later, _ := q.Receive(context.Background(), 10, 0, time.Minute)
	if len(later) != 1 {
		t.Fatalf("expected delayed send ready after delay elapsed, got %d", len(later))
	}
}

func TestDiscoverDLQs_SubstringMatchSortedByName(t *testing.T) {
	d := NewDiscoveryService(testLogger())
	d.Register(NewMemoryQueue("billing-dlq", testLogger()))
	d.Register(NewMemoryQueue("orders-dlq", testLogger()))
	d.Register(NewMemoryQueue("orders", testLogger()))

	queues, err := d.DiscoverDLQs(context.Background(), "-dlq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queues) != 2 {
		t.Fatalf("expected 2 DLQs matched, got %d", len(queues))
	}
	if queues[0].Name() != "billing-dlq" || queues[1].Name() != "orders-dlq" {
		t.Errorf("expected sorted order billing-dlq, orders-dlq; got %s, %s", queues[0].Name(), queues[1].Name())
	}
}

func TestOriginal_ResolvesBySuffixConvention(t *testing.T) {
	d := NewDiscoveryService(testLogger())
	d.Register(NewMemoryQueue("orders", testLogger()))
	d.Register(NewMemoryQueue("orders-dlq", testLogger()))

	orig, err := d.Original(context.Background(), "orders-dlq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orig.Name() != "orders" {
		t.Errorf("Original name = %q, want orders", orig.Name())
	}
}

func TestOriginal_NotFoundWhenSourceQueueMissing(t *testing.T) {
	d := NewDiscoveryService(testLogger())
	d.Register(NewMemoryQueue("orders-dlq", testLogger()))

	if _, err := d.Original(context.Background(), "orders-dlq"); err == nil {
		t.Fatal("expected error when the source queue was never registered")
	}
}
