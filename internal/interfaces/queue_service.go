package interfaces

import (
	"context"
	"time"
)

// QueueMessage is one message received from a source DLQ, before enrichment.
type QueueMessage struct {
	MessageID    string
	ReceiptToken string
	Body         []byte
	ReceiveCount int
}

// QueueService models the DLQ/original-queue contract: long-poll receive,
// delete-by-receipt, and delayed send for re-enqueue (§4.1, §4.3). One
// QueueService handle is bound to a single queue name.
type QueueService interface {
	Name() string
	Receive(ctx context.Context, maxMessages int, waitTime, visibilityTimeout time.Duration) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptToken string) error
	SendWithDelay(ctx context.Context, body []byte, attributes map[string]string, delay time.Duration) error
}

// DiscoveryService finds queue handles by name pattern (§4.1 discovery contract).
type DiscoveryService interface {
	DiscoverDLQs(ctx context.Context, namePattern string) ([]QueueService, error)
	// Original resolves the non-DLQ counterpart queue a message should be replayed into.
	Original(ctx context.Context, dlqName string) (QueueService, error)
}
