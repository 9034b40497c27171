// Package queue provides an in-memory implementation of interfaces.QueueService
// and interfaces.DiscoveryService. The real message-queue service (SQS, Pub/Sub,
// Service Bus, ...) is an out-of-scope external collaborator (§1 Non-goals) -
// this adapter stands in for it so the pipeline is runnable and testable
// end-to-end without one.
package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

type inFlight struct {
	msg       interfaces.QueueMessage
	visibleAt time.Time
	deleted   bool
}

// MemoryQueue is a single named queue backed by an in-process slice.
// Receive/Delete/SendWithDelay mirror the semantics a real DLQ and its
// redrive target would have: at-least-once delivery, a visibility window
// during which a received message is hidden from other receivers, and a
// delayed re-send used by the Executor's Retry handler.
type MemoryQueue struct {
	name   string
	mu     sync.Mutex
	ready  []interfaces.QueueMessage
	leased map[string]*inFlight // receipt token -> message
	logger arbor.ILogger
}

// NewMemoryQueue creates an empty named queue.
func NewMemoryQueue(name string, logger arbor.ILogger) *MemoryQueue {
	return &MemoryQueue{
		name:   name,
		leased: make(map[string]*inFlight),
		logger: logger,
	}
}

func (q *MemoryQueue) Name() string { return q.name }

// Seed injects a message directly into the ready queue, bypassing
// SendWithDelay's delay scheduling - used by tests.
func (q *MemoryQueue) Seed(body []byte, receiveCount int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, interfaces.QueueMessage{
		MessageID:    uuid.New().String(),
		Body:         body,
		ReceiveCount: receiveCount,
	})
}

func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitTime, visibilityTimeout time.Duration) ([]interfaces.QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reapExpiredLeases()

	if maxMessages <= 0 {
		maxMessages = 1
	}
	if maxMessages > len(q.ready) {
		maxMessages = len(q.ready)
	}

	out := make([]interfaces.QueueMessage, 0, maxMessages)
	remaining := q.ready[maxMessages:]
	for i := 0; i < maxMessages; i++ {
		msg := q.ready[i]
		msg.ReceiveCount++
		msg.ReceiptToken = uuid.New().String()
		q.leased[msg.ReceiptToken] = &inFlight{msg: msg, visibleAt: time.Now().Add(visibilityTimeout)}
		out = append(out, msg)
	}
	q.ready = remaining

	return out, nil
}

// reapExpiredLeases returns messages whose visibility window elapsed without
// a Delete back onto the ready queue, incrementing nothing further - the
// caller's next Receive will bump ReceiveCount again.
func (q *MemoryQueue) reapExpiredLeases() {
	now := time.Now()
	for token, lease := range q.leased {
		if lease.deleted {
			delete(q.leased, token)
			continue
		}
		if now.After(lease.visibleAt) {
			q.ready = append(q.ready, lease.msg)
			delete(q.leased, token)
		}
	}
}

func (q *MemoryQueue) Delete(ctx context.Context, receiptToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lease, ok := q.leased[receiptToken]
	if !ok {
		return fmt.Errorf("receipt token not found or lease expired: %s", receiptToken)
	}
	lease.deleted = true
	delete(q.leased, receiptToken)
	return nil
}

// SendWithDelay places a message back on the ready queue after delay - used
// by the Executor's Retry handler to redrive a message to its original
// queue (§5 Retry handler).
func (q *MemoryQueue) SendWithDelay(ctx context.Context, body []byte, attributes map[string]string, delay time.Duration) error {
	msg := interfaces.QueueMessage{
		MessageID: uuid.New().String(),
		Body:      body,
	}

	if delay <= 0 {
		q.mu.Lock()
		q.ready = append(q.ready, msg)
		q.mu.Unlock()
		return nil
	}

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C
		q.mu.Lock()
		q.ready = append(q.ready, msg)
		q.mu.Unlock()
	}()
	return nil
}

// DiscoveryService enumerates the MemoryQueue instances registered with it
// whose name matches a DLQ naming pattern (§6 monitor.dlq_name_pattern).
type DiscoveryService struct {
	mu      sync.RWMutex
	queues  map[string]*MemoryQueue
	logger  arbor.ILogger
}

// NewDiscoveryService creates an empty registry of queues.
func NewDiscoveryService(logger arbor.ILogger) *DiscoveryService {
	return &DiscoveryService{
		queues: make(map[string]*MemoryQueue),
		logger: logger,
	}
}

// Register adds (or replaces) a queue in the registry.
func (d *DiscoveryService) Register(q *MemoryQueue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues[q.Name()] = q
}

// DiscoverDLQs returns every registered queue whose name contains
// namePattern (a plain substring match, e.g. "-dlq"), sorted by name for
// deterministic poll ordering.
func (d *DiscoveryService) DiscoverDLQs(ctx context.Context, namePattern string) ([]interfaces.QueueService, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.queues))
	for name := range d.queues {
		if namePattern == "" || strings.Contains(strings.ToLower(name), strings.ToLower(namePattern)) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]interfaces.QueueService, 0, len(names))
	for _, name := range names {
		out = append(out, d.queues[name])
	}
	return out, nil
}

// Original resolves the source queue a DLQ was paired with. In this
// in-memory adapter the convention is "<source>-dlq" / "<source>_dlq" ->
// "<source>", matching errorpattern.Parse's affected-service derivation.
func (d *DiscoveryService) Original(ctx context.Context, dlqName string) (interfaces.QueueService, error) {
	name := dlqName
	for _, suffix := range []string{"-dlq", "_dlq"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	q, ok := d.queues[name]
	if !ok {
		return nil, fmt.Errorf("original queue not found for DLQ %s (looked for %s)", dlqName, name)
	}
	return q, nil
}

var (
	_ interfaces.QueueService     = (*MemoryQueue)(nil)
	_ interfaces.DiscoveryService = (*DiscoveryService)(nil)
)
