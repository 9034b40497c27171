// Package incidents provides an in-memory interfaces.IncidentClient standing
// in for the incident management HTTP API (PagerDuty, Opsgenie, ...) the
// Executor's Escalate handler posts to (§5 Escalate handler). The concrete
// incident API is an out-of-scope external collaborator (§1 Non-goals); this
// adapter preserves the dedup-key semantics that matter to the pipeline's
// idempotence guarantees (§9).
package incidents

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Client deduplicates incidents by their caller-supplied DedupKey: a second
// PostIncident for an already-open key opens no new incident, leaves the
// stored request unchanged and returns the same key.
type Client struct {
	mu     sync.Mutex
	open   map[string]interfaces.IncidentRequest
	logger arbor.ILogger
}

// NewClient creates a new in-memory incident client.
func NewClient(logger arbor.ILogger) *Client {
	return &Client{open: make(map[string]interfaces.IncidentRequest), logger: logger}
}

func (c *Client) PostIncident(ctx context.Context, req interfaces.IncidentRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.open[req.DedupKey]; exists {
		c.logger.Info().Str("dedup_key", req.DedupKey).Msg("incident already open, deduplicated")
		return req.DedupKey, nil
	}

	c.open[req.DedupKey] = req
	c.logger.Warn().
		Str("dedup_key", req.DedupKey).
		Str("severity", req.Severity).
		Str("summary", req.Summary).
		Msg("incident opened")
	return req.DedupKey, nil
}

// IsOpen reports whether an incident with the given dedup key is currently open.
func (c *Client) IsOpen(dedupKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.open[dedupKey]
	return ok
}

var _ interfaces.IncidentClient = (*Client)(nil)
