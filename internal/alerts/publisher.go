// Package alerts provides a logging interfaces.AlertPublisher standing in
// for the alert pub/sub topic (SNS, Slack webhook, PagerDuty event, ...) the
// Executor's Archive handler notifies after archiving a poison-pill message
// (§5 Archive handler). The concrete alert channel is an out-of-scope
// external collaborator (§1 Non-goals).
package alerts

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Publisher logs every alert it is asked to publish.
type Publisher struct {
	logger arbor.ILogger
}

// NewPublisher creates a new log-backed alert publisher.
func NewPublisher(logger arbor.ILogger) *Publisher {
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, subject, body string) error {
	p.logger.Warn().Str("subject", subject).Str("body", body).Msg("alert published")
	return nil
}

var _ interfaces.AlertPublisher = (*Publisher)(nil)
