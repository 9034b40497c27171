package common

import (
	"github.com/google/uuid"
)

// NewInvocationID generates a correlation ID for a single Monitor/Analyzer/
// Executor invocation, used only for log correlation. Per §9's idempotence
// design note, this must never be used to key an idempotent external effect -
// those are always derived from message_id, source_queue, or error_type.
func NewInvocationID() string {
	return "inv_" + uuid.New().String()
}
