package models

// Deployment describes a recent release that may correlate with a burst of failures.
type Deployment struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	DeployedAt int64  `json:"deployed_at"` // epoch seconds
	Author     string `json:"author"`
}

// ErrorPattern is the result of parsing a DLQ message body into a stable error identity.
type ErrorPattern struct {
	Type             string   `json:"type"`
	Message          string   `json:"message"` // truncated to 500 chars, ellipsis-terminated
	StackTop         []string `json:"stack_top,omitempty"` // top 3 frames, optional
	Code             string   `json:"code,omitempty"`
	AffectedService  string   `json:"affected_service"`
}

// EnrichedMessage is the unit published by the Monitor and consumed by the Analyzer.
type EnrichedMessage struct {
	MessageID      string       `json:"message_id"`
	ReceiptToken   string       `json:"receipt_token"`
	SourceQueue    string       `json:"source_queue"`
	Body           []byte       `json:"body"`
	ReceiveCount   int          `json:"receive_count"`
	FirstSeenAt    int64        `json:"first_seen_at"`
	LastFailedAt   int64        `json:"last_failed_at"`
	RetryCount     int          `json:"retry_count"`
	SimilarFailuresLastHour int `json:"similar_failures_last_hour"`
	RecentDeployments []Deployment `json:"recent_deployments"`
	ErrorPattern   ErrorPattern `json:"error_pattern"`
}
