package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
	"github.com/ternarybob/dlq-recover/internal/services/redact"
)

const llmSystemPrompt = `You are a failure-classification assistant for a dead-letter-queue recovery pipeline. Given details about a failed message, classify it into exactly one category: TRANSIENT (likely to succeed on retry), POISON_PILL (content is intrinsically unprocessable, retries cannot succeed), or SYSTEMIC (external cause affecting many messages, such as a bad deployment or dependency outage).

Respond with exactly one JSON object and nothing else: {"category": "TRANSIENT"|"POISON_PILL"|"SYSTEMIC", "confidence": <float 0..1>, "reasoning": "<short explanation>"}`

const maxBodyChars = 500

// buildPrompt assembles the Analyzer's LLM classification request (§4.2 step
// 4): error type, code, redacted message, redacted stack, retry count,
// similar-failures count, affected service, source queue, and redacted
// recent deployments. All free text is redacted before inclusion.
func buildPrompt(msg models.EnrichedMessage) []interfaces.Message {
	ep := msg.ErrorPattern

	message := ep.Message
	if len(message) > maxBodyChars {
		message = message[:maxBodyChars]
	}
	message = redact.Text(message)

	stack := make([]string, len(ep.StackTop))
	for i, frame := range ep.StackTop {
		stack[i] = redact.Text(frame)
	}

	deployLines := make([]string, 0, len(msg.RecentDeployments))
	for _, d := range msg.RecentDeployments {
		deployLines = append(deployLines, redact.Text(fmt.Sprintf("id=%s version=%s author=%s deployed_at=%d", d.ID, d.Version, d.Author, d.DeployedAt)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "error_type: %s\n", ep.Type)
	fmt.Fprintf(&b, "error_code: %s\n", ep.Code)
	fmt.Fprintf(&b, "error_message: %s\n", message)
	fmt.Fprintf(&b, "stack_top:\n")
	for _, line := range stack {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	fmt.Fprintf(&b, "retry_count: %d\n", msg.RetryCount)
	fmt.Fprintf(&b, "similar_failures_last_hour: %d\n", msg.SimilarFailuresLastHour)
	fmt.Fprintf(&b, "affected_service: %s\n", ep.AffectedService)
	fmt.Fprintf(&b, "source_queue: %s\n", msg.SourceQueue)
	fmt.Fprintf(&b, "recent_deployments:\n")
	for _, line := range deployLines {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	return []interfaces.Message{
		{Role: "system", Content: llmSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// llmResponse is the strict JSON contract the LLM must return.
type llmResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseLLMResponse extracts and validates the first JSON object found in raw
// (§4.2 step 4). Markdown fencing around the object is tolerated but not
// required; any other deviation from the required fields is an error, never
// "repaired" (§9).
func parseLLMResponse(raw string) (models.Category, float64, string, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", 0, "", fmt.Errorf("no JSON object found in LLM response")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return "", 0, "", fmt.Errorf("failed to parse LLM JSON response: %w", err)
	}

	category := models.Category(strings.ToUpper(strings.TrimSpace(parsed.Category)))
	if !category.IsValid() {
		return "", 0, "", fmt.Errorf("invalid category in LLM response: %q", parsed.Category)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return "", 0, "", fmt.Errorf("confidence out of range in LLM response: %v", parsed.Confidence)
	}
	if strings.TrimSpace(parsed.Reasoning) == "" {
		return "", 0, "", fmt.Errorf("empty reasoning in LLM response")
	}

	return category, parsed.Confidence, parsed.Reasoning, nil
}

// estimateTokens gives a best-effort token count for usage accounting when
// the underlying LLMService does not surface provider-reported counts. It is
// never used for billing decisions, only for the record's informational
// TokenUsage field.
func estimateTokens(s string) int {
	const charsPerToken = 4
	if len(s) == 0 {
		return 0
	}
	n := len(s) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}
