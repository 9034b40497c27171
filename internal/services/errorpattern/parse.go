// Package errorpattern extracts a stable error identity from a DLQ message
// body (§4.1 enrichment). Parsing is tolerant: any failure degrades to a
// ParseError pattern over the raw, truncated body rather than aborting enrichment.
package errorpattern

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/dlq-recover/internal/models"
)

const (
	maxMessageLen = 500
	maxStackFrames = 3
	ellipsis       = "..."
)

// affectedServiceFrom derives a PascalCase service name from a DLQ queue name
// by stripping a "-dlq"/"_dlq" suffix (§4.1).
func affectedServiceFrom(sourceQueue string) string {
	name := sourceQueue
	for _, suffix := range []string{"-dlq", "_dlq"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return toPascalCase(name)
}

func toPascalCase(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		switch r {
		case '-', '_', ' ':
			upperNext = true
			continue
		default:
			if upperNext {
				b.WriteString(strings.ToUpper(string(r)))
				upperNext = false
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func truncateMessage(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen-len(ellipsis)] + ellipsis
}

func truncateStack(frames []string) []string {
	if len(frames) <= maxStackFrames {
		return frames
	}
	return frames[:maxStackFrames]
}

func splitStack(raw interface{}) []string {
	switch v := raw.(type) {
	case string:
		lines := strings.Split(v, "\n")
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			l = strings.TrimSpace(l)
			if l != "" {
				out = append(out, l)
			}
		}
		return truncateStack(out)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return truncateStack(out)
	default:
		return nil
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Parse extracts an ErrorPattern from a DLQ message body. It first looks for a
// nested "error" object ({name|type, message, stack, code}), then falls back to
// top-level errorMessage/errorType/stackTrace/errorCode. Any parse failure -
// invalid JSON, missing fields entirely - yields type "ParseError" with the
// whole body (truncated) as the message.
func Parse(body []byte, sourceQueue string) models.ErrorPattern {
	service := affectedServiceFrom(sourceQueue)

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fallback(body, service)
	}

	errType, errMessage, errCode := "", "", ""
	var stack []string

	if errObj, ok := doc["error"].(map[string]interface{}); ok {
		if v := asString(errObj["name"]); v != "" {
			errType = v
		} else if v := asString(errObj["type"]); v != "" {
			errType = v
		}
		errMessage = asString(errObj["message"])
		errCode = asString(errObj["code"])
		stack = splitStack(errObj["stack"])
	}

	if errMessage == "" {
		errMessage = asString(doc["errorMessage"])
	}
	if errType == "" {
		errType = asString(doc["errorType"])
	}
	if errCode == "" {
		errCode = asString(doc["errorCode"])
	}
	if stack == nil {
		stack = splitStack(doc["stackTrace"])
	}

	if errMessage == "" && errType == "" {
		return fallback(body, service)
	}
	if errType == "" {
		errType = "UnknownError"
	}

	return models.ErrorPattern{
		Type:            errType,
		Message:         truncateMessage(errMessage),
		StackTop:        stack,
		Code:            errCode,
		AffectedService: service,
	}
}

func fallback(body []byte, service string) models.ErrorPattern {
	return models.ErrorPattern{
		Type:            "ParseError",
		Message:         truncateMessage(strings.TrimSpace(string(body))),
		AffectedService: service,
	}
}

// Sprint is a small helper used by callers that need a one-line human-readable
// summary of a pattern for logging.
func Sprint(ep models.ErrorPattern) string {
	return fmt.Sprintf("%s: %s", ep.Type, ep.Message)
}
