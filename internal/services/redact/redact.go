// Package redact strips personally-identifiable or secret-shaped substrings
// from text before it is handed to the LLM (§4.2 step 4).
package redact

import "regexp"

var (
	emailRE  = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	ccRE     = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	ssnRE    = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	apiKeyRE = regexp.MustCompile(`(?i)\b(sk|pk|key|token|bearer)[-_][a-z0-9]{16,}\b`)
)

// Text redacts emails, credit-card-shaped digit runs, SSN patterns and
// API-key-shaped tokens from s, replacing each match with "[REDACTED]".
func Text(s string) string {
	s = emailRE.ReplaceAllString(s, "[REDACTED]")
	s = apiKeyRE.ReplaceAllString(s, "[REDACTED]")
	s = ssnRE.ReplaceAllString(s, "[REDACTED]")
	s = ccRE.ReplaceAllString(s, "[REDACTED]")
	return s
}
