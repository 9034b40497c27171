// Package fingerprint computes the semantic fingerprint used to cache
// classification outcomes across structurally-similar failures (§4.2 step 1,
// §9 "cross-message caching without coordination").
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/ternarybob/dlq-recover/internal/models"
)

var (
	uuidRE      = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	isoTimeRE   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	numUnitRE   = regexp.MustCompile(`(?i)\b\d+(ms|s|kb|mb|gb|b)\b`)
	bigIntRE    = regexp.MustCompile(`\b\d{4,}\b`)
	hexRunRE    = regexp.MustCompile(`(?i)\b[0-9a-f]{8,}\b`)
	collapseXRE = regexp.MustCompile(`X(\s*X)+`)
)

// Normalize replaces volatile, instance-specific substrings in an error message
// with a stable placeholder so structurally identical failures collide on the
// same fingerprint. Order matters: numeric-with-unit must run before the bare
// bigIntRE so "5000ms" becomes "Xms" and not "Xms" via two separate rewrites;
// short digit runs (<4 digits, e.g. HTTP status codes 429/503) are intentionally
// left untouched by bigIntRE's \d{4,} bound.
func Normalize(s string) string {
	s = uuidRE.ReplaceAllString(s, "X")
	s = isoTimeRE.ReplaceAllString(s, "X")
	s = numUnitRE.ReplaceAllStringFunc(s, func(m string) string {
		unit := numUnitRE.FindStringSubmatch(m)[1]
		return "X" + strings.ToLower(unit)
	})
	s = hexRunRE.ReplaceAllString(s, "X")
	s = bigIntRE.ReplaceAllString(s, "X")
	s = collapseXRE.ReplaceAllString(s, "X")
	return s
}

// FirstLine returns the first line of s, trimmed.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Compute derives the stable 16-hex-char semantic hash for an error pattern
// (§4.2 step 1). Stack traces, message bodies and identifiers are never inputs -
// only the fields named here.
func Compute(ep models.ErrorPattern) string {
	normalized := Normalize(FirstLine(ep.Message))
	parts := strings.Join([]string{
		strings.ToLower(ep.Type),
		strings.ToUpper(ep.Code),
		normalized,
		strings.ToLower(ep.AffectedService),
	}, "|")

	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])[:16]
}
