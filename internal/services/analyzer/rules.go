package analyzer

import (
	"regexp"

	"github.com/ternarybob/dlq-recover/internal/models"
)

// rule is one entry in the ordered pattern-match table (§4.2 step 3). Rules
// are tested in order; the first whose confidence meets the configured
// confidence_threshold wins.
type rule struct {
	name       string
	pattern    *regexp.Regexp
	category   models.Category
	confidence float64
	reasoning  string
}

// ruleTable is the static classifier named in §9 ("a static rule table"),
// ordered network/rate-limit/throttle -> TRANSIENT before
// null-deref/parse/schema/type/zero-div/invalid-argument -> POISON_PILL.
var ruleTable = []rule{
	{
		name:       "network-error",
		pattern:    regexp.MustCompile(`(?i)(network ?error|etimedout|econnreset|econnrefused|socket hang up|connection reset|connection refused)`),
		category:   models.CategoryTransient,
		confidence: 0.96,
		reasoning:  "matches known network-error pattern",
	},
	{
		name:       "rate-limit",
		pattern:    regexp.MustCompile(`(?i)(rate limit|too many requests|\b429\b)`),
		category:   models.CategoryTransient,
		confidence: 0.91,
		reasoning:  "matches rate-limit pattern",
	},
	{
		name:       "throttle",
		pattern:    regexp.MustCompile(`(?i)throttl`),
		category:   models.CategoryTransient,
		confidence: 0.89,
		reasoning:  "matches throttling pattern",
	},
	{
		name:       "service-unavailable",
		pattern:    regexp.MustCompile(`(?i)(service unavailable|\b503\b|\b502\b|\b504\b)`),
		category:   models.CategoryTransient,
		confidence: 0.87,
		reasoning:  "matches transient upstream-unavailability pattern",
	},
	{
		name:       "zero-division",
		pattern:    regexp.MustCompile(`(?i)(division by zero|divide by zero|divisor.*zero)`),
		category:   models.CategoryPoisonPill,
		confidence: 0.98,
		reasoning:  "matches division-by-zero pattern",
	},
	{
		name:       "null-dereference",
		pattern:    regexp.MustCompile(`(?i)(cannot read propert|null pointer|nil pointer|undefined is not a|cannot read properties of (null|undefined))`),
		category:   models.CategoryPoisonPill,
		confidence: 0.95,
		reasoning:  "matches null/nil-dereference pattern",
	},
	{
		name:       "parse-error",
		pattern:    regexp.MustCompile(`(?i)(parse error|unexpected token|invalid json|syntax error|unexpected end of)`),
		category:   models.CategoryPoisonPill,
		confidence: 0.93,
		reasoning:  "matches parse-error pattern",
	},
	{
		name:       "schema-violation",
		pattern:    regexp.MustCompile(`(?i)(schema validation|does not match schema|required property .* is missing)`),
		category:   models.CategoryPoisonPill,
		confidence: 0.90,
		reasoning:  "matches schema-validation-failure pattern",
	},
	{
		name:       "type-error",
		pattern:    regexp.MustCompile(`(?i)(type ?error|is not a function|cannot convert)`),
		category:   models.CategoryPoisonPill,
		confidence: 0.88,
		reasoning:  "matches type-error pattern",
	},
	{
		name:       "invalid-argument",
		pattern:    regexp.MustCompile(`(?i)(invalid argument|invalid parameter|illegal argument)`),
		category:   models.CategoryPoisonPill,
		confidence: 0.86,
		reasoning:  "matches invalid-argument pattern",
	},
}

// matchRuleTable returns the first rule matching message whose confidence
// meets threshold, or nil if none match.
func matchRuleTable(message string, threshold float64) *rule {
	for i := range ruleTable {
		r := &ruleTable[i]
		if r.confidence < threshold {
			continue
		}
		if r.pattern.MatchString(message) {
			return r
		}
	}
	return nil
}
