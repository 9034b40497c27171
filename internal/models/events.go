package models

// DetailType classifies a MessageClassified event for coarse routing (§4.2, §6).
type DetailType string

const (
	DetailTypeTransient  DetailType = "TransientFailure"
	DetailTypePoisonPill DetailType = "PoisonPillFailure"
	DetailTypeSystemic   DetailType = "SystemicFailure"
)

// DetailTypeForCategory maps a Category to the coarse-routing detail type.
func DetailTypeForCategory(c Category) DetailType {
	switch c {
	case CategoryTransient:
		return DetailTypeTransient
	case CategoryPoisonPill:
		return DetailTypePoisonPill
	case CategorySystemic:
		return DetailTypeSystemic
	default:
		return ""
	}
}

// MessageEnrichedEvent is published by the Monitor, consumed by the Analyzer.
type MessageEnrichedEvent struct {
	Source  string          `json:"source"` // always "monitor"
	Message EnrichedMessage `json:"detail"`
}

// MessageClassifiedEvent is published by the Analyzer, consumed by the Executor.
type MessageClassifiedEvent struct {
	Source         string          `json:"source"` // always "analyzer"
	DetailType     DetailType      `json:"detail_type"`
	Message        EnrichedMessage `json:"message"`
	Classification Classification  `json:"classification"`
}
