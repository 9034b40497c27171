package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/dlq-recover/internal/models"
)

// archiveObject is the payload written to the object store for a poison-pill
// message: the full enriched message, the classification, an archival
// timestamp, and the reasoning (§4.3 Archive handler).
type archiveObject struct {
	Message        models.EnrichedMessage `json:"message"`
	Classification models.Classification  `json:"classification"`
	ArchivedAt     time.Time              `json:"archived_at"`
	Reasoning      string                 `json:"reasoning"`
}

// archiveKey derives the archive destination key (§6 "Archive key layout").
func archiveKey(sourceQueue, messageID string) string {
	return fmt.Sprintf("poison-pills/%s/%s/%s.json", time.Now().Format("2006-01-02"), sourceQueue, messageID)
}

func buildArchiveObject(msg models.EnrichedMessage, classification models.Classification) ([]byte, error) {
	obj := archiveObject{
		Message:        msg,
		Classification: classification,
		ArchivedAt:     time.Now(),
		Reasoning:      classification.Reasoning,
	}
	return json.Marshal(obj)
}
