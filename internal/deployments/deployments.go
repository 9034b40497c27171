// Package deployments provides an in-memory interfaces.DeploymentStore: the
// deployment-event feed an infra provisioning system would publish is an
// out-of-scope external collaborator (§1 Non-goals); this adapter lets the
// Monitor's enrichment step (§4.1) and the Analyzer's deployment-correlation
// heuristic (§4.2 step 3) exercise that port against fixture data.
package deployments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/models"
)

// Store is an in-memory, append-only log of deployment events per service.
type Store struct {
	mu     sync.RWMutex
	byName map[string][]models.Deployment
	logger arbor.ILogger
}

// NewStore creates an empty deployment store.
func NewStore(logger arbor.ILogger) *Store {
	return &Store{byName: make(map[string][]models.Deployment), logger: logger}
}

// Record appends a deployment event for affectedService. Intended for test
// fixtures and an eventual webhook ingestion point; not reachable via any
// QueueService/EventBus port.
func (s *Store) Record(affectedService string, d models.Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[affectedService] = append(s.byName[affectedService], d)
}

// RecentDeployments returns deployments to affectedService within the
// trailing window, newest first.
func (s *Store) RecentDeployments(ctx context.Context, affectedService string, window time.Duration) ([]models.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window).Unix()
	all := s.byName[affectedService]
	out := make([]models.Deployment, 0, len(all))
	for _, d := range all {
		if d.DeployedAt >= cutoff {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeployedAt > out[j].DeployedAt })
	return out, nil
}

var _ interfaces.DeploymentStore = (*Store)(nil)
