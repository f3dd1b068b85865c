package store

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"perceptkit/internal/artifact"
)

// MarkerStore indexes barcode targets by decoded text. Last write wins on
// key collision; the overwritten entry becomes unreachable silently.
type MarkerStore struct {
	mu     sync.RWMutex
	byText map[string]*artifact.NearbyResult
}

func NewMarkerStore() *MarkerStore {
	return &MarkerStore{
		byText: make(map[string]*artifact.NearbyResult),
	}
}

// Add indexes a under t. Returns false when t carries no usable identity.
func (s *MarkerStore) Add(a *artifact.Artifact, t artifact.Barcode) bool {
	if s == nil || strings.TrimSpace(t.Text) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byText[t.Text] = &artifact.NearbyResult{
		ID:       uuid.NewString(),
		Target:   t,
		Artifact: a,
	}
	return true
}

// FindRelevant resolves each live value in input order. Values with no
// entry are skipped; duplicate inputs yield duplicate outputs. The dealer
// dedupes one layer up.
func (s *MarkerStore) FindRelevant(values []string) []*artifact.NearbyResult {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*artifact.NearbyResult
	for _, v := range values {
		if r, ok := s.byText[v]; ok {
			out = append(out, r)
		}
	}
	return out
}
