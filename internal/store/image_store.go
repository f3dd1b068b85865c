package store

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"perceptkit/internal/artifact"
)

// ImageStore indexes planar image targets by their developer-assigned name.
// Same contract as MarkerStore: last write wins, stable record identity.
type ImageStore struct {
	mu     sync.RWMutex
	byName map[string]*artifact.NearbyResult
}

func NewImageStore() *ImageStore {
	return &ImageStore{
		byName: make(map[string]*artifact.NearbyResult),
	}
}

func (s *ImageStore) Add(a *artifact.Artifact, t artifact.ImageTarget) bool {
	if s == nil || strings.TrimSpace(t.Name) == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[t.Name] = &artifact.NearbyResult{
		ID:       uuid.NewString(),
		Target:   t,
		Artifact: a,
	}
	return true
}

func (s *ImageStore) FindRelevant(ids []string) []*artifact.NearbyResult {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*artifact.NearbyResult
	for _, id := range ids {
		if r, ok := s.byName[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
