package store

import (
	"context"

	"perceptkit/internal/artifact"
)

// LocalStore is the in-memory Store: one index per supported target kind.
type LocalStore struct {
	markers *MarkerStore
	images  *ImageStore
}

func NewLocalStore() *LocalStore {
	return &LocalStore{
		markers: NewMarkerStore(),
		images:  NewImageStore(),
	}
}

// AddArtifact fans each target of a out to the index for its kind and
// returns the number of targets actually stored. An artifact with zero
// resolvable targets is a no-op, not an error.
func (s *LocalStore) AddArtifact(_ context.Context, a *artifact.Artifact) (int, error) {
	if s == nil || a == nil {
		return 0, nil
	}
	count := 0
	for _, t := range a.Targets {
		switch target := t.(type) {
		case artifact.Barcode:
			if s.markers.Add(a, target) {
				count++
			}
		case artifact.ImageTarget:
			if s.images.Add(a, target) {
				count++
			}
		}
	}
	return count, nil
}

// FindRelevant resolves markers against the barcode index and images
// against the image index, concatenating the results. Geo is accepted for
// interface symmetry; no local index is geo-aware.
func (s *LocalStore) FindRelevant(_ context.Context, markers []artifact.Marker, _ artifact.GeoCoordinates, images []artifact.DetectedImage) ([]*artifact.NearbyResult, error) {
	if s == nil {
		return nil, nil
	}
	values := make([]string, 0, len(markers))
	for _, m := range markers {
		values = append(values, m.Value)
	}
	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	out := s.markers.FindRelevant(values)
	out = append(out, s.images.FindRelevant(ids)...)
	return out, nil
}
