// Package store indexes artifacts by target identity and answers
// "which artifacts are relevant to this perceptual context" queries.
package store

import (
	"context"

	"perceptkit/internal/artifact"
)

// Store is the capability the dealer fans queries out to. Implementations
// must hand out the same *NearbyResult instance for the same stored entry
// across repeated FindRelevant calls; the dealer diffs consecutive result
// sets by that identity.
type Store interface {
	// AddArtifact indexes every recognized target of a and reports how many
	// targets were actually stored. Unrecognized target kinds and targets
	// without a usable identity are skipped, not errors.
	AddArtifact(ctx context.Context, a *artifact.Artifact) (int, error)

	// FindRelevant resolves the full live context against the index. Geo is
	// part of the contract so geo-indexed implementations can plug in; the
	// local store ignores it.
	FindRelevant(ctx context.Context, markers []artifact.Marker, geo artifact.GeoCoordinates, images []artifact.DetectedImage) ([]*artifact.NearbyResult, error)
}
