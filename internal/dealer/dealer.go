// Package dealer tracks the current perceptual context and reports, after
// every context change, exactly which artifacts became relevant and which
// stopped being relevant.
package dealer

import (
	"context"

	"perceptkit/internal/artifact"
	"perceptkit/internal/store"
)

// Dealer owns the live context: markers and images currently in view plus
// the last reported geolocation. Every mutating call runs a full
// recompute across all registered stores and diffs the result against the
// previous pass. A full recompute per event trades cost for correctness:
// there is no incremental state to get out of sync.
//
// Dealer is not safe for concurrent calls; hosts dispatch detection events
// one at a time (the gateway serializes behind a mutex).
type Dealer struct {
	stores      []store.Store
	liveMarkers map[string]artifact.Marker
	liveImages  map[string]artifact.DetectedImage
	geo         artifact.GeoCoordinates
	previous    map[*artifact.NearbyResult]struct{}
}

func New(stores ...store.Store) *Dealer {
	return &Dealer{
		stores:      stores,
		liveMarkers: make(map[string]artifact.Marker),
		liveImages:  make(map[string]artifact.DetectedImage),
		previous:    make(map[*artifact.NearbyResult]struct{}),
	}
}

// AddStore registers an additional backing store. Registration is
// append-only; stores are queried in registration order.
func (d *Dealer) AddStore(ctx context.Context, s store.Store) (*artifact.NearbyResultDelta, error) {
	d.stores = append(d.stores, s)
	return d.recompute(ctx)
}

func (d *Dealer) UpdateGeolocation(ctx context.Context, geo artifact.GeoCoordinates) (*artifact.NearbyResultDelta, error) {
	d.geo = geo
	return d.recompute(ctx)
}

func (d *Dealer) MarkerFound(ctx context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	d.liveMarkers[m.Key()] = m
	return d.recompute(ctx)
}

// MarkerLost removes m from the live set. Losing a marker that was never
// found is a no-op diff, not an error.
func (d *Dealer) MarkerLost(ctx context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	delete(d.liveMarkers, m.Key())
	return d.recompute(ctx)
}

func (d *Dealer) ImageFound(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	d.liveImages[img.ID] = img
	return d.recompute(ctx)
}

func (d *Dealer) ImageLost(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	delete(d.liveImages, img.ID)
	return d.recompute(ctx)
}

// recompute queries every store with the full live context, dedupes the
// concatenated results by record identity and diffs against the previous
// pass. Anything present in both sets is steady state and reported in
// neither list. Content is projected from the artifact at diff time, not
// at insert time.
func (d *Dealer) recompute(ctx context.Context) (*artifact.NearbyResultDelta, error) {
	markers := make([]artifact.Marker, 0, len(d.liveMarkers))
	for _, m := range d.liveMarkers {
		markers = append(markers, m)
	}
	images := make([]artifact.DetectedImage, 0, len(d.liveImages))
	for _, img := range d.liveImages {
		images = append(images, img)
	}

	pending := make(map[*artifact.NearbyResult]struct{})
	order := make([]*artifact.NearbyResult, 0)
	for _, s := range d.stores {
		results, err := s.FindRelevant(ctx, markers, d.geo, images)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if _, seen := pending[r]; seen {
				continue
			}
			pending[r] = struct{}{}
			order = append(order, r)
		}
	}

	delta := &artifact.NearbyResultDelta{
		Found: make([]*artifact.NearbyResult, 0),
		Lost:  make([]*artifact.NearbyResult, 0),
	}
	for _, r := range order {
		if _, ok := d.previous[r]; !ok {
			project(r)
			delta.Found = append(delta.Found, r)
		}
	}
	for r := range d.previous {
		if _, ok := pending[r]; !ok {
			project(r)
			delta.Lost = append(delta.Lost, r)
		}
	}

	d.previous = pending
	return delta, nil
}

func project(r *artifact.NearbyResult) {
	if r.Artifact != nil {
		r.Content = r.Artifact.Content
	}
}
