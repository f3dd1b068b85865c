// Package artifact holds the content-association records the perception
// runtime resolves detections against, and the decoder that extracts them
// from JSON-LD style documents.
package artifact

// Target identifies the real-world thing that triggers an artifact.
// Exactly one concrete kind exists per supported detection type; adding a
// detection type means adding a variant here plus a store for it.
type Target interface {
	isTarget()
}

// Barcode matches a decoded barcode/QR payload by exact text.
type Barcode struct {
	Text string
}

func (Barcode) isTarget() {}

// ImageTarget matches a planar image target by its developer-assigned name.
type ImageTarget struct {
	Name  string
	Media []string
}

func (ImageTarget) isTarget() {}

// Artifact associates one or more targets with an opaque content payload.
// Artifacts are immutable once decoded; stores keep references to them for
// the lifetime of the process.
type Artifact struct {
	Targets []Target
	Content any
}

// Marker is a detection event payload for barcode-style detectors.
type Marker struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Key is the live-marker identity. Two markers are the same live marker
// only when both type and value match.
func (m Marker) Key() string {
	return m.Type + "\x1f" + m.Value
}

// DetectedImage is a detection event payload for planar image targets.
type DetectedImage struct {
	ID string `json:"id"`
}

// GeoCoordinates is the last reported device location. The zero value
// means "unset".
type GeoCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Valid     bool    `json:"valid"`
}

// NearbyResult is one resolved association between a live detection and a
// stored artifact. Stores hand out the same record instance for the same
// stored entry on every lookup; the dealer diffs by that identity. ID is
// assigned once at store insert and never changes.
type NearbyResult struct {
	ID       string
	Target   Target
	Content  any
	Artifact *Artifact
}

// NearbyResultDelta reports what became relevant and what stopped being
// relevant across one context change.
type NearbyResultDelta struct {
	Found []*NearbyResult
	Lost  []*NearbyResult
}
