package dealer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perceptkit/internal/artifact"
	"perceptkit/internal/store"
)

func storeWithBarcode(t *testing.T, text string, content any) *store.LocalStore {
	t.Helper()
	s := store.NewLocalStore()
	a := &artifact.Artifact{
		Targets: []artifact.Target{artifact.Barcode{Text: text}},
		Content: content,
	}
	n, err := s.AddArtifact(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return s
}

func TestBarcodeLifecycle(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", "card"))
	m := artifact.Marker{Type: "qrcode", Value: "X"}

	delta, err := d.MarkerFound(ctx, m)
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)
	assert.Empty(t, delta.Lost)
	assert.Equal(t, artifact.Barcode{Text: "X"}, delta.Found[0].Target)
	assert.Equal(t, "card", delta.Found[0].Content)

	delta, err = d.MarkerLost(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	require.Len(t, delta.Lost, 1)
	assert.Equal(t, artifact.Barcode{Text: "X"}, delta.Lost[0].Target)
}

func TestIdempotentRedetection(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", nil))
	m := artifact.Marker{Type: "qrcode", Value: "X"}

	first, err := d.MarkerFound(ctx, m)
	require.NoError(t, err)
	require.Len(t, first.Found, 1)

	second, err := d.MarkerFound(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, second.Found)
	assert.Empty(t, second.Lost)
}

func TestUnknownMarker(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewLocalStore())
	delta, err := d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "nonexistent"})
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	assert.Empty(t, delta.Lost)
}

func TestLosingNeverFoundMarker(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", nil))
	delta, err := d.MarkerLost(ctx, artifact.Marker{Type: "qrcode", Value: "X"})
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	assert.Empty(t, delta.Lost)
}

func TestMarkerTypeIsPartOfIdentity(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", nil))

	delta, err := d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "X"})
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)

	// Losing a marker of a different type with the same value must not
	// drop the live qrcode marker.
	delta, err = d.MarkerLost(ctx, artifact.Marker{Type: "code128", Value: "X"})
	require.NoError(t, err)
	assert.Empty(t, delta.Lost)
}

func TestImageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewLocalStore()
	a := &artifact.Artifact{
		Targets: []artifact.Target{artifact.ImageTarget{Name: "poster"}},
		Content: "poster card",
	}
	_, err := s.AddArtifact(ctx, a)
	require.NoError(t, err)

	d := New(s)
	delta, err := d.ImageFound(ctx, artifact.DetectedImage{ID: "poster"})
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)
	assert.Equal(t, "poster card", delta.Found[0].Content)

	delta, err = d.ImageLost(ctx, artifact.DetectedImage{ID: "poster"})
	require.NoError(t, err)
	require.Len(t, delta.Lost, 1)
}

func TestGeolocationTriggersRecompute(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", nil))

	_, err := d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "X"})
	require.NoError(t, err)

	// No local store is geo-aware, so a geo update recomputes to the same
	// set: steady state, empty delta.
	delta, err := d.UpdateGeolocation(ctx, artifact.GeoCoordinates{Latitude: 48.1, Longitude: 11.5, Valid: true})
	require.NoError(t, err)
	assert.Empty(t, delta.Found)
	assert.Empty(t, delta.Lost)
}

func TestAddStoreRecomputes(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewLocalStore())

	_, err := d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "X"})
	require.NoError(t, err)

	// Registering a store that indexes the already-live marker surfaces
	// it immediately.
	delta, err := d.AddStore(ctx, storeWithBarcode(t, "X", "late"))
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)
	assert.Equal(t, "late", delta.Found[0].Content)
}

func TestMultipleStoresConcatenate(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "A", "first"), storeWithBarcode(t, "B", "second"))

	delta, err := d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "A"})
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)

	delta, err = d.MarkerFound(ctx, artifact.Marker{Type: "qrcode", Value: "B"})
	require.NoError(t, err)
	require.Len(t, delta.Found, 1)
	assert.Equal(t, "second", delta.Found[0].Content)
}

func TestSymmetricFoundLost(t *testing.T) {
	ctx := context.Background()
	d := New(storeWithBarcode(t, "X", nil))
	m := artifact.Marker{Type: "qrcode", Value: "X"}

	found, err := d.MarkerFound(ctx, m)
	require.NoError(t, err)
	lost, err := d.MarkerLost(ctx, m)
	require.NoError(t, err)

	require.Len(t, found.Found, 1)
	require.Len(t, lost.Lost, 1)
	assert.Same(t, found.Found[0], lost.Lost[0])
}
