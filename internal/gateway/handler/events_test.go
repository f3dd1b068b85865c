package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perceptkit/internal/artifact"
	"perceptkit/internal/meaning"
)

func newTestHandler(t *testing.T) *PerceptionHandler {
	t.Helper()
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/ld+json")
		fmt.Fprint(w, `{ "@type": "ARArtifact",
			"arTarget": { "@type": "Barcode", "text": "X" },
			"arContent": "card" }`)
	}))
	t.Cleanup(catalog.Close)

	maker, err := meaning.New(meaning.Config{Client: catalog.Client()})
	require.NoError(t, err)
	n, err := maker.LoadArtifactsFromJSONLDURL(context.Background(), catalog.URL)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	return NewPerceptionHandler(maker)
}

func dialEvents(t *testing.T, h *PerceptionHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleEventsWS))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventsWSMarkerLifecycle(t *testing.T) {
	conn := dialEvents(t, newTestHandler(t))
	marker := &artifact.Marker{Type: "qrcode", Value: "X"}

	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "markerFound", Marker: marker}))
	var out eventsWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "nearby", out.Type)
	require.Len(t, out.Found, 1)
	assert.Equal(t, "card", out.Found[0].Content)
	assert.NotEmpty(t, out.Found[0].ID)

	// Re-detection is steady state.
	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "markerFound", Marker: marker}))
	out = eventsWSOutbound{}
	require.NoError(t, conn.ReadJSON(&out))
	assert.Empty(t, out.Found)
	assert.Empty(t, out.Lost)

	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "markerLost", Marker: marker}))
	out = eventsWSOutbound{}
	require.NoError(t, conn.ReadJSON(&out))
	require.Len(t, out.Lost, 1)
	assert.Empty(t, out.Found)
}

func TestEventsWSGeolocation(t *testing.T) {
	conn := dialEvents(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(eventsWSInbound{
		Type: "geolocation",
		Geo:  &artifact.GeoCoordinates{Latitude: 48.1, Longitude: 11.5, Valid: true},
	}))
	var out eventsWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "nearby", out.Type)
	assert.Empty(t, out.Found)
}

func TestEventsWSRejectsMalformedEvents(t *testing.T) {
	conn := dialEvents(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "markerFound"}))
	var out eventsWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, "invalid_argument", out.Code)

	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "warp"}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "error", out.Type)
}

func TestEventsWSPing(t *testing.T) {
	conn := dialEvents(t, newTestHandler(t))

	require.NoError(t, conn.WriteJSON(eventsWSInbound{Type: "ping"}))
	var out eventsWSOutbound
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "pong", out.Type)
}
