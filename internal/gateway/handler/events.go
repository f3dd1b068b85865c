// Package handler exposes the perception facade over HTTP: a websocket
// carrying detection events and deltas, plus catalog management routes.
package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"perceptkit/internal/artifact"
	"perceptkit/internal/meaning"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type   string                   `json:"type"`
	Marker *artifact.Marker         `json:"marker,omitempty"`
	Image  *artifact.DetectedImage  `json:"image,omitempty"`
	Geo    *artifact.GeoCoordinates `json:"geo,omitempty"`
}

type eventsWSOutbound struct {
	Type    string          `json:"type"`
	Found   []nearbyPayload `json:"found,omitempty"`
	Lost    []nearbyPayload `json:"lost,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

type nearbyPayload struct {
	ID      string `json:"id"`
	Target  any    `json:"target,omitempty"`
	Content any    `json:"content,omitempty"`
}

// PerceptionHandler serves the detection-event websocket. The dealer
// behind the facade is not safe for concurrent calls, so one mutex
// serializes events across every connection.
type PerceptionHandler struct {
	mu    sync.Mutex
	maker *meaning.Maker
}

func NewPerceptionHandler(maker *meaning.Maker) *PerceptionHandler {
	return &PerceptionHandler{maker: maker}
}

func (h *PerceptionHandler) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		log.Printf("events ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	writeCh := make(chan eventsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var in eventsWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		h.dispatch(ctx, writeCh, in)
	}
}

func (h *PerceptionHandler) dispatch(ctx context.Context, writeCh chan eventsWSOutbound, in eventsWSInbound) {
	msgType := strings.TrimSpace(in.Type)
	switch msgType {
	case "ping":
		pushEventsWS(writeCh, eventsWSOutbound{Type: "pong"})
		return
	case "markerFound", "markerLost":
		if in.Marker == nil {
			pushEventsWS(writeCh, invalidArgument("marker is required"))
			return
		}
	case "imageFound", "imageLost":
		if in.Image == nil {
			pushEventsWS(writeCh, invalidArgument("image is required"))
			return
		}
	case "geolocation":
		if in.Geo == nil {
			pushEventsWS(writeCh, invalidArgument("geo is required"))
			return
		}
	default:
		pushEventsWS(writeCh, invalidArgument("unknown event type"))
		return
	}

	h.mu.Lock()
	var (
		delta *artifact.NearbyResultDelta
		err   error
	)
	switch msgType {
	case "markerFound":
		delta, err = h.maker.MarkerFound(ctx, *in.Marker, nil)
	case "markerLost":
		delta, err = h.maker.MarkerLost(ctx, *in.Marker)
	case "imageFound":
		delta, err = h.maker.ImageFound(ctx, *in.Image)
	case "imageLost":
		delta, err = h.maker.ImageLost(ctx, *in.Image)
	case "geolocation":
		delta, err = h.maker.UpdateGeolocation(ctx, *in.Geo)
	}
	h.mu.Unlock()

	if err != nil {
		pushEventsWS(writeCh, eventsWSOutbound{
			Type:    "error",
			Code:    "internal",
			Message: err.Error(),
		})
		return
	}
	pushEventsWS(writeCh, eventsWSOutbound{
		Type:  "nearby",
		Found: toPayloads(delta.Found),
		Lost:  toPayloads(delta.Lost),
	})
}

func toPayloads(results []*artifact.NearbyResult) []nearbyPayload {
	out := make([]nearbyPayload, 0, len(results))
	for _, r := range results {
		out = append(out, nearbyPayload{
			ID:      r.ID,
			Target:  targetPayload(r.Target),
			Content: r.Content,
		})
	}
	return out
}

func targetPayload(t artifact.Target) any {
	switch target := t.(type) {
	case artifact.Barcode:
		return map[string]any{"type": "Barcode", "text": target.Text}
	case artifact.ImageTarget:
		return map[string]any{"type": "ARImageTarget", "name": target.Name, "media": target.Media}
	}
	return nil
}

func invalidArgument(msg string) eventsWSOutbound {
	return eventsWSOutbound{
		Type:    "error",
		Code:    "invalid_argument",
		Message: msg,
	}
}

func pushEventsWS(ch chan eventsWSOutbound, out eventsWSOutbound) {
	select {
	case ch <- out:
	default:
		log.Printf("events ws write buffer full, dropping %s", out.Type)
	}
}
