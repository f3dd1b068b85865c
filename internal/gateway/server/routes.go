package server

import (
	"net/http"

	"perceptkit/internal/gateway/handler"
	"perceptkit/internal/gateway/middleware"
)

func NewMux(perception *handler.PerceptionHandler) http.Handler {
	mux := http.NewServeMux()

	// Detection events in, nearby deltas out
	mux.HandleFunc("/v1/perception", perception.HandleEventsWS)

	// Catalog management
	mux.HandleFunc("/v1/artifacts/load", perception.HandleLoadArtifacts)
	mux.HandleFunc("/healthz", handler.HandleHealth)

	// Middleware
	return middleware.CORS(mux)
}
