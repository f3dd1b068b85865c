package handler

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HandleLoadArtifacts ingests a JSON-LD document by URL on demand, for
// operators pushing catalog updates without a restart.
func (h *PerceptionHandler) HandleLoadArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rawURL := strings.TrimSpace(in.URL)
	if rawURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	n, err := h.maker.LoadArtifactsFromJSONLDURL(r.Context(), rawURL)
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"targets": n,
	})
}

func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}
