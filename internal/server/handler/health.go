package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode      string
	startedAt time.Time
	catalogue CatalogueSource
}

// NewHealthHandler creates a HealthHandler. catalogue may be nil.
func NewHealthHandler(mode string, startedAt time.Time, catalogue CatalogueSource) *HealthHandler {
	return &HealthHandler{mode: mode, startedAt: startedAt, catalogue: catalogue}
}

// HealthCheck reports liveness plus whether a catalogue is loaded.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cycles := 0
	if h.catalogue != nil {
		cycles = h.catalogue.Catalogue().Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"mode":             h.mode,
		"catalogue_cycles": cycles,
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}
