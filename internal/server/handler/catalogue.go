package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// CatalogueSource exposes the catalogue the scanner is using and accepts
// rebuild requests.
type CatalogueSource interface {
	Catalogue() *domain.Catalogue
	RequestRebuild() bool
}

// CatalogueHandler serves catalogue endpoints.
type CatalogueHandler struct {
	source CatalogueSource
	logger *slog.Logger
}

// NewCatalogueHandler creates a CatalogueHandler.
func NewCatalogueHandler(source CatalogueSource, logger *slog.Logger) *CatalogueHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogueHandler{source: source, logger: logger.With(slog.String("handler", "catalogue"))}
}

type catalogueResponse struct {
	Cycles  int         `json:"cycles"`
	BuiltAt string      `json:"built_at,omitempty"`
	Paths   [][3]string `json:"paths"`
}

// GetCatalogue returns the catalogue size and up to ?limit= cycles.
// GET /api/catalogue
func (h *CatalogueHandler) GetCatalogue(w http.ResponseWriter, r *http.Request) {
	cat := h.source.Catalogue()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, "catalogue not loaded")
		return
	}

	head := cat.Head(parseLimit(r))
	resp := catalogueResponse{Cycles: cat.Len(), Paths: make([][3]string, len(head))}
	for i, c := range head {
		resp.Paths[i] = c
	}
	if t := cat.BuiltAt(); !t.IsZero() {
		resp.BuiltAt = t.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rebuild queues a catalogue rebuild. It answers 202 when queued and 409
// when a rebuild is already pending.
// POST /api/catalogue/rebuild
func (h *CatalogueHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if !h.source.RequestRebuild() {
		writeError(w, http.StatusConflict, "rebuild already pending")
		return
	}
	h.logger.InfoContext(r.Context(), "catalogue rebuild requested", slog.String("remote_addr", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
