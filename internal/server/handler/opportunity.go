package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/service"
)

// OpportunityLister lists recorded opportunities, newest first.
type OpportunityLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// OpportunityHandler serves opportunity history.
type OpportunityHandler struct {
	opps   OpportunityLister
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(opps OpportunityLister, logger *slog.Logger) *OpportunityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpportunityHandler{opps: opps, logger: logger.With(slog.String("handler", "opportunity"))}
}

// ListRecent returns the most recent opportunities.
// GET /api/opportunities/recent?limit=N
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opps, err := h.opps.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	views := make([]service.OpportunityView, len(opps))
	for i, o := range opps {
		views[i] = service.NewOpportunityView(o)
	}
	writeJSON(w, http.StatusOK, views)
}
