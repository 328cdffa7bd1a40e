package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// AuditHandler serves the audit log.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{audit: audit, logger: logger.With(slog.String("handler", "audit"))}
}

type auditEntryView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// List returns audit entries, newest first.
// GET /api/audit?event=E&since=RFC3339&limit=N
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := domain.ListOpts{
		Event: r.URL.Query().Get("event"),
		Limit: parseLimit(r),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = &since
	}

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	views := make([]auditEntryView, len(entries))
	for i, e := range entries {
		views[i] = auditEntryView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, views)
}
