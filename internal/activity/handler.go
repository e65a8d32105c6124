// Package activity exposes the activity log over HTTP. Entries themselves are
// written by the sale engine inside its transactions; this package is
// read-only.
package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liquistock/liquistock/internal/platform/httpx"
	"github.com/liquistock/liquistock/internal/shared"
)

// Handler serves activity log listings.
type Handler struct {
	logger *slog.Logger
	log    *shared.ActivityLog
}

// NewHandler constructs the activity handler.
func NewHandler(logger *slog.Logger, log *shared.ActivityLog) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, log: log}
}

// MountRoutes registers activity endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/activity", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := shared.ActivityFilter{
		Action: shared.ActionKind(q.Get("action")),
	}
	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "actor_id must be an integer")
			return
		}
		filter.ActorID = actorID
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	entries, page, err := h.log.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"entries":    entries,
		"pagination": page,
	})
}
