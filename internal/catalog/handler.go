package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liquistock/liquistock/internal/platform/httpx"
)

// Handler exposes the catalog read API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.List)
	r.Get("/materials/categories", h.Categories)
	r.Get("/materials/{id}", h.Get)
}

// List handles GET /materials.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	filter := ListFilter{
		Search:      q.Get("q"),
		Category:    q.Get("category"),
		InStockOnly: q.Get("in_stock") == "1" || q.Get("in_stock") == "true",
		Page:        page,
		PerPage:     perPage,
	}

	materials, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"materials":  materials,
		"pagination": pagination,
	})
}

// Get handles GET /materials/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid material id")
		return
	}
	material, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrMaterialNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "material not found")
		return
	}
	if err != nil {
		h.logger.Error("get material", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, material)
}

// Categories handles GET /materials/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}
