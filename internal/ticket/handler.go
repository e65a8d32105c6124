package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liquistock/liquistock/internal/platform/httpx"
	"github.com/liquistock/liquistock/internal/sales"
)

// SaleGetter resolves a committed sale with its lines.
type SaleGetter interface {
	GetSale(ctx context.Context, saleID int64) (sales.Sale, error)
}

// Handler serves ticket downloads.
type Handler struct {
	logger    *slog.Logger
	generator *Generator
	sales     SaleGetter
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, generator *Generator, sales SaleGetter) *Handler {
	return &Handler{logger: logger, generator: generator, sales: sales}
}

// MountRoutes attaches ticket routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales/{id}/ticket", h.Download)
}

// Download handles GET /sales/{id}/ticket.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}

	sale, err := h.sales.GetSale(r.Context(), id)
	if errors.Is(err, sales.ErrSaleNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "sale not found")
		return
	}
	if err != nil {
		h.logger.Error("load sale for ticket", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	pdf, err := h.generator.Render(r.Context(), sale)
	if err != nil {
		h.logger.Error("render ticket", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ticket_%d.pdf", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
