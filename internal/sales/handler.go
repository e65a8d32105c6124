package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/liquistock/liquistock/internal/platform/httpx"
	"github.com/liquistock/liquistock/internal/shared"
)

// Handler exposes the sale transaction API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes attaches sale routes. State-changing routes are rate limited
// per client IP.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.List)
	r.Get("/sales/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/sales", h.Submit)
		r.Post("/sales/{id}/cancel", h.Cancel)
	})
}

// Submit handles POST /sales.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Discount.IsNegative() || req.Discount.GreaterThan(decimal.NewFromInt(100)) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "discount must be between 0 and 100")
		return
	}

	cart := make([]CartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		cart = append(cart, CartLine{
			MaterialID: line.MaterialID,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		})
	}

	sale, err := h.service.SubmitSale(r.Context(), SubmitSaleInput{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		Conditions:     req.Conditions,
		PaymentMethod:  PaymentMethod(req.PaymentMethod),
		Discount:       req.Discount,
		Cart:           cart,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondSaleError(w, err)
		return
	}

	subtotal := decimal.Zero
	for _, line := range sale.Lines {
		subtotal = subtotal.Add(line.Subtotal)
	}
	httpx.JSON(w, http.StatusCreated, SubmitSaleResponse{Sale: sale, Subtotal: subtotal})
}

// Cancel handles POST /sales/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}

	sale, err := h.service.CancelSale(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// Get handles GET /sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

// List handles GET /sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	req := ListSalesRequest{Status: q.Get("status"), Page: page, PerPage: perPage}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sales, pagination, err := h.service.ListSales(r.Context(), req)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
		"pagination": pagination,
	})
}

func (h *Handler) respondSaleError(w http.ResponseWriter, err error) {
	var stockErr *StockInsufficientError
	switch {
	case errors.As(err, &stockErr):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", stockErr.Error())
	case errors.Is(err, ErrAlreadyCancelled):
		httpx.Problem(w, http.StatusConflict, "Already Cancelled", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Submission", err.Error())
	case errors.Is(err, ErrSaleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitPrice),
		errors.Is(err, ErrInvalidDiscount),
		errors.Is(err, ErrInvalidPayment):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("sale operation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
