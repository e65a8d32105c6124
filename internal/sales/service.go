package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/liquistock/liquistock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, saleID int64) (Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]Sale, shared.Pagination, error)
}

// CatalogInvalidator drops cached material listings after stock changes.
type CatalogInvalidator interface {
	InvalidateListings(ctx context.Context) error
}

// TicketEnqueuer schedules post-commit ticket delivery. Failures never affect
// the committed sale.
type TicketEnqueuer interface {
	EnqueueTicketEmail(ctx context.Context, saleID int64, email string) error
}

// MetricsRecorder counts engine outcomes.
type MetricsRecorder interface {
	RecordSale(operation, result string)
}

// SubmitSaleInput is the engine-facing submission value. The cart is explicit
// state owned by the caller; the engine holds nothing between calls.
type SubmitSaleInput struct {
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	Conditions     string
	PaymentMethod  PaymentMethod
	Discount       decimal.Decimal
	Cart           []CartLine
	ActorID        int64
	IdempotencyKey string
}

// CartLine is one requested sale line in cart order.
type CartLine struct {
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// Service is the sale transaction engine. It owns the invariant that stock is
// never oversold and that a sale commits all-or-nothing.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	invalidator CatalogInvalidator
	enqueuer    TicketEnqueuer
	metrics     MetricsRecorder
	logger      *slog.Logger
}

// NewService builds Service. Idempotency store, invalidator, enqueuer, and
// metrics are optional; a nil value disables the corresponding behaviour.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, invalidator CatalogInvalidator, enqueuer TicketEnqueuer, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idempotency: idem, invalidator: invalidator, enqueuer: enqueuer, metrics: metrics, logger: logger}
}

func (s *Service) record(operation, result string) {
	if s.metrics != nil {
		s.metrics.RecordSale(operation, result)
	}
}

// SubmitSale validates the cart, then commits header, lines, stock decrements,
// and the activity log entry as a single transaction. Materials are locked one
// at a time in cart order; the first line found short is the one reported.
func (s *Service) SubmitSale(ctx context.Context, input SubmitSaleInput) (Sale, error) {
	if err := validateSubmit(input); err != nil {
		return Sale{}, err
	}

	subtotal := decimal.Zero
	for _, line := range input.Cart {
		subtotal = subtotal.Add(line.Quantity.Mul(line.UnitPrice))
	}
	total := subtotal.Mul(decimal.NewFromInt(100).Sub(input.Discount)).
		Div(decimal.NewFromInt(100)).Round(2)

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		key := fmt.Sprintf("sales:submit:%s", input.IdempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
			return Sale{}, err
		}
		insertedKey = true
	}

	var saleID int64
	lines := make([]SaleLine, 0, len(input.Cart))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSale(ctx, Sale{
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			CustomerEmail: input.CustomerEmail,
			Conditions:    input.Conditions,
			PaymentMethod: input.PaymentMethod,
			Discount:      input.Discount,
			Total:         total,
			Status:        SaleStatusCompleted,
			ResponsibleID: input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("insert sale header: %w", err)
		}
		saleID = id

		for i, line := range input.Cart {
			stock, err := tx.GetMaterialForUpdate(ctx, line.MaterialID)
			if err != nil {
				if errors.Is(err, ErrMaterialNotFound) {
					return &StockInsufficientError{
						MaterialID: line.MaterialID,
						Requested:  line.Quantity,
						Available:  decimal.Zero,
					}
				}
				return fmt.Errorf("lock material %d: %w", line.MaterialID, err)
			}
			if stock.Quantity.LessThan(line.Quantity) {
				return &StockInsufficientError{
					MaterialID:  stock.ID,
					Code:        stock.Code,
					Description: stock.Description,
					Requested:   line.Quantity,
					Available:   stock.Quantity,
				}
			}

			saleLine := SaleLine{
				SaleID:     saleID,
				MaterialID: line.MaterialID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
				Subtotal:   line.Quantity.Mul(line.UnitPrice),
				LineOrder:  i + 1,
			}
			if err := tx.InsertSaleLine(ctx, saleLine); err != nil {
				return fmt.Errorf("insert sale line %d: %w", i+1, err)
			}
			lines = append(lines, saleLine)

			if err := tx.AdjustMaterialQuantity(ctx, line.MaterialID, line.Quantity.Neg()); err != nil {
				return fmt.Errorf("decrement material %d: %w", line.MaterialID, err)
			}
		}

		return tx.AppendLog(ctx, shared.ActivityEntry{
			ActorID:     input.ActorID,
			Action:      shared.ActionSale,
			Entity:      "sales",
			EntityID:    saleID,
			Description: fmt.Sprintf("Multi-item sale to %s, total %s", input.CustomerName, total.StringFixed(2)),
		})
	})
	if err != nil {
		if insertedKey {
			key := fmt.Sprintf("sales:submit:%s", input.IdempotencyKey)
			if derr := s.idempotency.Delete(ctx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		if errors.Is(err, ErrStockInsufficient) {
			s.record("submit", "stock_insufficient")
		} else {
			s.record("submit", "error")
		}
		return Sale{}, err
	}

	s.record("submit", "committed")
	s.afterStockChange(ctx)
	if s.enqueuer != nil && input.CustomerEmail != "" {
		if err := s.enqueuer.EnqueueTicketEmail(ctx, saleID, input.CustomerEmail); err != nil {
			s.logger.Warn("enqueue ticket email", slog.Int64("sale_id", saleID), slog.Any("error", err))
		}
	}

	// The sale is durable at this point, so a failed confirmation read must
	// not turn into a failure report. Fall back to the data in hand.
	committed := Sale{
		ID:            saleID,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		CustomerEmail: input.CustomerEmail,
		Conditions:    input.Conditions,
		PaymentMethod: input.PaymentMethod,
		Discount:      input.Discount,
		Total:         total,
		Status:        SaleStatusCompleted,
		ResponsibleID: input.ActorID,
		Lines:         lines,
	}
	return s.confirmRead(ctx, committed), nil
}

// confirmRead re-reads a committed sale for server-assigned fields (row ids,
// created_at). The commit already happened, so on read failure the in-hand
// snapshot is returned instead of an error.
func (s *Service) confirmRead(ctx context.Context, committed Sale) Sale {
	fresh, err := s.repo.Get(ctx, committed.ID)
	if err != nil {
		s.logger.Warn("read back committed sale", slog.Int64("sale_id", committed.ID), slog.Any("error", err))
		return committed
	}
	return fresh
}

// CancelSale flips a COMPLETED sale to CANCELLED and restores each line's
// quantity verbatim. Restoration is a compensating action, not a rollback:
// intervening sales against the same materials are left untouched.
func (s *Service) CancelSale(ctx context.Context, saleID, actorID int64) (Sale, error) {
	var cancelled Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == SaleStatusCancelled {
			return ErrAlreadyCancelled
		}

		lines, err := tx.ListSaleLines(ctx, saleID)
		if err != nil {
			return fmt.Errorf("list sale lines: %w", err)
		}
		sale.Status = SaleStatusCancelled
		sale.Total = decimal.Zero
		sale.Lines = lines
		cancelled = sale
		for _, line := range lines {
			if err := tx.AdjustMaterialQuantity(ctx, line.MaterialID, line.Quantity); err != nil {
				return fmt.Errorf("restore material %d: %w", line.MaterialID, err)
			}
		}

		if err := tx.SetSaleStatus(ctx, saleID, SaleStatusCancelled, decimal.Zero); err != nil {
			return fmt.Errorf("set sale status: %w", err)
		}

		return tx.AppendLog(ctx, shared.ActivityEntry{
			ActorID:     actorID,
			Action:      shared.ActionCancellation,
			Entity:      "sales",
			EntityID:    saleID,
			Description: fmt.Sprintf("Sale %d cancelled, stock restored", saleID),
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCancelled) {
			s.record("cancel", "already_cancelled")
		} else {
			s.record("cancel", "error")
		}
		return Sale{}, err
	}

	s.record("cancel", "cancelled")
	s.afterStockChange(ctx)
	return s.confirmRead(ctx, cancelled), nil
}

// GetSale returns a sale with its lines.
func (s *Service) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// ListSales returns sale headers newest first.
func (s *Service) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, shared.Pagination, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) afterStockChange(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateListings(ctx); err != nil {
		s.logger.Warn("invalidate catalog listings", slog.Any("error", err))
	}
}

func validateSubmit(input SubmitSaleInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return ErrCustomerRequired
	}
	if !input.PaymentMethod.Valid() {
		return ErrInvalidPayment
	}
	if input.Discount.IsNegative() {
		return ErrInvalidDiscount
	}
	if len(input.Cart) == 0 {
		return ErrEmptyCart
	}
	for _, line := range input.Cart {
		if !line.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return ErrInvalidUnitPrice
		}
	}
	return nil
}
