package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus tracks the lifecycle of a committed sale.
type SaleStatus string

const (
	// SaleStatusCompleted is the status assigned at commit time.
	SaleStatusCompleted SaleStatus = "COMPLETED"
	// SaleStatusCancelled is terminal; stock has been restored.
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
	PaymentOther    PaymentMethod = "OTHER"
)

// Valid reports whether m is one of the accepted methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentOther:
		return true
	}
	return false
}

// Sale is the header row of a committed transaction.
type Sale struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Conditions    string          `json:"conditions,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Status        SaleStatus      `json:"status"`
	ResponsibleID int64           `json:"responsible_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []SaleLine      `json:"lines,omitempty"`
}

// SaleLine is one persisted detail row. Subtotal is derived from quantity and
// the unit price snapshot, never supplied independently.
type SaleLine struct {
	ID         int64           `json:"id"`
	SaleID     int64           `json:"sale_id"`
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	LineOrder  int             `json:"line_order"`
}

var (
	// ErrEmptyCart rejects submissions without lines.
	ErrEmptyCart = errors.New("sales: cart must contain at least one line")
	// ErrCustomerRequired rejects submissions without a customer name.
	ErrCustomerRequired = errors.New("sales: customer name required")
	// ErrInvalidQuantity rejects non-positive line quantities.
	ErrInvalidQuantity = errors.New("sales: quantity must be positive")
	// ErrInvalidUnitPrice rejects negative unit prices.
	ErrInvalidUnitPrice = errors.New("sales: unit price must be >= 0")
	// ErrInvalidDiscount rejects discounts outside [0, 100].
	ErrInvalidDiscount = errors.New("sales: discount must be between 0 and 100")
	// ErrInvalidPayment rejects unknown payment methods.
	ErrInvalidPayment = errors.New("sales: unknown payment method")
	// ErrSaleNotFound indicates a missing sale row.
	ErrSaleNotFound = errors.New("sales: sale not found")
	// ErrAlreadyCancelled reports the idempotency guard on cancellation. The
	// second cancellation is a no-op, but the caller is always told.
	ErrAlreadyCancelled = errors.New("sales: sale already cancelled")
	// ErrStockInsufficient is the match target for StockInsufficientError.
	ErrStockInsufficient = errors.New("sales: insufficient stock")
)

// StockInsufficientError identifies the first cart line, in cart order, whose
// requested quantity exceeds the locked quantity on hand.
type StockInsufficientError struct {
	MaterialID  int64
	Code        string
	Description string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *StockInsufficientError) Error() string {
	label := e.Description
	if label == "" {
		label = fmt.Sprintf("material %d", e.MaterialID)
	}
	return fmt.Sprintf("sales: insufficient stock for %s: requested %s, available %s",
		label, e.Requested.String(), e.Available.String())
}

// Unwrap lets errors.Is match ErrStockInsufficient.
func (e *StockInsufficientError) Unwrap() error {
	return ErrStockInsufficient
}
