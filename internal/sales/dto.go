package sales

import "github.com/shopspring/decimal"

// SubmitSaleRequest is the caller-facing shape of a sale submission. Line
// semantics (positive quantity, non-negative price) are enforced by the
// service before any transaction is opened.
type SubmitSaleRequest struct {
	CustomerName  string            `json:"customer_name" validate:"required"`
	CustomerPhone string            `json:"customer_phone,omitempty" validate:"omitempty,max=30"`
	CustomerEmail string            `json:"customer_email,omitempty" validate:"omitempty,email"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Discount      decimal.Decimal   `json:"discount"`
	Conditions    string            `json:"conditions,omitempty"`
	Lines         []CartLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CartLineRequest is one prospective sale line. The unit price is a
// point-of-sale override and may differ from the catalog price.
type CartLineRequest struct {
	MaterialID int64           `json:"material_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// SubmitSaleResponse confirms a committed sale.
type SubmitSaleResponse struct {
	Sale     Sale            `json:"sale"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ListSalesRequest filters the sale ledger listing.
type ListSalesRequest struct {
	Status  string `json:"status" validate:"omitempty,oneof=COMPLETED CANCELLED"`
	Page    int    `json:"page" validate:"gte=0"`
	PerPage int    `json:"per_page" validate:"gte=0,lte=200"`
}
