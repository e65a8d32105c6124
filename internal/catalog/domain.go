package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Material is a stocked item offered for liquidation.
type Material struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListFilter narrows material listings.
type ListFilter struct {
	Search      string
	Category    string
	InStockOnly bool
	Page        int
	PerPage     int
}

// ErrMaterialNotFound indicates a missing material row.
var ErrMaterialNotFound = errors.New("catalog: material not found")
