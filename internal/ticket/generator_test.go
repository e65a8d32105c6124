package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/liquistock/liquistock/internal/catalog"
	"github.com/liquistock/liquistock/internal/sales"
)

type staticResolver struct {
	materials map[int64]catalog.Material
}

func (r *staticResolver) Get(ctx context.Context, id int64) (catalog.Material, error) {
	m, ok := r.materials[id]
	if !ok {
		return catalog.Material{}, catalog.ErrMaterialNotFound
	}
	return m, nil
}

func sampleSale() sales.Sale {
	return sales.Sale{
		ID:            42,
		CustomerName:  "Maria Lopez",
		PaymentMethod: sales.PaymentCash,
		Discount:      decimal.RequireFromString("10"),
		Total:         decimal.RequireFromString("117.00"),
		Status:        sales.SaleStatusCompleted,
		CreatedAt:     time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		Lines: []sales.SaleLine{
			{MaterialID: 1, Quantity: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("50.00"), Subtotal: decimal.RequireFromString("100.00"), LineOrder: 1},
			{MaterialID: 2, Quantity: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("30.00"), Subtotal: decimal.RequireFromString("30.00"), LineOrder: 2},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	resolver := &staticResolver{materials: map[int64]catalog.Material{
		1: {ID: 1, Code: "MAT-001", Description: "Leather sole"},
		2: {ID: 2, Code: "MAT-002", Description: "Rubber heel"},
	}}
	g := NewGenerator(resolver, "Liquistock Outlet")

	pdf, err := g.Render(context.Background(), sampleSale())
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	require.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderToleratesMissingMaterial(t *testing.T) {
	g := NewGenerator(&staticResolver{}, "")

	pdf, err := g.Render(context.Background(), sampleSale())
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
}

func TestReferenceIsStablePerSale(t *testing.T) {
	require.Equal(t, Reference(42), Reference(42))
	require.NotEqual(t, Reference(42), Reference(43))
}
