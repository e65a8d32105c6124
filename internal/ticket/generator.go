// Package ticket renders sale tickets as PDF documents. Rendering happens
// after a sale commits, never inside the sale transaction.
package ticket

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/liquistock/liquistock/internal/catalog"
	"github.com/liquistock/liquistock/internal/sales"
)

// MaterialResolver looks up material details for line descriptions.
type MaterialResolver interface {
	Get(ctx context.Context, id int64) (catalog.Material, error)
}

// Generator builds ticket PDFs for committed sales.
type Generator struct {
	resolver  MaterialResolver
	storeName string
}

// NewGenerator constructs Generator.
func NewGenerator(resolver MaterialResolver, storeName string) *Generator {
	if storeName == "" {
		storeName = "Liquistock"
	}
	return &Generator{resolver: resolver, storeName: storeName}
}

// Reference derives a stable public identifier for a sale. Customers quote it
// when asking about a ticket without exposing the sequential sale id.
func Reference(saleID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("SALE:%d", saleID)))
}

// Render produces the PDF bytes for a sale.
func (g *Generator) Render(ctx context.Context, sale sales.Sale) ([]byte, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, g.storeName, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, fmt.Sprintf("Ticket #%d", sale.ID), props.Text{Size: 12, Align: align.Right}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Customer: "+sale.CustomerName, props.Text{Top: 0}),
			text.New("Payment: "+string(sale.PaymentMethod), props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Date: "+sale.CreatedAt.Format("2006-01-02 15:04"), props.Text{Top: 0, Align: align.Right}),
			text.New("Status: "+string(sale.Status), props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(8,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Subtotal", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range sale.Lines {
		description := fmt.Sprintf("Material %d", line.MaterialID)
		if g.resolver != nil {
			if material, err := g.resolver.Get(ctx, line.MaterialID); err == nil {
				description = fmt.Sprintf("[%s] %s", material.Code, material.Description)
			}
		}
		m.AddRow(8,
			text.NewCol(6, description, props.Text{Size: 9}),
			text.NewCol(2, line.Quantity.String(), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.UnitPrice.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.Subtotal.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	if sale.Discount.IsPositive() {
		m.AddRow(8,
			col.New(8),
			text.NewCol(2, "Discount", props.Text{Size: 9}),
			text.NewCol(2, sale.Discount.StringFixed(0)+"%", props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(2, sale.Total.StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if sale.Conditions != "" {
		m.AddRow(12, text.NewCol(12, "Conditions: "+sale.Conditions, props.Text{Size: 8}))
	}

	m.AddRow(8, text.NewCol(12, "Ref: "+Reference(sale.ID).String(), props.Text{Size: 7}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("ticket: generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
