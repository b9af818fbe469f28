package order

import (
	"context"
	"fmt"
	"time"

	apptax "github.com/Zhima-Mochi/minishop-checkout/internal/application/tax"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domtax "github.com/Zhima-Mochi/minishop-checkout/internal/domain/tax"
)

type AssembleInput struct {
	ID         string
	Owner      domain.Owner
	Items      []domain.Item
	Address    domain.Address
	Currency   string
	RequestKey string
}

// Assembler turns validated items into a priced, pending order.
type Assembler struct {
	tax TaxCalculator
	now func() time.Time
}

func NewAssembler(tax TaxCalculator) *Assembler {
	return &Assembler{tax: tax, now: func() time.Time { return time.Now().UTC() }}
}

// Assemble taxes every item in its jurisdiction, falling back to the shipping region
// when the product does not pin one, and freezes the result on the order.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*domain.Order, error) {
	region, err := domtax.NormalizeRegion(in.Address.RegionCode)
	if err != nil {
		return nil, checkout.Invalid("shipping_address.region_code", "malformed region code")
	}
	lines := make([]apptax.Line, len(in.Items))
	items := make([]domain.Item, len(in.Items))
	for i, it := range in.Items {
		if it.Jurisdiction == "" {
			it.Jurisdiction = region
		}
		items[i] = it
		lines[i] = apptax.Line{Price: it.UnitPrice, Quantity: it.Quantity, Jurisdiction: it.Jurisdiction}
	}

	res, err := a.tax.Compute(ctx, lines)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].TaxRate = res.Lines[i].Rate
		items[i].TaxAmount = res.Lines[i].Tax
	}

	o, err := domain.New(domain.NewParams{
		ID:         in.ID,
		Owner:      in.Owner,
		Items:      items,
		TaxAmount:  res.TaxAmount,
		Currency:   in.Currency,
		Address:    in.Address,
		RequestKey: in.RequestKey,
		Now:        a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("order: assemble: %w", err)
	}
	if o.TotalAmount != res.Total {
		return nil, fmt.Errorf("%w: assembled total %d, computed %d", domain.ErrInvariant, o.TotalAmount, res.Total)
	}
	return o, nil
}
