package order

import (
	"context"

	appinventory "github.com/Zhima-Mochi/minishop-checkout/internal/application/inventory"
	apptax "github.com/Zhima-Mochi/minishop-checkout/internal/application/tax"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

type IDGenerator interface {
	NewID() string
}

type CartResolver interface {
	Resolve(ctx context.Context, caller domcart.Caller, explicit []domcart.Line) ([]domcart.Line, error)
}

type InventoryValidator interface {
	Validate(ctx context.Context, caller domcart.Caller, lines []domcart.Line) (*appinventory.Result, error)
}

type TaxCalculator interface {
	Compute(ctx context.Context, lines []apptax.Line) (apptax.Result, error)
}
