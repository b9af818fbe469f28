package order

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderGet = "order.get"

type GetOrderInput struct {
	OrderID string
	// Caller nil means an operator read without an owner check.
	Caller domcart.Caller
}

type GetOrderUseCase struct {
	repo domain.Repository
	inst *application.Instruments
}

func NewGetOrderUseCase(repo domain.Repository, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{repo: repo, inst: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, cmd GetOrderInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderGet, "GetOrder", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	o, err := loadOwned(ctx, uc.repo, cmd.OrderID, cmd.Caller)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	return o, nil
}

// loadOwned hides orders that belong to someone else behind ErrNotFound.
func loadOwned(ctx context.Context, repo domain.Repository, id string, caller domcart.Caller) (*domain.Order, error) {
	if id == "" {
		return nil, checkout.Invalid("order_id", "required")
	}
	o, err := repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if !ownedBy(o, caller) {
		return nil, ErrNotFound
	}
	return o, nil
}

func ownedBy(o *domain.Order, caller domcart.Caller) bool {
	switch c := caller.(type) {
	case nil:
		return true
	case domcart.Authenticated:
		return c.AccountID != "" && o.Owner.AccountID == c.AccountID
	case domcart.Guest:
		return c.SessionID != "" && o.Owner.SessionID == c.SessionID
	default:
		return false
	}
}
