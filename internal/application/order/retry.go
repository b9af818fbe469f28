package order

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderRetryPayment = "order.retry_payment"

type RetryPaymentInput struct {
	OrderID string
	Caller  domcart.Caller
}

// RetryPaymentUseCase reopens the payment session of an order whose gateway call failed.
// The idempotency key is the one derived at creation, so the provider never charges twice.
type RetryPaymentUseCase struct {
	repo     domain.Repository
	sessions sessionOpener
	inst     *application.Instruments
}

func NewRetryPaymentUseCase(repo domain.Repository, gateway dompayment.Gateway, timeout time.Duration, tel observability.Observability) *RetryPaymentUseCase {
	return &RetryPaymentUseCase{
		repo:     repo,
		sessions: newSessionOpener(gateway, repo, timeout, tel),
		inst:     application.NewInstruments(tel, orderService),
	}
}

func (uc *RetryPaymentUseCase) Execute(ctx context.Context, cmd RetryPaymentInput) (_ *domain.Order, err error) {
	ctx, run := uc.inst.Begin(ctx, useCaseOrderRetryPayment, "RetryPayment", attribute.String("order.id", cmd.OrderID))
	defer func() { run.End(err) }()

	o, err := loadOwned(ctx, uc.repo, cmd.OrderID, cmd.Caller)
	if err != nil {
		run.Fail("ORDER_LOAD_FAILED")
		return nil, err
	}
	if o.Status != domain.StatusPending || o.Payment.Status != domain.PaymentPending {
		run.Fail("NOT_AWAITING_PAYMENT")
		return nil, fmt.Errorf("%w: order %s is %s with payment %s", checkout.ErrStateViolation, o.ID, o.Status, o.Payment.Status)
	}
	if o.Payment.ProviderReference != "" {
		run.Status("SESSION_ALREADY_OPEN")
		return o, nil
	}
	if err := uc.sessions.open(ctx, o); err != nil {
		run.Fail("PAYMENT_SESSION_FAILED")
		return nil, err
	}
	return o, nil
}
