package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService         = "payment-service"
	useCasePaymentCallback = "payment.callback"
	publishTimeout         = 300 * time.Millisecond
	maxVersionRetries      = 3
)

var ErrRepository = errors.New("payment: repository failure")

type CallbackInput struct {
	ProviderReference string
	Result            string
}

type CallbackResult struct {
	OrderID       string
	PaymentStatus domorder.PaymentStatus
	// Applied is false when the callback repeated a status the order already has.
	Applied bool
}

// HandleCallbackUseCase applies asynchronous provider results to the order they belong to.
type HandleCallbackUseCase struct {
	repo      domorder.Repository
	publisher domoutbox.Publisher
	inst      *application.Instruments
}

func NewHandleCallbackUseCase(repo domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) *HandleCallbackUseCase {
	return &HandleCallbackUseCase{
		repo:      repo,
		publisher: publisher,
		inst:      application.NewInstruments(tel, paymentService),
	}
}

// Execute is idempotent: a provider retrying the same notification changes nothing.
// Payment status moves independently of the fulfilment status.
func (uc *HandleCallbackUseCase) Execute(ctx context.Context, cmd CallbackInput) (_ *CallbackResult, err error) {
	ctx, run := uc.inst.Begin(ctx, useCasePaymentCallback, "PaymentCallback",
		attribute.String("payment.provider_reference", cmd.ProviderReference),
		attribute.String("payment.result", cmd.Result),
	)
	defer func() { run.End(err) }()

	if strings.TrimSpace(cmd.ProviderReference) == "" {
		run.Fail("REFERENCE_REQUIRED")
		return nil, checkout.Invalid("provider_reference", "required")
	}
	target, err := dompayment.ParseResult(cmd.Result)
	if err != nil {
		run.Fail("UNKNOWN_RESULT")
		return nil, checkout.Invalid("status", err.Error())
	}

	for attempt := 0; ; attempt++ {
		o, err := uc.repo.FindByProviderReference(ctx, cmd.ProviderReference)
		if err != nil {
			run.Fail("ORDER_LOOKUP_FAILED")
			if errors.Is(err, domorder.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		run.With("order_id", o.ID)

		from := o.Payment.Status
		changed, err := o.ApplyPayment(target)
		if err != nil {
			run.Fail("PAYMENT_TRANSITION_REJECTED")
			return nil, err
		}
		if !changed {
			run.Status("ALREADY_APPLIED")
			return &CallbackResult{OrderID: o.ID, PaymentStatus: o.Payment.Status}, nil
		}

		err = uc.repo.UpdateState(ctx, o)
		if errors.Is(err, domorder.ErrVersionConflict) && attempt < maxVersionRetries {
			run.Span().AddEvent("order.version_conflict")
			continue
		}
		if err != nil {
			run.Fail("ORDER_UPDATE_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}

		run.With("payment_from", string(from))
		run.With("payment_to", string(o.Payment.Status))
		publish(ctx, uc.publisher, run, domorder.NewPaymentStatusChangedEvent(o, from))
		return &CallbackResult{OrderID: o.ID, PaymentStatus: o.Payment.Status, Applied: true}, nil
	}
}

// publish is best-effort; the state change already committed.
func publish(ctx context.Context, p domoutbox.Publisher, run *application.Execution, e domoutbox.Event) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.Publish(pubCtx, e); err != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.Span().RecordError(err)
		run.Logger().Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.Err(err),
		)
	}
}
