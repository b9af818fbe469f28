package payment

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentWorker  = "payment_worker"
	useCaseReceipt = "payment.worker.receipt"
)

// Worker sends receipts once a payment succeeded. Account holders get theirs from the
// account service; only guest orders carry a contact address here.
type Worker struct {
	subscriber domoutbox.Subscriber
	notifier   Notifier
	inst       *application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, notifier Notifier, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		notifier:   notifier,
		inst:       application.NewInstruments(tel, paymentWorker),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.notifier == nil {
		return
	}
	w.subscriber.Subscribe(domorder.EventPaymentSucceeded, w.handlePaymentSucceeded)
}

func (w *Worker) handlePaymentSucceeded(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domorder.PaymentStatusChangedEvent)
	if !ok {
		w.inst.Count(useCaseReceipt, "ignored")
		return nil
	}

	ctx, run := w.inst.Begin(ctx, useCaseReceipt, "SendReceipt",
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()
	run.With("order_id", evt.OrderID)

	if evt.ContactEmail == "" {
		run.Ignore("NO_CONTACT")
		return nil
	}
	if err := w.notifier.SendReceipt(ctx, Receipt{
		OrderID:           evt.OrderID,
		ToName:            evt.ContactName,
		ToEmail:           evt.ContactEmail,
		Total:             evt.Total,
		Currency:          evt.Currency,
		ProviderReference: evt.ProviderReference,
	}); err != nil {
		run.Fail("RECEIPT_SEND_FAILED")
		return fmt.Errorf("worker: send receipt: %w", err)
	}
	return nil
}
