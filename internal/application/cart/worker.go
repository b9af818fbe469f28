package cart

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	workerService       = "cart_worker"
	useCaseClearOnOrder = "cart.worker.order_created"
)

// Worker clears a cart once an order has superseded it.
type Worker struct {
	subscriber domoutbox.Subscriber
	resolver   *Resolver
	inst       *application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, resolver *Resolver, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		resolver:   resolver,
		inst:       application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.resolver == nil {
		return
	}
	w.subscriber.Subscribe(domorder.EventOrderCreated, w.handleOrderCreated)
}

func (w *Worker) handleOrderCreated(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		w.inst.Count(useCaseClearOnOrder, "ignored")
		return nil
	}

	ctx, run := w.inst.Begin(ctx, useCaseClearOnOrder, "ClearCart",
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	defer func() { run.End(err) }()
	run.With("order_id", evt.OrderID)

	owner := domcart.OwnerRef{Kind: domcart.OwnerAccount, ID: evt.AccountID}
	if evt.AccountID == "" {
		owner = domcart.OwnerRef{Kind: domcart.OwnerSession, ID: evt.SessionID}
	}
	if owner.ID == "" {
		run.Ignore("NO_OWNER")
		return nil
	}
	if err := w.resolver.Clear(ctx, owner); err != nil {
		run.Fail("CART_CLEAR_FAILED")
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
