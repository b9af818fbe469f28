package order

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	dominventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	workerService   = "order-worker"
	useCaseRelay    = "order.worker.relay"
	relaySpanSuffix = "RelayEvent"
)

// EventSink forwards committed domain events to an external stream.
type EventSink interface {
	Forward(ctx context.Context, e domoutbox.Event) error
}

// RelayedEvents lists the events the relay worker forwards.
var RelayedEvents = []string{
	domorder.EventOrderCreated,
	domorder.EventOrderStatusChanged,
	domorder.EventPaymentSucceeded,
	domorder.EventPaymentFailed,
	domorder.EventPaymentRefunded,
	dominventory.EventReserved,
	dominventory.EventReservationFailed,
}

// Worker relays order lifecycle events from the in-process bus to an EventSink.
type Worker struct {
	subscriber domoutbox.Subscriber
	sink       EventSink
	inst       *application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, sink EventSink, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		sink:       sink,
		inst:       application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sink == nil {
		return
	}
	for _, name := range RelayedEvents {
		w.subscriber.Subscribe(name, w.handleRelay)
	}
}

func (w *Worker) handleRelay(ctx context.Context, e domoutbox.Event) (err error) {
	ctx, run := w.inst.Begin(ctx, useCaseRelay, relaySpanSuffix, attribute.String("event", e.EventName()))
	defer func() { run.End(err) }()
	run.With("event", e.EventName())

	if err := w.sink.Forward(ctx, e); err != nil {
		run.Fail("EVENT_FORWARD_FAILED")
		return fmt.Errorf("worker: forward %s: %w", e.EventName(), err)
	}
	return nil
}
