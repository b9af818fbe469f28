package order

import (
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentSucceeded   = "payment.succeeded"
	EventPaymentFailed      = "payment.failed"
	EventPaymentRefunded    = "payment.refunded"
)

type EventLine struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Minor `json:"unit_price"`
}

// OrderCreatedEvent is emitted once the pending order and its stock decrement committed.
type OrderCreatedEvent struct {
	OrderID    string      `json:"order_id"`
	OwnerKey   string      `json:"owner_key"`
	AccountID  string      `json:"account_id,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
	Lines      []EventLine `json:"lines"`
	Total      money.Minor `json:"total"`
	Currency   string      `json:"currency"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string { return EventOrderCreated }

func (e OrderCreatedEvent) AggregateID() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	lines := make([]EventLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, EventLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return OrderCreatedEvent{
		OrderID:    o.ID,
		OwnerKey:   o.Owner.Key(),
		AccountID:  o.Owner.AccountID,
		SessionID:  o.Owner.SessionID,
		Lines:      lines,
		Total:      o.TotalAmount,
		Currency:   o.Currency,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after an operational status transition.
type OrderStatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderStatusChangedEvent) EventName() string { return EventOrderStatusChanged }

func (e OrderStatusChangedEvent) AggregateID() string { return e.OrderID }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}

// PaymentStatusChangedEvent carries what receipt and fulfilment consumers need without
// reloading the order. Its name depends on the new status.
type PaymentStatusChangedEvent struct {
	OrderID           string        `json:"order_id"`
	From              PaymentStatus `json:"from"`
	To                PaymentStatus `json:"to"`
	ProviderReference string        `json:"provider_reference"`
	Total             money.Minor   `json:"total"`
	Currency          string        `json:"currency"`
	ContactName       string        `json:"contact_name,omitempty"`
	ContactEmail      string        `json:"contact_email,omitempty"`
	OccurredAt        time.Time     `json:"occurred_at"`
}

func (e PaymentStatusChangedEvent) EventName() string { return "payment." + string(e.To) }

func (e PaymentStatusChangedEvent) AggregateID() string { return e.OrderID }

func NewPaymentStatusChangedEvent(o *Order, from PaymentStatus) PaymentStatusChangedEvent {
	e := PaymentStatusChangedEvent{
		OrderID:           o.ID,
		From:              from,
		To:                o.Payment.Status,
		ProviderReference: o.Payment.ProviderReference,
		Total:             o.TotalAmount,
		Currency:          o.Currency,
		OccurredAt:        time.Now().UTC(),
	}
	if g := o.Owner.Guest; g != nil {
		e.ContactName = g.Name
		e.ContactEmail = g.Email
	}
	return e
}
