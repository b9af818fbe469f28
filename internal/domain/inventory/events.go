package inventory

import "time"

const (
	EventReserved          = "inventory.reserved"
	EventReservationFailed = "inventory.reservation_failed"
)

// ReservedLine is one decremented stock position.
type ReservedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// InventoryReservedEvent is emitted after an order's stock decrement committed.
type InventoryReservedEvent struct {
	OrderID    string         `json:"order_id"`
	Lines      []ReservedLine `json:"lines"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (InventoryReservedEvent) EventName() string { return EventReserved }

func (e InventoryReservedEvent) AggregateID() string { return e.OrderID }

func NewInventoryReservedEvent(orderID string, lines []ReservedLine) InventoryReservedEvent {
	return InventoryReservedEvent{
		OrderID:    orderID,
		Lines:      append([]ReservedLine(nil), lines...),
		OccurredAt: time.Now().UTC(),
	}
}

// InventoryReservationFailedEvent is emitted when a conditional decrement lost a race
// against a concurrent checkout.
type InventoryReservationFailedEvent struct {
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (InventoryReservationFailedEvent) EventName() string { return EventReservationFailed }

func (e InventoryReservationFailedEvent) AggregateID() string { return e.OrderID }

func NewInventoryReservationFailedEvent(orderID, productID string, quantity int, reason string) InventoryReservationFailedEvent {
	return InventoryReservationFailedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
