package outbox

import "context"

// Event is a committed domain fact. Handlers see it only after the state change it
// describes has been persisted.
type Event interface {
	EventName() string
}

// Keyed events name the aggregate they belong to. External relays partition by it so
// events of one order stay in order.
type Keyed interface {
	AggregateID() string
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name. Several handlers may share a name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
