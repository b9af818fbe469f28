// Package kafkarelay forwards domain events to a Kafka topic keyed by aggregate id,
// so all events of one order land on one partition in order.
package kafkarelay

import (
	"context"
	"encoding/json"
	"fmt"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

const headerEventType = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Sink struct {
	writer     messageWriter
	propagator propagation.TextMapPropagator
}

func NewSink(topic string, brokers ...string) *Sink {
	return newSink(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	})
}

func newSink(w messageWriter) *Sink {
	return &Sink{writer: w, propagator: propagation.TraceContext{}}
}

func (s *Sink) Forward(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafkarelay: encode %s: %w", e.EventName(), err)
	}

	msg := kafka.Message{
		Value:   payload,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.EventName())}},
	}
	if a, ok := e.(domoutbox.Keyed); ok {
		msg.Key = []byte(a.AggregateID())
	}

	carrier := propagation.MapCarrier{}
	s.propagator.Inject(ctx, carrier)
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkarelay: write %s: %w", e.EventName(), err)
	}
	return nil
}

func (s *Sink) Close() error { return s.writer.Close() }
