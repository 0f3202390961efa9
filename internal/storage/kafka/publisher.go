// Package kafka publishes domain events to a Kafka topic.
package kafka

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/bistro/internal/domain/event"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ event.Publisher = (*Publisher)(nil)

// Publisher writes events as JSON messages keyed by aggregate ID.
type Publisher struct {
	w       MessageWriter
	timeout time.Duration
}

// NewWriter returns a writer that hashes keys across partitions so events of
// one aggregate keep their order.
func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher wraps w. Each Publish call is bounded by timeout.
func NewPublisher(w MessageWriter, timeout time.Duration) *Publisher {
	return &Publisher{w: w, timeout: timeout}
}

func (p *Publisher) Publish(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{
			Key:     []byte(ev.Key),
			Value:   Encode(ev),
			Time:    ev.At,
			Headers: []kafka.Header{{Key: "kind", Value: []byte(ev.Kind)}},
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// Encode renders ev as a JSON object with attributes in key order.
func Encode(ev event.Event) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(ev.Kind))
	e.FieldStart("key")
	e.Str(ev.Key)
	if ev.UserID != "" {
		e.FieldStart("userId")
		e.Str(ev.UserID)
	}
	e.FieldStart("at")
	e.Str(ev.At.UTC().Format(time.RFC3339Nano))
	if len(ev.Attrs) > 0 {
		keys := make([]string, 0, len(ev.Attrs))
		for k := range ev.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		e.FieldStart("attrs")
		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			e.Str(ev.Attrs[k])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	return append([]byte(nil), e.Bytes()...)
}
