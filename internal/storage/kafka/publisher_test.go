package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bistro/internal/domain/event"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, f.deadline = ctx.Deadline()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var at = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func TestEncode(t *testing.T) {
	raw := Encode(event.Event{
		Kind:   event.OrderCreated,
		Key:    "o-1",
		UserID: "u-1",
		At:     at,
		Attrs:  map[string]string{"total": "25.50", "address_id": "a-1"},
	})
	assert.JSONEq(t, `{
		"kind": "order.created",
		"key": "o-1",
		"userId": "u-1",
		"at": "2025-05-01T09:30:00Z",
		"attrs": {"address_id": "a-1", "total": "25.50"}
	}`, string(raw))
	assert.True(t, jx.Valid(raw))
}

func TestEncode_Minimal(t *testing.T) {
	raw := Encode(event.Event{Kind: event.RatingUpdated, Key: "d-1", At: at})
	assert.JSONEq(t, `{"kind":"rating.updated","key":"d-1","at":"2025-05-01T09:30:00Z"}`, string(raw))
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	p := NewPublisher(w, time.Second)

	require.NoError(t, p.Publish(ctx))
	assert.Empty(t, w.msgs)

	require.NoError(t, p.Publish(ctx,
		event.Event{Kind: event.OrderCreated, Key: "o-1", At: at},
		event.Event{Kind: event.OrderCanceled, Key: "o-1", At: at},
	))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("o-1"), w.msgs[0].Key)
	assert.Equal(t, "kind", w.msgs[1].Headers[0].Key)
	assert.Equal(t, []byte("order.canceled"), w.msgs[1].Headers[0].Value)
	assert.True(t, w.deadline, "publish is bounded by the timeout")

	w.err = errors.New("leader not available")
	err := p.Publish(ctx, event.Event{Kind: event.OrderCreated, Key: "o-2", At: at})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write messages")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("k1:9092,k2:9092", "bistro.events")
	assert.Equal(t, "bistro.events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
