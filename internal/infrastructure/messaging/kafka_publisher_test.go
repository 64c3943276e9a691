package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/application/ports"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func sampleEvent() ports.OrderStatusChanged {
	return ports.OrderStatusChanged{
		EventID:      "ev-1",
		OrderUUID:    "o-1",
		StorefrontID: "tienda-centro",
		From:         "DRAFT",
		To:           "PAID",
		Actor:        "u-1",
		OccurredAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublishStatusChanged_ArmaElMensaje(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, timeout: time.Second}

	require.NoError(t, p.PublishStatusChanged(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.True(t, w.deadline, "la escritura lleva timeout")

	msg := w.msgs[0]
	assert.Equal(t, "o-1", string(msg.Key))
	assert.Equal(t, sampleEvent().OccurredAt, msg.Time)

	var got ports.OrderStatusChanged
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "PAID", got.To)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, eventTypeStatusChanged, headers["event-type"])
	assert.Equal(t, "ev-1", headers["event-id"])
}

func TestPublishStatusChanged_PropagaErrorDelBroker(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker caído")}
	p := &KafkaPublisher{writer: w, timeout: time.Second}

	err := p.PublishStatusChanged(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker caído")
}
