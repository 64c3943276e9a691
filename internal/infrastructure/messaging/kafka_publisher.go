package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/retail-ops/internal/application/ports"
)

const eventTypeStatusChanged = "order.status_changed"

// KafkaPublisher publica los cambios de estado de pedidos en un topic de Kafka.
// La clave del mensaje es el uuid del pedido, así los eventos de un pedido quedan en la misma partición.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaPublisher crea el writer contra los brokers dados.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		timeout: timeout,
	}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, ev ports.OrderStatusChanged) error {
	msg, err := statusChangedMessage(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publicar %s en kafka: %w", eventTypeStatusChanged, err)
	}
	return nil
}

// Close vacía y cierra el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func statusChangedMessage(ev ports.OrderStatusChanged) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("serializar evento: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.OrderUUID),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventTypeStatusChanged)},
			{Key: "event-id", Value: []byte(ev.EventID)},
		},
	}, nil
}
