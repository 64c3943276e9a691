package ports

import (
	"context"
	"time"
)

// OrderStatusChanged evento de integración que se publica después de confirmar una transición.
type OrderStatusChanged struct {
	EventID      string    `json:"event_id"`
	OrderUUID    string    `json:"order_uuid"`
	StorefrontID string    `json:"storefront_id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher puerto de salida hacia el bus de eventos. Se invoca fuera de la transacción;
// un error no deshace la transición ya confirmada.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, ev OrderStatusChanged) error
}
