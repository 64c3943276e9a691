package repository

import (
	"context"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// OrderRepository puerto de persistencia de pedidos. Los pedidos nunca se borran.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order, items []*entity.OrderItem) error
	GetByUUID(ctx context.Context, uuid string) (*entity.Order, error)
	GetItems(ctx context.Context, uuid string) ([]*entity.OrderItem, error)
	// CompareAndSetStatus cambia el estado solo si el pedido sigue en expected con la versión dada.
	// Devuelve ErrConcurrentModification si no coincide.
	CompareAndSetStatus(ctx context.Context, uuid string, expected entity.OrderStatus, version int64, next entity.OrderStatus) error
}

// OrderEventRepository event log del pedido. Solo inserción.
type OrderEventRepository interface {
	Append(ctx context.Context, event *entity.OrderEvent) error
	GetByID(ctx context.Context, id string) (*entity.OrderEvent, error)
	// ListByOrder eventos del pedido, más recientes primero.
	ListByOrder(ctx context.Context, orderUUID string) ([]*entity.OrderEvent, error)
	LatestStatusChange(ctx context.Context, orderUUID string) (*entity.OrderEvent, error)
}
