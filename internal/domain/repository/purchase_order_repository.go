package repository

import (
	"context"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// PurchaseOrderRepository puerto de órdenes de compra y sus líneas.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder, items []*entity.PurchaseOrderItem) error
	GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	// GetForUpdate bloquea la cabecera; serializa recepciones concurrentes de la misma orden.
	GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	GetItems(ctx context.Context, id string) ([]*entity.PurchaseOrderItem, error)
	UpdateItemReceived(ctx context.Context, id, productID string, quantityReceived int64) error
	UpdateStatus(ctx context.Context, id, expected, next string) error
}
