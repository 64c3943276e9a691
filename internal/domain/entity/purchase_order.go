package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la orden de compra a proveedor.
const (
	PurchaseStatusPending   = "PENDING"
	PurchaseStatusApproved  = "APPROVED"
	PurchaseStatusReceived  = "RECEIVED"
	PurchaseStatusCancelled = "CANCELLED"
)

// PurchaseOrder cabecera de la orden de compra.
type PurchaseOrder struct {
	ID         string
	SupplierID string
	Status     string
	Notes      string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	CreatedBy  string
}

// PurchaseOrderItem línea de la orden; QuantityReceived es acumulado y nunca disminuye.
type PurchaseOrderItem struct {
	PurchaseOrderID  string
	ProductID        string
	QuantityOrdered  int64
	QuantityReceived int64
	UnitCost         decimal.Decimal
}

// FullyReceived indica si la línea ya recibió al menos lo pedido.
func (i PurchaseOrderItem) FullyReceived() bool {
	return i.QuantityReceived >= i.QuantityOrdered
}
