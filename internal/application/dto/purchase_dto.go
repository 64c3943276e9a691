package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePurchaseOrderItemRequest línea de la orden de compra.
type CreatePurchaseOrderItemRequest struct {
	ProductID       string          `json:"product_id"`
	QuantityOrdered int64           `json:"quantity_ordered"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

// CreatePurchaseOrderRequest body para POST /api/purchase-orders.
type CreatePurchaseOrderRequest struct {
	SupplierID string                           `json:"supplier_id"`
	Notes      string                           `json:"notes"`
	Items      []CreatePurchaseOrderItemRequest `json:"items"`
}

// ReceiveLineRequest body para POST /api/purchase-orders/:id/receive.
// QuantityReceived es el acumulado recibido de la línea, no el incremento.
type ReceiveLineRequest struct {
	ProductID        string `json:"product_id"`
	QuantityReceived int64  `json:"quantity_received"`
}

// PurchaseOrderItemResponse línea con cantidades pedida y recibida.
type PurchaseOrderItemResponse struct {
	ProductID        string          `json:"product_id"`
	QuantityOrdered  int64           `json:"quantity_ordered"`
	QuantityReceived int64           `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
}

// PurchaseOrderResponse orden de compra.
type PurchaseOrderResponse struct {
	ID         string                      `json:"id"`
	SupplierID string                      `json:"supplier_id"`
	Status     string                      `json:"status"`
	Notes      string                      `json:"notes,omitempty"`
	Items      []PurchaseOrderItemResponse `json:"items"`
	Warnings   []string                    `json:"warnings,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// ReceiveLineResponse resultado de recibir una línea.
type ReceiveLineResponse struct {
	PurchaseOrderID  string `json:"purchase_order_id"`
	ProductID        string `json:"product_id"`
	QuantityReceived int64  `json:"quantity_received"`
	Posted           int64  `json:"posted"`
	MovementID       string `json:"movement_id,omitempty"`
	Status           string `json:"status"`
}
