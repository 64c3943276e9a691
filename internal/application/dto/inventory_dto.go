package dto

import "time"

// AdjustStockRequest body para POST /api/inventory/adjustments.
type AdjustStockRequest struct {
	ProductID     string `json:"product_id"`
	TargetBalance int64  `json:"target_balance"`
	Reason        string `json:"reason"`
}

// RecordMovementRequest body para POST /api/inventory/movements (entradas y salidas manuales).
type RecordMovementRequest struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"` // INCOMING | OUTGOING
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference,omitempty"`
}

// MovementResponse movimiento del ledger.
type MovementResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Type      string    `json:"type"`
	Quantity  int64     `json:"quantity"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// StockResponse saldo actual de un producto.
type StockResponse struct {
	ProductID    string `json:"product_id"`
	CurrentStock int64  `json:"current_stock"`
}

// ReconcileResponse compara el saldo materializado con el fold del ledger.
type ReconcileResponse struct {
	ProductID   string `json:"product_id"`
	ViewStock   int64  `json:"view_stock"`
	LedgerStock int64  `json:"ledger_stock"`
	Movements   int    `json:"movements"`
	Consistent  bool   `json:"consistent"`
}
