package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo. El stock no vive aquí: se deriva del ledger.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     decimal.Decimal // precio de venta en moneda base
	CreatedAt time.Time
}

// Supplier proveedor de órdenes de compra. Email es opcional.
type Supplier struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}
