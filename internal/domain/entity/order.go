package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus estado del flujo de vida de un pedido de venta.
type OrderStatus string

// Estados del pedido. La cadena principal es DRAFT → PAID → CONFIRMED → PACKED → DELIVERY → COMPLETE;
// CANCELLED y RETURNED son ramas terminales.
const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPacked    OrderStatus = "PACKED"
	OrderStatusDelivery  OrderStatus = "DELIVERY"
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusReturned  OrderStatus = "RETURNED"
)

// Order cabecera del pedido. Status es caché desnormalizada del último evento status_change;
// solo se modifica por transiciones del flujo (CAS sobre Status+Version).
type Order struct {
	UUID          string
	Status        OrderStatus
	CustomerName  string
	CustomerEmail string
	Discount      decimal.Decimal
	OrderTotal    decimal.Decimal // derivado de los ítems, no autoritativo
	StorefrontID  string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem línea de un pedido. Inmutable una vez el pedido sale de DRAFT.
type OrderItem struct {
	OrderUUID string
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// LineTotal cantidad × precio menos el descuento de línea.
func (i OrderItem) LineTotal() decimal.Decimal {
	return decimal.NewFromInt(i.Quantity).Mul(i.UnitPrice).Sub(i.Discount)
}

// ComputeOrderTotal recalcula el total a partir de los ítems y el descuento del pedido.
// Nunca devuelve un total negativo.
func ComputeOrderTotal(items []OrderItem, discount decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	total = total.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}
