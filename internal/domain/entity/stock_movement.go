package entity

import "time"

// Tipos de movimiento de stock.
const (
	MovementTypeIncoming   = "INCOMING"   // entrada (recepción de compra, devolución)
	MovementTypeOutgoing   = "OUTGOING"   // salida (venta)
	MovementTypeAdjustment = "ADJUSTMENT" // ajuste manual, único tipo con signo
)

// StockMovement registro inmutable del ledger de stock. Nunca se actualiza ni se borra:
// las correcciones se hacen agregando movimientos compensatorios.
type StockMovement struct {
	ID        string
	ProductID string
	Type      string
	Quantity  int64 // positivo en INCOMING/OUTGOING; con signo en ADJUSTMENT
	Date      time.Time
	Reason    string
	Reference string // uuid del pedido o id de la orden de compra que lo originó (opcional)
	CreatedBy string
}

// IsValidMovementType indica si t es uno de los tipos soportados.
func IsValidMovementType(t string) bool {
	switch t {
	case MovementTypeIncoming, MovementTypeOutgoing, MovementTypeAdjustment:
		return true
	}
	return false
}

// StockBalance saldo materializado de un producto. Se mantiene en la misma transacción
// que agrega el movimiento; Version aumenta en cada escritura.
type StockBalance struct {
	ProductID string
	Quantity  int64
	Version   int64
	UpdatedAt time.Time
}
