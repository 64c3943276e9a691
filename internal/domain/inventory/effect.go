package inventory

import (
	"fmt"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// EffectKind dirección del efecto de un movimiento sobre el saldo.
type EffectKind int

const (
	Increase EffectKind = iota + 1
	Decrease
)

// Effect variante etiquetada Increase(n) | Decrease(n), con n > 0. Se deriva de
// (tipo, cantidad) en el borde para que el saldo sea una suma sin switch por tipo.
type Effect struct {
	Kind   EffectKind
	Amount int64
}

// Delta valor con signo del efecto.
func (e Effect) Delta() int64 {
	if e.Kind == Decrease {
		return -e.Amount
	}
	return e.Amount
}

// EffectOf traduce un movimiento a su efecto. INCOMING/OUTGOING exigen cantidad positiva;
// ADJUSTMENT acepta cualquier signo excepto cero.
func EffectOf(movementType string, quantity int64) (Effect, error) {
	switch movementType {
	case entity.MovementTypeIncoming:
		if quantity <= 0 {
			return Effect{}, fmt.Errorf("%w: cantidad de entrada debe ser positiva", domain.ErrValidation)
		}
		return Effect{Kind: Increase, Amount: quantity}, nil
	case entity.MovementTypeOutgoing:
		if quantity <= 0 {
			return Effect{}, fmt.Errorf("%w: cantidad de salida debe ser positiva", domain.ErrValidation)
		}
		return Effect{Kind: Decrease, Amount: quantity}, nil
	case entity.MovementTypeAdjustment:
		switch {
		case quantity > 0:
			return Effect{Kind: Increase, Amount: quantity}, nil
		case quantity < 0:
			return Effect{Kind: Decrease, Amount: -quantity}, nil
		}
		return Effect{}, fmt.Errorf("%w: ajuste en cero", domain.ErrNoOp)
	}
	return Effect{}, fmt.Errorf("%w: tipo de movimiento %q", domain.ErrValidation, movementType)
}

// Apply aplica el efecto a un saldo. Devuelve ErrInsufficientStock si el resultado fuera negativo.
func Apply(balance int64, e Effect) (int64, error) {
	next := balance + e.Delta()
	if next < 0 {
		return balance, domain.ErrInsufficientStock
	}
	return next, nil
}

// Fold deriva el saldo sumando Σ(entradas) − Σ(salidas) + Σ(ajustes) de todos los movimientos.
// Movimientos inválidos se ignoran; el ledger solo los contiene si se saltó la validación.
func Fold(movements []*entity.StockMovement) int64 {
	var total int64
	for _, m := range movements {
		e, err := EffectOf(m.Type, m.Quantity)
		if err != nil {
			continue
		}
		total += e.Delta()
	}
	return total
}

// NetByReference saldo neto por producto de los movimientos con la referencia dada.
// Un pedido con salidas publicadas tiene valores negativos.
func NetByReference(movements []*entity.StockMovement, reference string) map[string]int64 {
	net := make(map[string]int64)
	for _, m := range movements {
		if m.Reference != reference {
			continue
		}
		e, err := EffectOf(m.Type, m.Quantity)
		if err != nil {
			continue
		}
		net[m.ProductID] += e.Delta()
	}
	return net
}
