package workflow

import (
	"fmt"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// orderTransitions tabla de transiciones permitidas del pedido.
var orderTransitions = map[entity.OrderStatus][]entity.OrderStatus{
	entity.OrderStatusDraft:     {entity.OrderStatusPaid, entity.OrderStatusCancelled},
	entity.OrderStatusPaid:      {entity.OrderStatusConfirmed, entity.OrderStatusCancelled},
	entity.OrderStatusConfirmed: {entity.OrderStatusPacked, entity.OrderStatusCancelled},
	entity.OrderStatusPacked:    {entity.OrderStatusDelivery},
	entity.OrderStatusDelivery:  {entity.OrderStatusComplete, entity.OrderStatusReturned},
	entity.OrderStatusComplete:  {entity.OrderStatusReturned},
}

// chainRank posición en la cadena principal; las ramas no tienen rango.
var chainRank = map[entity.OrderStatus]int{
	entity.OrderStatusDraft:     0,
	entity.OrderStatusPaid:      1,
	entity.OrderStatusConfirmed: 2,
	entity.OrderStatusPacked:    3,
	entity.OrderStatusDelivery:  4,
	entity.OrderStatusComplete:  5,
}

// IsKnownOrderStatus indica si s es un estado definido.
func IsKnownOrderStatus(s entity.OrderStatus) bool {
	if _, ok := chainRank[s]; ok {
		return true
	}
	return s == entity.OrderStatusCancelled || s == entity.OrderStatusReturned
}

// IsTerminal CANCELLED y RETURNED no admiten más transiciones.
func IsTerminal(s entity.OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// ChainRank devuelve la posición de s en la cadena principal.
func ChainRank(s entity.OrderStatus) (int, bool) {
	r, ok := chainRank[s]
	return r, ok
}

// CanTransition indica si to es alcanzable desde from en un paso.
func CanTransition(from, to entity.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition devuelve ErrValidation si el destino es desconocido y ErrInvalidTransition
// si no es alcanzable desde from.
func ValidateTransition(from, to entity.OrderStatus) error {
	if !IsKnownOrderStatus(to) {
		return fmt.Errorf("%w: estado %q desconocido", domain.ErrValidation, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStatuses estados alcanzables desde s (para la UI).
func NextStatuses(s entity.OrderStatus) []entity.OrderStatus {
	out := make([]entity.OrderStatus, len(orderTransitions[s]))
	copy(out, orderTransitions[s])
	return out
}

// PostsOutgoing la transición publica salidas de stock por cada ítem.
func PostsOutgoing(from, to entity.OrderStatus) bool {
	return from == entity.OrderStatusDraft && to == entity.OrderStatusPaid
}

// ReversesStock la transición devuelve al stock las salidas netas ya publicadas.
func ReversesStock(to entity.OrderStatus) bool {
	return to == entity.OrderStatusCancelled || to == entity.OrderStatusReturned
}

// RequiresConfirmationEmail la transición despacha el email de confirmación antes de registrarse.
func RequiresConfirmationEmail(from, to entity.OrderStatus) bool {
	return from == entity.OrderStatusPaid && to == entity.OrderStatusConfirmed
}
