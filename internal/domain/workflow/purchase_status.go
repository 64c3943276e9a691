package workflow

import (
	"fmt"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

var purchaseTransitions = map[string][]string{
	entity.PurchaseStatusPending:  {entity.PurchaseStatusApproved, entity.PurchaseStatusCancelled},
	entity.PurchaseStatusApproved: {entity.PurchaseStatusReceived, entity.PurchaseStatusCancelled},
}

// ValidatePurchaseTransition valida el paso de una orden de compra entre estados.
func ValidatePurchaseTransition(from, to string) error {
	for _, next := range purchaseTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: orden de compra %s → %s", domain.ErrInvalidTransition, from, to)
}

// AllLinesReceived true si todas las líneas recibieron al menos lo pedido.
func AllLinesReceived(items []*entity.PurchaseOrderItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.FullyReceived() {
			return false
		}
	}
	return true
}

// ReceiveDelta cantidad a publicar en el ledger: max(0, recibido − registrado).
func ReceiveDelta(previouslyRecorded, quantityReceived int64) int64 {
	if quantityReceived <= previouslyRecorded {
		return 0
	}
	return quantityReceived - previouslyRecorded
}
