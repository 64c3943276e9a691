package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/workflow"
)

func TestValidatePurchaseTransition(t *testing.T) {
	assert.NoError(t, workflow.ValidatePurchaseTransition(entity.PurchaseStatusPending, entity.PurchaseStatusApproved))
	assert.NoError(t, workflow.ValidatePurchaseTransition(entity.PurchaseStatusApproved, entity.PurchaseStatusReceived))
	assert.NoError(t, workflow.ValidatePurchaseTransition(entity.PurchaseStatusApproved, entity.PurchaseStatusCancelled))

	err := workflow.ValidatePurchaseTransition(entity.PurchaseStatusPending, entity.PurchaseStatusReceived)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = workflow.ValidatePurchaseTransition(entity.PurchaseStatusReceived, entity.PurchaseStatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReceiveDelta(t *testing.T) {
	assert.Equal(t, int64(5), workflow.ReceiveDelta(0, 5))
	assert.Equal(t, int64(2), workflow.ReceiveDelta(5, 7))
	assert.Equal(t, int64(0), workflow.ReceiveDelta(7, 7), "reenvío del mismo acumulado")
	assert.Equal(t, int64(0), workflow.ReceiveDelta(7, 3), "el acumulado nunca retrocede")
}

func TestAllLinesReceived(t *testing.T) {
	assert.False(t, workflow.AllLinesReceived(nil))
	items := []*entity.PurchaseOrderItem{
		{ProductID: "p1", QuantityOrdered: 5, QuantityReceived: 5},
		{ProductID: "p2", QuantityOrdered: 3, QuantityReceived: 1},
	}
	assert.False(t, workflow.AllLinesReceived(items))
	items[1].QuantityReceived = 4
	assert.True(t, workflow.AllLinesReceived(items), "recibir de más también completa la línea")
}
