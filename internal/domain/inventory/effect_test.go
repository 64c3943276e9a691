package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/inventory"
)

func TestEffectOf_TablaDeTipos(t *testing.T) {
	cases := []struct {
		name     string
		typ      string
		qty      int64
		wantKind inventory.EffectKind
		wantAmt  int64
		wantErr  error
	}{
		{"entrada positiva", entity.MovementTypeIncoming, 5, inventory.Increase, 5, nil},
		{"entrada en cero", entity.MovementTypeIncoming, 0, 0, 0, domain.ErrValidation},
		{"entrada negativa", entity.MovementTypeIncoming, -3, 0, 0, domain.ErrValidation},
		{"salida positiva", entity.MovementTypeOutgoing, 2, inventory.Decrease, 2, nil},
		{"salida negativa", entity.MovementTypeOutgoing, -2, 0, 0, domain.ErrValidation},
		{"ajuste positivo", entity.MovementTypeAdjustment, 7, inventory.Increase, 7, nil},
		{"ajuste negativo", entity.MovementTypeAdjustment, -4, inventory.Decrease, 4, nil},
		{"ajuste en cero", entity.MovementTypeAdjustment, 0, 0, 0, domain.ErrNoOp},
		{"tipo desconocido", "TRANSFER", 1, 0, 0, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := inventory.EffectOf(tc.typ, tc.qty)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKind, e.Kind)
			assert.Equal(t, tc.wantAmt, e.Amount)
		})
	}
}

func TestApply_NoPermiteSaldoNegativo(t *testing.T) {
	next, err := inventory.Apply(3, inventory.Effect{Kind: inventory.Decrease, Amount: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), next)

	next, err = inventory.Apply(3, inventory.Effect{Kind: inventory.Decrease, Amount: 4})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(3), next, "en error el saldo no cambia")
}

func TestFold_SumaEntradasSalidasYAjustes(t *testing.T) {
	now := time.Now()
	movs := []*entity.StockMovement{
		{ProductID: "p1", Type: entity.MovementTypeIncoming, Quantity: 10, Date: now},
		{ProductID: "p1", Type: entity.MovementTypeOutgoing, Quantity: 3, Date: now},
		{ProductID: "p1", Type: entity.MovementTypeAdjustment, Quantity: -2, Date: now},
		{ProductID: "p1", Type: entity.MovementTypeAdjustment, Quantity: 4, Date: now},
	}
	assert.Equal(t, int64(9), inventory.Fold(movs))
	assert.Equal(t, int64(0), inventory.Fold(nil))
}

func TestNetByReference_SoloLaReferencia(t *testing.T) {
	movs := []*entity.StockMovement{
		{ProductID: "p1", Type: entity.MovementTypeOutgoing, Quantity: 2, Reference: "o-1"},
		{ProductID: "p2", Type: entity.MovementTypeOutgoing, Quantity: 1, Reference: "o-1"},
		{ProductID: "p1", Type: entity.MovementTypeIncoming, Quantity: 2, Reference: "o-1"},
		{ProductID: "p1", Type: entity.MovementTypeOutgoing, Quantity: 9, Reference: "o-2"},
	}
	net := inventory.NetByReference(movs, "o-1")
	assert.Equal(t, int64(0), net["p1"], "p1 ya fue compensado")
	assert.Equal(t, int64(-1), net["p2"])
	assert.NotContains(t, net, "p3")
}
