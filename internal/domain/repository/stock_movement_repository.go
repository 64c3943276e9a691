package repository

import (
	"context"
	"time"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// StockMovementRepository puerto del ledger de stock. Solo inserción: no hay Update ni Delete.
type StockMovementRepository interface {
	Append(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id string) (*entity.StockMovement, error)
	// ListByProduct devuelve los movimientos del producto en orden cronológico; limit <= 0 = sin límite.
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error)
}

// StockBalanceRepository saldo materializado por producto. Se escribe solo dentro de la
// transacción que agrega el movimiento correspondiente.
type StockBalanceRepository interface {
	Get(ctx context.Context, productID string) (*entity.StockBalance, error)
	// GetForUpdate bloquea la fila del saldo (creándola en cero si no existe).
	GetForUpdate(ctx context.Context, productID string) (*entity.StockBalance, error)
	Save(ctx context.Context, balance *entity.StockBalance) error
}
