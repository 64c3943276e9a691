package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.StockBalanceRepository = (*StockBalanceRepo)(nil)

// StockBalanceRepo saldo materializado por producto (usable con pool o tx).
type StockBalanceRepo struct {
	q Querier
}

// NewStockBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewStockBalanceRepository(q Querier) *StockBalanceRepo {
	return &StockBalanceRepo{q: q}
}

// Get obtiene el saldo actual; nil si el producto nunca tuvo movimientos.
func (r *StockBalanceRepo) Get(ctx context.Context, productID string) (*entity.StockBalance, error) {
	query := `
		SELECT product_id, quantity, version, updated_at
		FROM stock_balances WHERE product_id = $1`
	var b entity.StockBalance
	err := r.q.QueryRow(ctx, query, productID).Scan(&b.ProductID, &b.Quantity, &b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock balance: %w", err)
	}
	return &b, nil
}

// GetForUpdate obtiene el saldo y bloquea la fila (SELECT FOR UPDATE). Si no existe la crea en
// cero primero, así el primer movimiento de un producto también queda serializado.
func (r *StockBalanceRepo) GetForUpdate(ctx context.Context, productID string) (*entity.StockBalance, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_balances (product_id, quantity, version, updated_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (product_id) DO NOTHING`, productID)
	if err != nil {
		return nil, mapError("init stock balance", err)
	}
	query := `
		SELECT product_id, quantity, version, updated_at
		FROM stock_balances WHERE product_id = $1
		FOR UPDATE`
	var b entity.StockBalance
	if err := r.q.QueryRow(ctx, query, productID).Scan(&b.ProductID, &b.Quantity, &b.Version, &b.UpdatedAt); err != nil {
		return nil, mapError("get stock balance for update", err)
	}
	return &b, nil
}

// Save escribe el saldo si la versión no cambió. El CHECK quantity >= 0 respalda la validación
// de la aplicación.
func (r *StockBalanceRepo) Save(ctx context.Context, b *entity.StockBalance) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE stock_balances SET quantity = $2, version = version + 1, updated_at = $3
		WHERE product_id = $1 AND version = $4`,
		b.ProductID, b.Quantity, b.UpdatedAt, b.Version)
	if err != nil {
		return mapError("save stock balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save stock balance %s: %w", b.ProductID, domain.ErrConcurrentModification)
	}
	b.Version++
	return nil
}
