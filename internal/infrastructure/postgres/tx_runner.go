package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/retail-ops/internal/application/ports"
)

var _ ports.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos ports.TxRepos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

// NewRepos repos sobre un Querier (pool para autocommit, tx dentro de Run).
func NewRepos(q Querier) ports.TxRepos {
	return ports.TxRepos{
		Movements:      NewStockMovementRepository(q),
		Balances:       NewStockBalanceRepository(q),
		Products:       NewProductRepository(q),
		Orders:         NewOrderRepository(q),
		Events:         NewOrderEventRepository(q),
		PurchaseOrders: NewPurchaseOrderRepository(q),
		Idempotency:    NewIdempotencyRepository(q),
	}
}
