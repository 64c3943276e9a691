package ports

import (
	"context"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Movements      repository.StockMovementRepository
	Balances       repository.StockBalanceRepository
	Products       repository.ProductRepository
	Orders         repository.OrderRepository
	Events         repository.OrderEventRepository
	PurchaseOrders repository.PurchaseOrderRepository
	Idempotency    repository.IdempotencyRepository
}

// TxRunner ejecuta fn dentro de una transacción; Commit si fn devuelve nil, Rollback si no.
// Es la primitiva de check-and-append: toda verificación de saldo o estado que condiciona
// una escritura debe leerse con los repos de la tx.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos TxRepos) error) error
}

// StockPoster publica movimientos en el ledger dentro de la transacción del caller,
// verificando que ningún saldo quede negativo.
type StockPoster interface {
	PostInTx(ctx context.Context, repos TxRepos, movements []*entity.StockMovement) error
}
