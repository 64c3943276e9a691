package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	domaininv "github.com/jhoicas/retail-ops/internal/domain/inventory"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
	"github.com/jhoicas/retail-ops/internal/infrastructure/metrics"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

var _ ports.StockPoster = (*LedgerUseCase)(nil)

// LedgerUseCase registra movimientos de stock de forma transaccional: bloquea la fila del saldo
// (SELECT FOR UPDATE), verifica que no quede negativo, agrega el movimiento y actualiza el saldo
// materializado en la misma transacción.
type LedgerUseCase struct {
	txRunner  ports.TxRunner
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	balances  repository.StockBalanceRepository
	guard     *idempotency.Guard
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewLedgerUseCase construye el caso de uso. m puede ser nil.
func NewLedgerUseCase(
	txRunner ports.TxRunner,
	products repository.ProductRepository,
	movements repository.StockMovementRepository,
	balances repository.StockBalanceRepository,
	guard *idempotency.Guard,
	m *metrics.Metrics,
	log *logger.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		txRunner:  txRunner,
		products:  products,
		movements: movements,
		balances:  balances,
		guard:     guard,
		metrics:   m,
		log:       log.Component("ledger"),
		now:       time.Now,
	}
}

// CurrentStock saldo actual del producto según el saldo materializado (cero si nunca tuvo movimientos).
func (uc *LedgerUseCase) CurrentStock(ctx context.Context, productID string) (int64, error) {
	if err := uc.requireProduct(ctx, productID); err != nil {
		return 0, err
	}
	bal, err := uc.balances.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if bal == nil {
		return 0, nil
	}
	return bal.Quantity, nil
}

// LedgerStock recalcula el saldo plegando todos los movimientos del producto.
func (uc *LedgerUseCase) LedgerStock(ctx context.Context, productID string) (int64, error) {
	movs, err := uc.movements.ListByProduct(ctx, productID, nil, nil, 0, 0)
	if err != nil {
		return 0, err
	}
	return domaininv.Fold(movs), nil
}

// Reconcile compara el saldo materializado con el fold del ledger.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, productID string) (*dto.ReconcileResponse, error) {
	view, err := uc.CurrentStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	movs, err := uc.movements.ListByProduct(ctx, productID, nil, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	ledger := domaininv.Fold(movs)
	if ledger != view {
		uc.log.Error().Str("product_id", productID).Int64("view", view).Int64("ledger", ledger).
			Msg("saldo materializado no coincide con el ledger")
	}
	return &dto.ReconcileResponse{
		ProductID:   productID,
		ViewStock:   view,
		LedgerStock: ledger,
		Movements:   len(movs),
		Consistent:  ledger == view,
	}, nil
}

// ListMovements lista los movimientos del producto en un rango de fechas.
func (uc *LedgerUseCase) ListMovements(ctx context.Context, productID string, from, to *time.Time, page dto.PageRequest) ([]dto.MovementResponse, error) {
	if err := uc.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	page.DefaultPage()
	movs, err := uc.movements.ListByProduct(ctx, productID, from, to, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, ToMovementResponse(m))
	}
	return out, nil
}

// AdjustInput entrada para un ajuste manual de stock a un saldo objetivo.
type AdjustInput struct {
	ProductID      string
	TargetBalance  int64
	Reason         string
	Actor          string
	IdempotencyKey string
}

// Adjust calcula delta = objetivo − saldo actual bajo el bloqueo de la fila y agrega un único
// movimiento ADJUSTMENT con ese delta (con signo). delta = 0 devuelve ErrNoOp.
func (uc *LedgerUseCase) Adjust(ctx context.Context, in AdjustInput) (*entity.StockMovement, error) {
	if in.ProductID == "" || in.Reason == "" {
		return nil, fmt.Errorf("%w: product_id y reason son obligatorios", domain.ErrValidation)
	}
	if in.TargetBalance < 0 {
		return nil, fmt.Errorf("%w: el saldo objetivo no puede ser negativo", domain.ErrValidation)
	}
	if err := uc.requireProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}

	scope := "stock_adjust:" + in.ProductID
	ticket, replay, err := uc.guard.Begin(ctx, scope, in.IdempotencyKey, struct {
		Target int64  `json:"target"`
		Reason string `json:"reason"`
	}{in.TargetBalance, in.Reason})
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("stock_adjust")
		return uc.replayMovement(ctx, replay)
	}

	var mov *entity.StockMovement
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		bal, err := repos.Balances.GetForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		delta := in.TargetBalance - bal.Quantity
		if delta == 0 {
			return domain.ErrNoOp
		}
		mov = &entity.StockMovement{
			ProductID: in.ProductID,
			Type:      entity.MovementTypeAdjustment,
			Quantity:  delta,
			Reason:    in.Reason,
			CreatedBy: in.Actor,
		}
		if err := uc.PostInTx(ctx, repos, []*entity.StockMovement{mov}); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, movementResult{MovementID: mov.ID})
	})
	if err != nil {
		uc.release(ctx, ticket)
		if errors.Is(err, domain.ErrNoOp) {
			uc.metrics.IncRejection("no_op")
		}
		return nil, err
	}
	uc.log.Info().Str("product_id", in.ProductID).Int64("delta", mov.Quantity).
		Int64("target", in.TargetBalance).Str("actor", in.Actor).Msg("ajuste de stock registrado")
	return mov, nil
}

// RecordMovementInput entrada para una entrada o salida manual.
type RecordMovementInput struct {
	ProductID      string
	Type           string
	Quantity       int64
	Reason         string
	Reference      string
	Actor          string
	IdempotencyKey string
}

// RecordMovement registra una entrada (INCOMING) o salida (OUTGOING) manual. Los ajustes
// solo se registran con Adjust.
func (uc *LedgerUseCase) RecordMovement(ctx context.Context, in RecordMovementInput) (*entity.StockMovement, error) {
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id es obligatorio", domain.ErrValidation)
	}
	if in.Type != entity.MovementTypeIncoming && in.Type != entity.MovementTypeOutgoing {
		return nil, fmt.Errorf("%w: tipo debe ser INCOMING u OUTGOING", domain.ErrValidation)
	}
	if _, err := domaininv.EffectOf(in.Type, in.Quantity); err != nil {
		return nil, err
	}
	if err := uc.requireProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}

	scope := "stock_movement:" + in.ProductID
	ticket, replay, err := uc.guard.Begin(ctx, scope, in.IdempotencyKey, struct {
		Type      string `json:"type"`
		Quantity  int64  `json:"quantity"`
		Reason    string `json:"reason"`
		Reference string `json:"reference"`
	}{in.Type, in.Quantity, in.Reason, in.Reference})
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("stock_movement")
		return uc.replayMovement(ctx, replay)
	}

	mov := &entity.StockMovement{
		ProductID: in.ProductID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Reference: in.Reference,
		CreatedBy: in.Actor,
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := uc.PostInTx(ctx, repos, []*entity.StockMovement{mov}); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, movementResult{MovementID: mov.ID})
	})
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	return mov, nil
}

// PostInTx agrega movimientos usando los repositorios del caller (misma transacción).
// Bloquea las filas de saldo en orden ascendente de producto para evitar deadlocks entre
// comandos que tocan varios productos. Si algún saldo quedara negativo devuelve
// ErrInsufficientStock y el caller debe hacer rollback.
func (uc *LedgerUseCase) PostInTx(ctx context.Context, repos ports.TxRepos, movements []*entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	now := uc.now()
	byProduct := make(map[string][]*entity.StockMovement)
	for _, m := range movements {
		if m.ProductID == "" {
			return fmt.Errorf("%w: movimiento sin producto", domain.ErrValidation)
		}
		byProduct[m.ProductID] = append(byProduct[m.ProductID], m)
	}
	productIDs := make([]string, 0, len(byProduct))
	for id := range byProduct {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	for _, productID := range productIDs {
		bal, err := repos.Balances.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		next := bal.Quantity
		for _, m := range byProduct[productID] {
			effect, err := domaininv.EffectOf(m.Type, m.Quantity)
			if err != nil {
				return err
			}
			next, err = domaininv.Apply(next, effect)
			if err != nil {
				uc.metrics.IncRejection("insufficient_stock")
				return fmt.Errorf("%w: producto %s", err, productID)
			}
			if m.ID == "" {
				m.ID = uuid.New().String()
			}
			if m.Date.IsZero() {
				m.Date = now
			}
			if err := repos.Movements.Append(ctx, m); err != nil {
				return err
			}
			uc.metrics.IncMovement(m.Type)
		}
		bal.Quantity = next
		bal.UpdatedAt = now
		if err := repos.Balances.Save(ctx, bal); err != nil {
			return err
		}
	}
	return nil
}

type movementResult struct {
	MovementID string `json:"movement_id"`
}

func (uc *LedgerUseCase) replayMovement(ctx context.Context, raw []byte) (*entity.StockMovement, error) {
	var res movementResult
	if err := unmarshalResult(raw, &res); err != nil {
		return nil, err
	}
	mov, err := uc.movements.GetByID(ctx, res.MovementID)
	if err != nil {
		return nil, err
	}
	if mov == nil {
		return nil, domain.ErrNotFound
	}
	return mov, nil
}

func (uc *LedgerUseCase) requireProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product_id es obligatorio", domain.ErrValidation)
	}
	p, err := uc.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrNotFound
	}
	return nil
}

func (uc *LedgerUseCase) release(ctx context.Context, ticket *idempotency.Ticket) {
	if err := ticket.Release(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("no se pudo liberar la clave de idempotencia")
	}
}
