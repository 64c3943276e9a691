package purchasing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
	"github.com/jhoicas/retail-ops/internal/domain/workflow"
	"github.com/jhoicas/retail-ops/internal/infrastructure/metrics"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// UseCase ciclo de vida de las órdenes de compra a proveedor y recepción de mercancía.
type UseCase struct {
	txRunner      ports.TxRunner
	purchases     repository.PurchaseOrderRepository
	suppliers     repository.SupplierRepository
	products      repository.ProductRepository
	stock         ports.StockPoster
	notifier      ports.NotificationGateway
	guard         *idempotency.Guard
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	log           *logger.Logger
	now           func() time.Time
}

// NewUseCase construye el caso de uso de compras.
func NewUseCase(
	txRunner ports.TxRunner,
	purchases repository.PurchaseOrderRepository,
	suppliers repository.SupplierRepository,
	products repository.ProductRepository,
	stock ports.StockPoster,
	notifier ports.NotificationGateway,
	guard *idempotency.Guard,
	notifyTimeout time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *UseCase {
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &UseCase{
		txRunner:      txRunner,
		purchases:     purchases,
		suppliers:     suppliers,
		products:      products,
		stock:         stock,
		notifier:      notifier,
		guard:         guard,
		notifyTimeout: notifyTimeout,
		metrics:       m,
		log:           log.Component("purchasing"),
		now:           time.Now,
	}
}

// CreateInput orden de compra a registrar. IdempotencyKey vacía desactiva la deduplicación.
type CreateInput struct {
	Actor          string
	IdempotencyKey string
	Request        dto.CreatePurchaseOrderRequest
}

// Create registra una orden de compra en PENDING. Con clave de idempotencia, un reintento de la
// misma petición devuelve la orden ya creada en lugar de duplicarla.
func (uc *UseCase) Create(ctx context.Context, cin CreateInput) (*dto.PurchaseOrderResponse, error) {
	in, actor := cin.Request, cin.Actor
	if in.SupplierID == "" || len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: supplier_id e items son obligatorios", domain.ErrValidation)
	}
	supplier, err := uc.suppliers.GetByID(ctx, in.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, fmt.Errorf("%w: proveedor %s no existe", domain.ErrPreconditionFailed, in.SupplierID)
	}
	ticket, replay, err := uc.guard.Begin(ctx, "po_create:"+in.SupplierID, cin.IdempotencyKey, in)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("po_create")
		var res struct {
			PurchaseOrderID string `json:"purchase_order_id"`
		}
		if err := json.Unmarshal(replay, &res); err != nil {
			return nil, fmt.Errorf("decode idempotent result: %w", err)
		}
		return uc.Get(ctx, res.PurchaseOrderID)
	}
	resp, err := uc.create(ctx, ticket, actor, in)
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	return resp, nil
}

func (uc *UseCase) create(ctx context.Context, ticket *idempotency.Ticket, actor string, in dto.CreatePurchaseOrderRequest) (*dto.PurchaseOrderResponse, error) {
	now := uc.now()
	po := &entity.PurchaseOrder{
		ID:         uuid.New().String(),
		SupplierID: in.SupplierID,
		Status:     entity.PurchaseStatusPending,
		Notes:      in.Notes,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  actor,
	}
	seen := make(map[string]bool, len(in.Items))
	items := make([]*entity.PurchaseOrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" || it.QuantityOrdered <= 0 || it.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: línea de compra inválida", domain.ErrValidation)
		}
		if seen[it.ProductID] {
			return nil, fmt.Errorf("%w: producto %s repetido", domain.ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = true
		p, err := uc.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: producto %s no existe", domain.ErrPreconditionFailed, it.ProductID)
		}
		items = append(items, &entity.PurchaseOrderItem{
			PurchaseOrderID: po.ID,
			ProductID:       it.ProductID,
			QuantityOrdered: it.QuantityOrdered,
			UnitCost:        it.UnitCost,
		})
	}
	err := uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.PurchaseOrders.Create(ctx, po, items); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, map[string]string{"purchase_order_id": po.ID})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("purchase_order_id", po.ID).Str("supplier_id", po.SupplierID).Int("items", len(items)).
		Msg("orden de compra creada")
	return toResponse(po, items), nil
}

// Get devuelve la orden con sus líneas.
func (uc *UseCase) Get(ctx context.Context, id string) (*dto.PurchaseOrderResponse, error) {
	po, err := uc.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, domain.ErrNotFound
	}
	items, err := uc.purchases.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(po, items), nil
}

// Approve pasa la orden a APPROVED y despacha la plantilla purchase_order al proveedor.
// La falta de email o un fallo del gateway se reportan como advertencia y no revierten la aprobación.
func (uc *UseCase) Approve(ctx context.Context, id, actor string) (*dto.PurchaseOrderResponse, error) {
	if err := uc.setStatus(ctx, id, entity.PurchaseStatusApproved); err != nil {
		return nil, err
	}
	resp, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w := uc.notifySupplier(ctx, resp.ID, resp.SupplierID); w != "" {
		resp.Warnings = append(resp.Warnings, w)
	}
	uc.log.Info().Str("purchase_order_id", id).Str("actor", actor).Msg("orden de compra aprobada")
	return resp, nil
}

// Cancel pasa la orden a CANCELLED desde PENDING o APPROVED. Lo ya recibido permanece en el ledger.
func (uc *UseCase) Cancel(ctx context.Context, id, actor string) (*dto.PurchaseOrderResponse, error) {
	if err := uc.setStatus(ctx, id, entity.PurchaseStatusCancelled); err != nil {
		return nil, err
	}
	uc.log.Info().Str("purchase_order_id", id).Str("actor", actor).Msg("orden de compra cancelada")
	return uc.Get(ctx, id)
}

func (uc *UseCase) setStatus(ctx context.Context, id, next string) error {
	return uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		po, err := repos.PurchaseOrders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrNotFound
		}
		if err := workflow.ValidatePurchaseTransition(po.Status, next); err != nil {
			return err
		}
		return repos.PurchaseOrders.UpdateStatus(ctx, id, po.Status, next)
	})
}

func (uc *UseCase) notifySupplier(ctx context.Context, poID, supplierID string) string {
	supplier, err := uc.suppliers.GetByID(ctx, supplierID)
	if err != nil {
		uc.log.Warn().Err(err).Str("purchase_order_id", poID).Msg("no se pudo leer el proveedor")
		return "no se pudo notificar al proveedor"
	}
	if supplier == nil || supplier.Email == "" {
		return "el proveedor no tiene email; no se envió la orden de compra"
	}
	sendCtx, cancel := context.WithTimeout(ctx, uc.notifyTimeout)
	defer cancel()
	start := uc.now()
	res, err := uc.notifier.Send(sendCtx, poID, ports.TemplatePurchaseOrder, supplier.Email)
	elapsed := uc.now().Sub(start)
	if err != nil || !res.Success {
		uc.metrics.ObserveNotification(ports.TemplatePurchaseOrder, "failed", elapsed)
		reason := res.Error
		if err != nil {
			reason = err.Error()
		}
		uc.log.Warn().Str("purchase_order_id", poID).Str("reason", reason).Msg("fallo el envío de la orden de compra")
		return "no se pudo enviar la orden de compra al proveedor: " + reason
	}
	uc.metrics.ObserveNotification(ports.TemplatePurchaseOrder, "sent", elapsed)
	return ""
}

// ReceiveLineInput recepción acumulada de una línea.
type ReceiveLineInput struct {
	PurchaseOrderID  string
	ProductID        string
	QuantityReceived int64
	Actor            string
	IdempotencyKey   string
}

// ReceiveLine registra la cantidad acumulada recibida de una línea. Publica en el ledger solo el
// incremento sobre lo ya registrado, así que reenviar el mismo acumulado no duplica stock.
// Cuando todas las líneas están completas la orden pasa a RECEIVED en la misma transacción.
func (uc *UseCase) ReceiveLine(ctx context.Context, in ReceiveLineInput) (*dto.ReceiveLineResponse, error) {
	if in.PurchaseOrderID == "" || in.ProductID == "" {
		return nil, fmt.Errorf("%w: purchase_order_id y product_id son obligatorios", domain.ErrValidation)
	}
	if in.QuantityReceived < 0 {
		return nil, fmt.Errorf("%w: cantidad recibida negativa", domain.ErrValidation)
	}

	ticket, replay, err := uc.guard.Begin(ctx, "po_receive:"+in.PurchaseOrderID, in.IdempotencyKey, struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
	}{in.ProductID, in.QuantityReceived})
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("po_receive")
		var resp dto.ReceiveLineResponse
		if err := json.Unmarshal(replay, &resp); err != nil {
			return nil, fmt.Errorf("decode idempotent result: %w", err)
		}
		return &resp, nil
	}

	var resp *dto.ReceiveLineResponse
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		po, err := repos.PurchaseOrders.GetForUpdate(ctx, in.PurchaseOrderID)
		if err != nil {
			return err
		}
		if po == nil {
			return domain.ErrNotFound
		}
		if po.Status == entity.PurchaseStatusCancelled {
			return fmt.Errorf("%w: la orden de compra está cancelada", domain.ErrPreconditionFailed)
		}
		items, err := repos.PurchaseOrders.GetItems(ctx, po.ID)
		if err != nil {
			return err
		}
		var line *entity.PurchaseOrderItem
		for _, it := range items {
			if it.ProductID == in.ProductID {
				line = it
				break
			}
		}
		if line == nil {
			return fmt.Errorf("%w: el producto %s no está en la orden", domain.ErrValidation, in.ProductID)
		}

		resp = &dto.ReceiveLineResponse{
			PurchaseOrderID:  po.ID,
			ProductID:        line.ProductID,
			QuantityReceived: line.QuantityReceived,
			Status:           po.Status,
		}
		delta := workflow.ReceiveDelta(line.QuantityReceived, in.QuantityReceived)
		if delta == 0 {
			return ticket.CompleteInTx(ctx, repos.Idempotency, resp)
		}
		if po.Status != entity.PurchaseStatusApproved {
			return fmt.Errorf("%w: solo se recibe mercancía en órdenes APPROVED (actual %s)", domain.ErrPreconditionFailed, po.Status)
		}

		mov := &entity.StockMovement{
			ProductID: line.ProductID,
			Type:      entity.MovementTypeIncoming,
			Quantity:  delta,
			Reason:    "recepción orden de compra",
			Reference: po.ID,
			CreatedBy: in.Actor,
		}
		if err := uc.stock.PostInTx(ctx, repos, []*entity.StockMovement{mov}); err != nil {
			return err
		}
		line.QuantityReceived = in.QuantityReceived
		if err := repos.PurchaseOrders.UpdateItemReceived(ctx, po.ID, line.ProductID, line.QuantityReceived); err != nil {
			return err
		}
		if workflow.AllLinesReceived(items) {
			if err := repos.PurchaseOrders.UpdateStatus(ctx, po.ID, po.Status, entity.PurchaseStatusReceived); err != nil {
				return err
			}
			resp.Status = entity.PurchaseStatusReceived
		}
		resp.QuantityReceived = line.QuantityReceived
		resp.Posted = delta
		resp.MovementID = mov.ID
		return ticket.CompleteInTx(ctx, repos.Idempotency, resp)
	})
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	if resp.Posted > 0 {
		uc.log.Info().Str("purchase_order_id", resp.PurchaseOrderID).Str("product_id", resp.ProductID).
			Int64("posted", resp.Posted).Str("status", resp.Status).Msg("mercancía recibida")
	}
	return resp, nil
}

func toResponse(po *entity.PurchaseOrder, items []*entity.PurchaseOrderItem) *dto.PurchaseOrderResponse {
	resp := &dto.PurchaseOrderResponse{
		ID:         po.ID,
		SupplierID: po.SupplierID,
		Status:     po.Status,
		Notes:      po.Notes,
		Items:      make([]dto.PurchaseOrderItemResponse, 0, len(items)),
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.PurchaseOrderItemResponse{
			ProductID:        it.ProductID,
			QuantityOrdered:  it.QuantityOrdered,
			QuantityReceived: it.QuantityReceived,
			UnitCost:         it.UnitCost,
		})
	}
	return resp
}

func (uc *UseCase) release(ctx context.Context, ticket *idempotency.Ticket) {
	if err := ticket.Release(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("no se pudo liberar la clave de idempotencia")
	}
}
