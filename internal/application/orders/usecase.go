package orders

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
	"github.com/shopspring/decimal"
)

// Config parámetros del motor de pedidos.
type Config struct {
	NotifyTimeout time.Duration        // tope para la llamada al gateway de notificaciones
	Events        ports.EventPublisher // opcional; nil = no se publica nada tras la transición
}

// WorkflowUseCase motor de estados del pedido: valida cada transición, publica los efectos
// (movimientos de stock, email de confirmación) y agrega los eventos al event log.
type WorkflowUseCase struct {
	txRunner ports.TxRunner
	orders   repository.OrderRepository
	events   repository.OrderEventRepository
	products repository.ProductRepository
	stock    ports.StockPoster
	notifier ports.NotificationGateway
	guard    *idempotency.Guard
	cfg      Config
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewWorkflowUseCase construye el caso de uso.
func NewWorkflowUseCase(
	txRunner ports.TxRunner,
	orders repository.OrderRepository,
	events repository.OrderEventRepository,
	products repository.ProductRepository,
	stock ports.StockPoster,
	notifier ports.NotificationGateway,
	guard *idempotency.Guard,
	cfg Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *WorkflowUseCase {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &WorkflowUseCase{
		txRunner: txRunner,
		orders:   orders,
		events:   events,
		products: products,
		stock:    stock,
		notifier: notifier,
		guard:    guard,
		cfg:      cfg,
		metrics:  m,
		log:      log.Component("order_workflow"),
		now:      time.Now,
	}
}

// CreateOrderInput entrada para crear un pedido en DRAFT.
type CreateOrderInput struct {
	StorefrontID   string
	Actor          string
	IdempotencyKey string
	Request        dto.CreateOrderRequest
}

// CreateOrder crea el pedido en DRAFT con sus líneas y el evento status_change inicial en una
// sola transacción. El total se deriva de las líneas.
func (uc *WorkflowUseCase) CreateOrder(ctx context.Context, in CreateOrderInput) (*dto.OrderResponse, error) {
	req := in.Request
	if in.StorefrontID == "" || req.CustomerName == "" {
		return nil, fmt.Errorf("%w: storefront y customer_name son obligatorios", domain.ErrValidation)
	}
	if req.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: descuento negativo", domain.ErrValidation)
	}

	ticket, replay, err := uc.guard.Begin(ctx, "order_create:"+in.StorefrontID, in.IdempotencyKey, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("order_create")
		var res struct {
			OrderUUID string `json:"order_uuid"`
		}
		if err := json.Unmarshal(replay, &res); err != nil {
			return nil, fmt.Errorf("decode idempotent result: %w", err)
		}
		return uc.GetOrder(ctx, in.StorefrontID, res.OrderUUID)
	}

	now := uc.now()
	order := &entity.Order{
		UUID:          uuid.New().String(),
		Status:        entity.OrderStatusDraft,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Discount:      req.Discount,
		StorefrontID:  in.StorefrontID,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := make([]*entity.OrderItem, 0, len(req.Items))
	values := make([]entity.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() || it.Discount.IsNegative() {
			uc.release(ctx, ticket)
			return nil, fmt.Errorf("%w: línea de pedido inválida", domain.ErrValidation)
		}
		unitPrice := it.UnitPrice
		if unitPrice.IsZero() {
			p, err := uc.products.GetByID(ctx, it.ProductID)
			if err != nil {
				uc.release(ctx, ticket)
				return nil, fmt.Errorf("precio de %s: %w", it.ProductID, err)
			}
			if p == nil {
				uc.release(ctx, ticket)
				return nil, fmt.Errorf("%w: producto %s no existe", domain.ErrPreconditionFailed, it.ProductID)
			}
			unitPrice = p.Price
		}
		item := &entity.OrderItem{
			OrderUUID: order.UUID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: unitPrice,
			Discount:  it.Discount,
		}
		items = append(items, item)
		values = append(values, *item)
	}
	order.OrderTotal = entity.ComputeOrderTotal(values, order.Discount)

	created, err := newStatusEvent(order.UUID, "", entity.OrderStatusDraft, in.Actor, "pedido creado", now)
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Orders.Create(ctx, order, items); err != nil {
			return err
		}
		if err := repos.Events.Append(ctx, created); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, map[string]string{"order_uuid": order.UUID})
	})
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	uc.log.Info().Str("order_uuid", order.UUID).Str("storefront_id", order.StorefrontID).
		Str("total", order.OrderTotal.String()).Msg("pedido creado")
	return toOrderResponse(order, items), nil
}

// GetOrder devuelve el pedido con sus líneas. storefrontID vacío omite la verificación de tenant.
func (uc *WorkflowUseCase) GetOrder(ctx context.Context, storefrontID, orderUUID string) (*dto.OrderResponse, error) {
	order, err := uc.loadOrder(ctx, storefrontID, orderUUID)
	if err != nil {
		return nil, err
	}
	items, err := uc.orders.GetItems(ctx, orderUUID)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order, items), nil
}

func (uc *WorkflowUseCase) loadOrder(ctx context.Context, storefrontID, orderUUID string) (*entity.Order, error) {
	if orderUUID == "" {
		return nil, fmt.Errorf("%w: uuid del pedido es obligatorio", domain.ErrValidation)
	}
	order, err := uc.orders.GetByUUID(ctx, orderUUID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if storefrontID != "" && order.StorefrontID != storefrontID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (uc *WorkflowUseCase) release(ctx context.Context, ticket *idempotency.Ticket) {
	if err := ticket.Release(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("no se pudo liberar la clave de idempotencia")
	}
}

func newEvent(orderUUID, eventType, actor, title, description string, data any, at time.Time) (*entity.OrderEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return &entity.OrderEvent{
		ID:          uuid.New().String(),
		OrderUUID:   orderUUID,
		EventType:   eventType,
		EventData:   raw,
		CreatedAt:   at,
		CreatedBy:   actor,
		Title:       title,
		Description: description,
	}, nil
}

func newStatusEvent(orderUUID string, from, to entity.OrderStatus, actor, notes string, at time.Time) (*entity.OrderEvent, error) {
	title := fmt.Sprintf("Estado cambiado a %s", to)
	return newEvent(orderUUID, entity.EventTypeStatusChange, actor, title, notes,
		entity.StatusChangeData{OldStatus: from, NewStatus: to, Notes: notes}, at)
}

func toOrderResponse(o *entity.Order, items []*entity.OrderItem) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		UUID:          o.UUID,
		Status:        string(o.Status),
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Discount:      o.Discount,
		OrderTotal:    o.OrderTotal,
		StorefrontID:  o.StorefrontID,
		Version:       o.Version,
		NextStatuses:  []string{},
		Items:         make([]dto.OrderItemResponse, 0, len(items)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, s := range workflow.NextStatuses(o.Status) {
		resp.NextStatuses = append(resp.NextStatuses, string(s))
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.OrderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
	}
	return resp
}

func toEventResponse(e *entity.OrderEvent) dto.OrderEventResponse {
	return dto.OrderEventResponse{
		ID:          e.ID,
		OrderUUID:   e.OrderUUID,
		EventType:   e.EventType,
		EventData:   e.EventData,
		CreatedAt:   e.CreatedAt,
		CreatedBy:   e.CreatedBy,
		Title:       e.Title,
		Description: e.Description,
	}
}

// validateCheckout el pago es simulado: basta con un método y que el monto cubra exactamente el total.
func validateCheckout(c *dto.CheckoutPayload, total decimal.Decimal) error {
	if c == nil {
		return fmt.Errorf("%w: checkout es obligatorio para pagar el pedido", domain.ErrValidation)
	}
	if c.PaymentMethod == "" {
		return fmt.Errorf("%w: payment_method es obligatorio", domain.ErrValidation)
	}
	if !c.Amount.Equal(total) {
		return fmt.Errorf("%w: el monto %s no coincide con el total %s", domain.ErrValidation, c.Amount, total)
	}
	return nil
}
