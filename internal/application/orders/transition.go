package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	domaininv "github.com/jhoicas/retail-ops/internal/domain/inventory"
	"github.com/jhoicas/retail-ops/internal/domain/workflow"
)

// TransitionCommand comando de cambio de estado de un pedido.
type TransitionCommand struct {
	OrderUUID      string
	StorefrontID   string // vacío = sin verificación de tenant (rol admin)
	Target         entity.OrderStatus
	ExpectedStatus entity.OrderStatus // opcional
	Actor          string
	Notes          string
	IdempotencyKey string
	Checkout       *dto.CheckoutPayload
}

// Lease por pedido que serializa el envío del email de confirmación.
const (
	confirmationScope = "order_confirmation:"
	confirmationKey   = "confirmation"
)

// transitionResult lo que se guarda en la clave de idempotencia.
type transitionResult struct {
	OrderUUID string `json:"order_uuid"`
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
}

// Transition valida y ejecuta un cambio de estado. Todos los efectos (movimientos de stock,
// eventos secundarios, status_change y CAS del pedido) se confirman en una sola transacción;
// el email de confirmación se despacha antes, fuera de la transacción y con timeout.
func (uc *WorkflowUseCase) Transition(ctx context.Context, cmd TransitionCommand) (*dto.TransitionResponse, error) {
	if cmd.Target == "" {
		return nil, fmt.Errorf("%w: target_status es obligatorio", domain.ErrValidation)
	}
	if cmd.ExpectedStatus != "" && !workflow.IsKnownOrderStatus(cmd.ExpectedStatus) {
		return nil, fmt.Errorf("%w: expected_status %q desconocido", domain.ErrValidation, cmd.ExpectedStatus)
	}
	order, err := uc.loadOrder(ctx, cmd.StorefrontID, cmd.OrderUUID)
	if err != nil {
		return nil, err
	}

	ticket, replay, err := uc.guard.Begin(ctx, "order_transition:"+order.UUID, cmd.IdempotencyKey, struct {
		Target   entity.OrderStatus   `json:"target"`
		Expected entity.OrderStatus   `json:"expected"`
		Notes    string               `json:"notes"`
		Checkout *dto.CheckoutPayload `json:"checkout"`
	}{cmd.Target, cmd.ExpectedStatus, cmd.Notes, cmd.Checkout})
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("order_transition")
		return uc.replayTransition(ctx, replay)
	}

	from := order.Status
	resp, err := uc.transition(ctx, ticket, order, cmd)
	if err != nil {
		uc.release(ctx, ticket)
		uc.metrics.ObserveTransition(string(from), string(cmd.Target), resultLabel(err))
		if !errors.Is(err, domain.ErrDownstreamUnavailable) && !errors.Is(err, domain.ErrConcurrentModification) {
			uc.log.Debug().Err(err).Str("order_uuid", order.UUID).Str("from", string(from)).
				Str("to", string(cmd.Target)).Msg("transición rechazada")
		}
		return nil, err
	}
	uc.metrics.ObserveTransition(string(from), string(cmd.Target), "ok")
	uc.log.Info().Str("order_uuid", order.UUID).Str("from", string(from)).Str("to", resp.Status).
		Str("actor", cmd.Actor).Str("event_id", resp.Event.ID).Msg("transición de pedido registrada")
	uc.publishStatusChanged(ctx, order, from, cmd.Actor, resp)
	return resp, nil
}

// publishStatusChanged notifica al bus después del commit. Un fallo solo queda en el log.
func (uc *WorkflowUseCase) publishStatusChanged(ctx context.Context, order *entity.Order, from entity.OrderStatus, actor string, resp *dto.TransitionResponse) {
	if uc.cfg.Events == nil {
		return
	}
	err := uc.cfg.Events.PublishStatusChanged(ctx, ports.OrderStatusChanged{
		EventID:      resp.Event.ID,
		OrderUUID:    order.UUID,
		StorefrontID: order.StorefrontID,
		From:         string(from),
		To:           resp.Status,
		Actor:        actor,
		OccurredAt:   resp.Event.CreatedAt,
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("order_uuid", order.UUID).Msg("no se pudo publicar el cambio de estado")
	}
}

func (uc *WorkflowUseCase) transition(ctx context.Context, ticket *idempotency.Ticket, order *entity.Order, cmd TransitionCommand) (_ *dto.TransitionResponse, err error) {
	if cmd.ExpectedStatus != "" && cmd.ExpectedStatus != order.Status {
		return nil, fmt.Errorf("%w: estado esperado %s, actual %s", domain.ErrConcurrentModification, cmd.ExpectedStatus, order.Status)
	}
	from, to := order.Status, cmd.Target
	if err := workflow.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	items, err := uc.orders.GetItems(ctx, order.UUID)
	if err != nil {
		return nil, err
	}
	if workflow.PostsOutgoing(from, to) {
		if err := uc.checkPayable(ctx, order, items, cmd.Checkout); err != nil {
			return nil, err
		}
	}

	var (
		emailEvent *entity.OrderEvent
		claim      *idempotency.Ticket
	)
	if workflow.RequiresConfirmationEmail(from, to) {
		if order.CustomerEmail == "" {
			return nil, fmt.Errorf("%w: el pedido no tiene email de cliente", domain.ErrPreconditionFailed)
		}
		claim, err = uc.claimConfirmation(ctx, order.UUID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				uc.release(ctx, claim)
			}
		}()
		if err := uc.dispatchConfirmation(ctx, ticket, claim, order); err != nil {
			return nil, err
		}
		emailEvent, err = newEvent(order.UUID, entity.EventTypeEmailSent, cmd.Actor, "Email de confirmación enviado", "",
			map[string]string{"template": ports.TemplateOrderConfirmation, "recipient": order.CustomerEmail}, uc.now())
		if err != nil {
			return nil, err
		}
	}

	now := uc.now()
	statusEvent, err := newStatusEvent(order.UUID, from, to, cmd.Actor, cmd.Notes, now)
	if err != nil {
		return nil, err
	}
	var paymentEvent *entity.OrderEvent
	if workflow.PostsOutgoing(from, to) {
		paymentEvent, err = newEvent(order.UUID, entity.EventTypePaymentReceived, cmd.Actor, "Pago recibido", "",
			cmd.Checkout, now)
		if err != nil {
			return nil, err
		}
	}

	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		// el CAS va primero: bloquea la fila del pedido y serializa transiciones concurrentes
		if err := repos.Orders.CompareAndSetStatus(ctx, order.UUID, from, order.Version, to); err != nil {
			return err
		}
		switch {
		case workflow.PostsOutgoing(from, to):
			if err := uc.stock.PostInTx(ctx, repos, outgoingFor(order, items, cmd.Actor)); err != nil {
				return err
			}
		case workflow.ReversesStock(to):
			movs, err := repos.Movements.ListByReference(ctx, order.UUID)
			if err != nil {
				return err
			}
			if err := uc.stock.PostInTx(ctx, repos, reversalFor(order.UUID, to, movs, cmd.Actor)); err != nil {
				return err
			}
		}
		for _, ev := range []*entity.OrderEvent{paymentEvent, emailEvent, statusEvent} {
			if ev == nil {
				continue
			}
			if err := repos.Events.Append(ctx, ev); err != nil {
				return err
			}
		}
		result := transitionResult{
			OrderUUID: order.UUID,
			EventID:   statusEvent.ID,
			Status:    string(to),
		}
		if err := claim.CompleteInTx(ctx, repos.Idempotency, result); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, result)
	})
	if err != nil {
		return nil, err
	}
	return &dto.TransitionResponse{
		Event:  toEventResponse(statusEvent),
		Status: string(to),
	}, nil
}

// checkPayable precondiciones de DRAFT → PAID.
func (uc *WorkflowUseCase) checkPayable(ctx context.Context, order *entity.Order, items []*entity.OrderItem, checkout *dto.CheckoutPayload) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: el pedido no tiene ítems", domain.ErrPreconditionFailed)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: ítem %s con cantidad %d", domain.ErrPreconditionFailed, it.ProductID, it.Quantity)
		}
		p, err := uc.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: producto %s no existe", domain.ErrPreconditionFailed, it.ProductID)
		}
	}
	return validateCheckout(checkout, order.OrderTotal)
}

// claimConfirmation toma el lease de confirmación del pedido, independiente de la clave del
// cliente: dos confirmaciones concurrentes no pueden llegar las dos al gateway.
// El lease se completa en la misma transacción que el status_change.
func (uc *WorkflowUseCase) claimConfirmation(ctx context.Context, orderUUID string) (*idempotency.Ticket, error) {
	claim, done, err := uc.guard.Begin(ctx, confirmationScope+orderUUID, confirmationKey, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("confirmación del pedido %s: %w", orderUUID, err)
	}
	if done != nil {
		return nil, fmt.Errorf("%w: el pedido %s ya fue confirmado", domain.ErrConcurrentModification, orderUUID)
	}
	return claim, nil
}

// dispatchConfirmation envía el email salvo que un intento anterior ya lo haya despachado
// (checkpoint email_dispatched en la clave del cliente o en el lease del pedido).
func (uc *WorkflowUseCase) dispatchConfirmation(ctx context.Context, ticket, claim *idempotency.Ticket, order *entity.Order) error {
	if ticket.RecoveryPoint() == entity.RecoveryPointEmailDispatched ||
		claim.RecoveryPoint() == entity.RecoveryPointEmailDispatched {
		uc.log.Info().Str("order_uuid", order.UUID).Msg("email ya despachado en un intento anterior; se reanuda")
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, uc.cfg.NotifyTimeout)
	defer cancel()

	start := uc.now()
	res, err := uc.notifier.Send(sendCtx, order.UUID, ports.TemplateOrderConfirmation, order.CustomerEmail)
	elapsed := uc.now().Sub(start)
	if err != nil || !res.Success {
		uc.metrics.ObserveNotification(ports.TemplateOrderConfirmation, "failed", elapsed)
		reason := res.Error
		if err != nil {
			reason = err.Error()
		}
		uc.log.Warn().Str("order_uuid", order.UUID).Str("reason", reason).Msg("fallo el envío del email de confirmación")
		return fmt.Errorf("%w: %s", domain.ErrDownstreamUnavailable, reason)
	}
	uc.metrics.ObserveNotification(ports.TemplateOrderConfirmation, "sent", elapsed)

	for _, t := range []*idempotency.Ticket{claim, ticket} {
		if err := t.Checkpoint(ctx, entity.RecoveryPointEmailDispatched); err != nil {
			uc.log.Warn().Err(err).Str("order_uuid", order.UUID).Msg("no se pudo registrar el checkpoint del email")
		}
	}
	return nil
}

func (uc *WorkflowUseCase) replayTransition(ctx context.Context, raw json.RawMessage) (*dto.TransitionResponse, error) {
	var res transitionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode idempotent result: %w", err)
	}
	ev, err := uc.events.GetByID(ctx, res.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, domain.ErrNotFound
	}
	return &dto.TransitionResponse{
		Event:    toEventResponse(ev),
		Status:   res.Status,
		Replayed: true,
	}, nil
}

// outgoingFor una salida por ítem con la referencia del pedido.
func outgoingFor(order *entity.Order, items []*entity.OrderItem, actor string) []*entity.StockMovement {
	movs := make([]*entity.StockMovement, 0, len(items))
	for _, it := range items {
		movs = append(movs, &entity.StockMovement{
			ProductID: it.ProductID,
			Type:      entity.MovementTypeOutgoing,
			Quantity:  it.Quantity,
			Reason:    "pedido pagado",
			Reference: order.UUID,
			CreatedBy: actor,
		})
	}
	return movs
}

// reversalFor entradas compensatorias por el neto de salidas aún publicado bajo la referencia.
// Un pedido ya compensado tiene neto cero y no genera movimientos.
func reversalFor(orderUUID string, to entity.OrderStatus, movs []*entity.StockMovement, actor string) []*entity.StockMovement {
	net := domaininv.NetByReference(movs, orderUUID)
	productIDs := make([]string, 0, len(net))
	for id, n := range net {
		if n < 0 {
			productIDs = append(productIDs, id)
		}
	}
	sort.Strings(productIDs)

	reason := "pedido cancelado"
	if to == entity.OrderStatusReturned {
		reason = "pedido devuelto"
	}
	out := make([]*entity.StockMovement, 0, len(productIDs))
	for _, id := range productIDs {
		out = append(out, &entity.StockMovement{
			ProductID: id,
			Type:      entity.MovementTypeIncoming,
			Quantity:  -net[id],
			Reason:    reason,
			Reference: orderUUID,
			CreatedBy: actor,
		})
	}
	return out
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPreconditionFailed):
		return "precondition"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, domain.ErrDownstreamUnavailable):
		return "downstream"
	}
	return "error"
}
