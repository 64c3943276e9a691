package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// Timeline devuelve los eventos del pedido, más recientes primero. StatusInSync indica si el
// estado cacheado en el pedido coincide con el último status_change del event log.
func (uc *WorkflowUseCase) Timeline(ctx context.Context, storefrontID, orderUUID string) (*dto.TimelineResponse, error) {
	order, err := uc.loadOrder(ctx, storefrontID, orderUUID)
	if err != nil {
		return nil, err
	}
	events, err := uc.events.ListByOrder(ctx, order.UUID)
	if err != nil {
		return nil, err
	}
	resp := &dto.TimelineResponse{
		OrderUUID: order.UUID,
		Status:    string(order.Status),
		Events:    make([]dto.OrderEventResponse, 0, len(events)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	latest, err := uc.events.LatestStatusChange(ctx, order.UUID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		if sc, ok := latest.StatusChange(); ok {
			resp.StatusInSync = sc.NewStatus == order.Status
		}
	}
	if !resp.StatusInSync {
		uc.log.Error().Str("order_uuid", order.UUID).Str("status", string(order.Status)).
			Msg("estado del pedido no coincide con el último status_change")
	}
	return resp, nil
}

// RecordEventInput evento secundario registrado por un operador.
type RecordEventInput struct {
	OrderUUID      string
	StorefrontID   string
	Actor          string
	IdempotencyKey string
	Request        dto.RecordEventRequest
}

// RecordEvent agrega un evento secundario (shipping_update, support_ticket, note). No cambia el
// estado: status_change, email_sent y payment_received quedan reservados al motor. Con clave de
// idempotencia, el reintento devuelve el evento ya registrado.
func (uc *WorkflowUseCase) RecordEvent(ctx context.Context, in RecordEventInput) (*dto.OrderEventResponse, error) {
	switch in.Request.EventType {
	case entity.EventTypeShippingUpdate, entity.EventTypeSupportTicket, entity.EventTypeNote:
	default:
		return nil, fmt.Errorf("%w: tipo de evento %q no admitido", domain.ErrValidation, in.Request.EventType)
	}
	if in.Request.Title == "" {
		return nil, fmt.Errorf("%w: title es obligatorio", domain.ErrValidation)
	}
	data := in.Request.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	} else if !json.Valid(data) {
		return nil, fmt.Errorf("%w: data no es JSON válido", domain.ErrValidation)
	}
	order, err := uc.loadOrder(ctx, in.StorefrontID, in.OrderUUID)
	if err != nil {
		return nil, err
	}

	ticket, replay, err := uc.guard.Begin(ctx, "order_event:"+order.UUID, in.IdempotencyKey, in.Request)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		uc.metrics.IncReplay("order_event")
		return uc.replayEvent(ctx, replay)
	}

	ev, err := newEvent(order.UUID, in.Request.EventType, in.Actor, in.Request.Title, in.Request.Description, data, uc.now())
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	err = uc.txRunner.Run(ctx, func(repos ports.TxRepos) error {
		if err := repos.Events.Append(ctx, ev); err != nil {
			return err
		}
		return ticket.CompleteInTx(ctx, repos.Idempotency, map[string]string{"event_id": ev.ID})
	})
	if err != nil {
		uc.release(ctx, ticket)
		return nil, err
	}
	resp := toEventResponse(ev)
	return &resp, nil
}

func (uc *WorkflowUseCase) replayEvent(ctx context.Context, raw json.RawMessage) (*dto.OrderEventResponse, error) {
	var res struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode idempotent result: %w", err)
	}
	ev, err := uc.events.GetByID(ctx, res.EventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, fmt.Errorf("%w: evento %s del resultado idempotente", domain.ErrNotFound, res.EventID)
	}
	resp := toEventResponse(ev)
	return &resp, nil
}
