package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/application/orders"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/workflow"
)

// gatewayFunc adaptador para gateways ad hoc.
type gatewayFunc func(ctx context.Context, orderUUID, templateType, recipient string) (ports.SendResult, error)

func (f gatewayFunc) Send(ctx context.Context, orderUUID, templateType, recipient string) (ports.SendResult, error) {
	return f(ctx, orderUUID, templateType, recipient)
}

func stocked(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, time.Second, nil)
	f.stockIn(t, prodCafe, 10)
	f.stockIn(t, prodAzucar, 10)
	return f
}

// ──────────────────────────────────────────────────────────────────────────────
// DRAFT → PAID
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_PagoPublicaSalidas(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	resp, err := f.transition(order.UUID, entity.OrderStatusPaid, "", checkout(24000))
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusPaid), resp.Status)
	assert.Equal(t, entity.EventTypeStatusChange, resp.Event.EventType)
	assert.False(t, resp.Replayed)

	assert.Equal(t, int64(8), f.stock(t, prodCafe))
	assert.Equal(t, int64(9), f.stock(t, prodAzucar))

	movs, err := f.store.Repos().Movements.ListByReference(context.Background(), order.UUID)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	for _, m := range movs {
		assert.Equal(t, entity.MovementTypeOutgoing, m.Type)
		assert.Equal(t, testActor, m.CreatedBy)
	}
}

func TestTransition_PagoConMontoDistintoSeRechaza(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	_, err := f.transition(order.UUID, entity.OrderStatusPaid, "", checkout(20000))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.transition(order.UUID, entity.OrderStatusPaid, "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation, "checkout es obligatorio")

	got, err := f.workflow.GetOrder(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusDraft), got.Status)
	assert.Equal(t, int64(10), f.stock(t, prodCafe))
}

func TestTransition_PagoSinStockNoCambiaNada(t *testing.T) {
	f := newFixture(t, time.Second, nil)
	f.stockIn(t, prodCafe, 1)
	f.stockIn(t, prodAzucar, 5)
	order := f.createOrder(t, customerEmail)

	_, err := f.transition(order.UUID, entity.OrderStatusPaid, "", checkout(24000))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(1), f.stock(t, prodCafe))
	assert.Equal(t, int64(5), f.stock(t, prodAzucar), "la salida de azúcar también se revierte")
	tl, err := f.workflow.Timeline(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Len(t, tl.Events, 1)
	assert.Equal(t, string(entity.OrderStatusDraft), tl.Status)
}

func TestTransition_PagosConcurrentesPublicanUnaVez(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	const workers = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transition(order.UUID, entity.OrderStatusPaid, "", checkout(24000))
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.True(t, errorsIsAny(err, domain.ErrConcurrentModification, domain.ErrInvalidTransition), err.Error())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(8), f.stock(t, prodCafe))
}

// ──────────────────────────────────────────────────────────────────────────────
// PAID → CONFIRMED
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_ConfirmarEnviaEmail(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.expectEmail(order.UUID).Once()

	resp, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "", nil)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusConfirmed), resp.Status)
	f.gateway.AssertExpectations(t)

	tl, err := f.workflow.Timeline(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		entity.EventTypeStatusChange,
		entity.EventTypeEmailSent,
		entity.EventTypeStatusChange,
		entity.EventTypePaymentReceived,
		entity.EventTypeStatusChange,
	}, eventTypes(tl))
}

func TestTransition_FalloDelGatewayDejaElPedidoPagado(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.gateway.On("Send", mock.Anything, order.UUID, ports.TemplateOrderConfirmation, customerEmail).
		Return(ports.SendResult{Success: false, Error: "smtp caído"}, nil).Once()

	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	assert.ErrorIs(t, err, domain.ErrDownstreamUnavailable)
	assert.True(t, domain.IsRetryable(err))

	got, err := f.workflow.GetOrder(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusPaid), got.Status)

	// el reintento con la misma clave vuelve a intentar el envío
	f.expectEmail(order.UUID).Once()
	resp, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusConfirmed), resp.Status)
	f.gateway.AssertExpectations(t)
}

func TestTransition_TimeoutDelGateway(t *testing.T) {
	slow := gatewayFunc(func(ctx context.Context, _, _, _ string) (ports.SendResult, error) {
		<-ctx.Done()
		return ports.SendResult{}, ctx.Err()
	})
	f := newFixture(t, 20*time.Millisecond, slow)
	f.stockIn(t, prodCafe, 10)
	f.stockIn(t, prodAzucar, 10)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)

	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "", nil)
	assert.ErrorIs(t, err, domain.ErrDownstreamUnavailable)
}

func TestTransition_ConfirmarSinEmailEsPrecondicion(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, "")
	f.pay(t, order.UUID)

	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "", nil)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	f.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_ReplayNoDuplicaEfectos(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	first, err := f.transition(order.UUID, entity.OrderStatusPaid, "pay-1", checkout(24000))
	require.NoError(t, err)
	second, err := f.transition(order.UUID, entity.OrderStatusPaid, "pay-1", checkout(24000))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Equal(t, int64(8), f.stock(t, prodCafe), "la salida se publica una sola vez")

	f.expectEmail(order.UUID).Once()
	_, err = f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	require.NoError(t, err)
	replay, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	f.gateway.AssertNumberOfCalls(t, "Send", 1)
}

func TestTransition_ReanudaTrasEmailDespachado(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.expectEmail(order.UUID).Once()

	// el email sale pero la transacción falla: la clave queda con checkpoint email_dispatched
	f.runner.failures = 1
	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	require.Error(t, err)

	resp, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "conf-1", nil)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusConfirmed), resp.Status)
	f.gateway.AssertNumberOfCalls(t, "Send", 1)

	tl, err := f.workflow.Timeline(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	emails := 0
	for _, e := range tl.Events {
		if e.EventType == entity.EventTypeEmailSent {
			emails++
		}
	}
	assert.Equal(t, 1, emails)
}

func TestTransition_ConfirmacionesConcurrentesConClavesDistintasEnvianUnEmail(t *testing.T) {
	var sends atomic.Int32
	entered := make(chan struct{})
	proceed := make(chan struct{})
	gw := gatewayFunc(func(ctx context.Context, _, _, _ string) (ports.SendResult, error) {
		if sends.Add(1) == 1 {
			close(entered)
		}
		select {
		case <-proceed:
		case <-ctx.Done():
			return ports.SendResult{}, ctx.Err()
		}
		return ports.SendResult{Success: true}, nil
	})
	f := newFixture(t, 5*time.Second, gw)
	f.stockIn(t, prodCafe, 10)
	f.stockIn(t, prodAzucar, 10)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-a", nil)
		firstErr <- err
	}()
	<-entered

	// la otra pestaña llega mientras el primer email está en vuelo
	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-b", nil)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	close(proceed)
	require.NoError(t, <-firstErr)
	assert.Equal(t, int32(1), sends.Load())

	got, err := f.workflow.GetOrder(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusConfirmed), got.Status)
}

func TestTransition_FalloDelGatewayLiberaLaConfirmacion(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.gateway.On("Send", mock.Anything, order.UUID, ports.TemplateOrderConfirmation, customerEmail).
		Return(ports.SendResult{Success: false, Error: "smtp caído"}, nil).Once()

	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-a", nil)
	require.ErrorIs(t, err, domain.ErrDownstreamUnavailable)

	// otra clave puede confirmar: el fallo no deja el pedido bloqueado
	f.expectEmail(order.UUID).Once()
	resp, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-b", nil)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusConfirmed), resp.Status)
	f.gateway.AssertNumberOfCalls(t, "Send", 2)
}

func TestTransition_ConfirmacionTrasTxFallidaNoReenviaConOtraClave(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.expectEmail(order.UUID).Once()

	f.runner.failures = 1
	_, err := f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-a", nil)
	require.Error(t, err)

	_, err = f.transition(order.UUID, entity.OrderStatusConfirmed, "tab-b", nil)
	require.NoError(t, err)
	f.gateway.AssertNumberOfCalls(t, "Send", 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Rechazos
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_EstadoEsperadoDistinto(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	_, err := f.workflow.Transition(context.Background(), orders.TransitionCommand{
		OrderUUID:      order.UUID,
		StorefrontID:   testStorefront,
		Target:         entity.OrderStatusCancelled,
		ExpectedStatus: entity.OrderStatusPaid,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestTransition_Rechazos(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	ctx := context.Background()

	_, err := f.transition(order.UUID, entity.OrderStatusPacked, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.transition(order.UUID, "SHIPPED", "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.transition(order.UUID, "", "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.workflow.Transition(ctx, orders.TransitionCommand{
		OrderUUID: order.UUID, StorefrontID: "otra-tienda", Target: entity.OrderStatusCancelled,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.transition("no-existe", entity.OrderStatusCancelled, "", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// CANCELLED / RETURNED
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_CancelarDevuelveElStock(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	require.Equal(t, int64(8), f.stock(t, prodCafe))

	_, err := f.transition(order.UUID, entity.OrderStatusCancelled, "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.stock(t, prodCafe))
	assert.Equal(t, int64(10), f.stock(t, prodAzucar))

	_, err = f.transition(order.UUID, entity.OrderStatusCancelled, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "CANCELLED es terminal")
	assert.Equal(t, int64(10), f.stock(t, prodCafe), "la reversa se publica una vez")
}

func TestTransition_CancelarDraftNoMueveStock(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)

	_, err := f.transition(order.UUID, entity.OrderStatusCancelled, "", nil)
	require.NoError(t, err)
	movs, err := f.store.Repos().Movements.ListByReference(context.Background(), order.UUID)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestTransition_CicloCompletoYDevolucion(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.expectEmail(order.UUID).Once()

	for _, target := range []entity.OrderStatus{
		entity.OrderStatusConfirmed,
		entity.OrderStatusPacked,
		entity.OrderStatusDelivery,
		entity.OrderStatusComplete,
		entity.OrderStatusReturned,
	} {
		_, err := f.transition(order.UUID, target, "", nil)
		require.NoError(t, err, "→ %s", target)
	}
	assert.Equal(t, int64(10), f.stock(t, prodCafe))

	tl, err := f.workflow.Timeline(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusReturned), tl.Status)
	assert.True(t, tl.StatusInSync)

	got, err := f.workflow.GetOrder(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.NextStatuses)
}

func TestTransition_TimelineAvanzaEnLaCadenaYLaDevolucionCompensa(t *testing.T) {
	f := stocked(t)
	order := f.createOrder(t, customerEmail)
	f.pay(t, order.UUID)
	f.expectEmail(order.UUID).Once()
	for _, target := range []entity.OrderStatus{
		entity.OrderStatusConfirmed,
		entity.OrderStatusPacked,
		entity.OrderStatusDelivery,
		entity.OrderStatusReturned,
	} {
		_, err := f.transition(order.UUID, target, "", nil)
		require.NoError(t, err, "→ %s", target)
	}

	tl, err := f.workflow.Timeline(context.Background(), testStorefront, order.UUID)
	require.NoError(t, err)

	// el timeline viene del más reciente al más antiguo
	var seen []entity.OrderStatus
	lastRank := -1
	for i := len(tl.Events) - 1; i >= 0; i-- {
		e := tl.Events[i]
		if e.EventType != entity.EventTypeStatusChange {
			continue
		}
		var d entity.StatusChangeData
		require.NoError(t, json.Unmarshal(e.EventData, &d))
		seen = append(seen, d.NewStatus)
		rank, ok := workflow.ChainRank(d.NewStatus)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, rank, lastRank, "%s retrocede en la cadena", d.NewStatus)
		lastRank = rank
	}
	assert.Equal(t, []entity.OrderStatus{
		entity.OrderStatusDraft,
		entity.OrderStatusPaid,
		entity.OrderStatusConfirmed,
		entity.OrderStatusPacked,
		entity.OrderStatusDelivery,
		entity.OrderStatusReturned,
	}, seen)

	movs, err := f.store.Repos().Movements.ListByReference(context.Background(), order.UUID)
	require.NoError(t, err)
	outgoing := map[string]int64{}
	incoming := map[string]int64{}
	for _, m := range movs {
		switch m.Type {
		case entity.MovementTypeOutgoing:
			outgoing[m.ProductID] += m.Quantity
		case entity.MovementTypeIncoming:
			incoming[m.ProductID] += m.Quantity
		}
	}
	assert.Equal(t, map[string]int64{prodCafe: 2, prodAzucar: 1}, outgoing)
	assert.Equal(t, outgoing, incoming, "la devolución repone exactamente lo que salió")
	assert.Equal(t, int64(10), f.stock(t, prodCafe))
	assert.Equal(t, int64(10), f.stock(t, prodAzucar))
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
