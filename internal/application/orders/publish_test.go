package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/application/orders"
	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

type recordingPublisher struct {
	events []ports.OrderStatusChanged
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(_ context.Context, ev ports.OrderStatusChanged) error {
	p.events = append(p.events, ev)
	return p.err
}

// withPublisher reemplaza el workflow del fixture por uno que publica en pub.
func (f *fixture) withPublisher(pub ports.EventPublisher) {
	repos := f.store.Repos()
	guard := idempotency.NewGuard(repos.Idempotency, time.Minute)
	f.workflow = orders.NewWorkflowUseCase(f.runner, repos.Orders, repos.Events, repos.Products, f.ledger, f.gateway, guard,
		orders.Config{NotifyTimeout: time.Second, Events: pub}, nil, logger.Nop())
}

func TestTransition_PublicaCambioDeEstado(t *testing.T) {
	f := stocked(t)
	pub := &recordingPublisher{}
	f.withPublisher(pub)
	order := f.createOrder(t, customerEmail)

	resp, err := f.transition(order.UUID, entity.OrderStatusPaid, "pago-1", checkout(24000))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, resp.Event.ID, ev.EventID)
	assert.Equal(t, order.UUID, ev.OrderUUID)
	assert.Equal(t, testStorefront, ev.StorefrontID)
	assert.Equal(t, string(entity.OrderStatusDraft), ev.From)
	assert.Equal(t, string(entity.OrderStatusPaid), ev.To)
	assert.Equal(t, testActor, ev.Actor)

	_, err = f.transition(order.UUID, entity.OrderStatusPaid, "pago-1", checkout(24000))
	require.NoError(t, err)
	assert.Len(t, pub.events, 1, "un replay no vuelve a publicar")
}

func TestTransition_RechazadaNoPublica(t *testing.T) {
	f := stocked(t)
	pub := &recordingPublisher{}
	f.withPublisher(pub)
	order := f.createOrder(t, customerEmail)

	_, err := f.transition(order.UUID, entity.OrderStatusComplete, "", nil)
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestTransition_FalloDelBusNoDeshaceLaTransicion(t *testing.T) {
	f := stocked(t)
	f.withPublisher(&recordingPublisher{err: errors.New("broker caído")})
	order := f.createOrder(t, customerEmail)

	resp, err := f.transition(order.UUID, entity.OrderStatusPaid, "", checkout(24000))
	require.NoError(t, err)
	assert.Equal(t, string(entity.OrderStatusPaid), resp.Status)
	assert.Equal(t, int64(8), f.stock(t, prodCafe))
}
