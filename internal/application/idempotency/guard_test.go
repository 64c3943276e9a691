package idempotency_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/application/idempotency"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/infrastructure/memory"
)

type payload struct {
	Qty int `json:"qty"`
}

func newGuard(lease time.Duration) (*idempotency.Guard, *memory.Store) {
	store := memory.NewStore()
	return idempotency.NewGuard(store.Repos().Idempotency, lease), store
}

func TestBegin_SinClaveNoHayIdempotencia(t *testing.T) {
	g, _ := newGuard(time.Minute)
	ticket, replay, err := g.Begin(context.Background(), "scope", "", payload{1})
	require.NoError(t, err)
	assert.Nil(t, ticket)
	assert.Nil(t, replay)

	// los métodos de un ticket nil son no-op
	assert.NoError(t, ticket.Checkpoint(context.Background(), "x"))
	assert.NoError(t, ticket.Release(context.Background()))
	assert.Equal(t, "", ticket.RecoveryPoint())
}

func TestBegin_ClaveDemasiadoLarga(t *testing.T) {
	g, _ := newGuard(time.Minute)
	_, _, err := g.Begin(context.Background(), "scope", strings.Repeat("k", idempotency.MaxKeyLength+1), payload{1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBegin_ReplayDelResultadoCompletado(t *testing.T) {
	ctx := context.Background()
	g, store := newGuard(time.Minute)

	ticket, replay, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Nil(t, replay)
	require.NoError(t, ticket.CompleteInTx(ctx, store.Repos().Idempotency, map[string]string{"id": "abc"}))

	ticket, replay, err = g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	assert.Nil(t, ticket, "un replay no adquiere la clave")
	var got map[string]string
	require.NoError(t, json.Unmarshal(replay, &got))
	assert.Equal(t, "abc", got["id"])
}

func TestBegin_MismaClaveOtraPeticion(t *testing.T) {
	ctx := context.Background()
	g, store := newGuard(time.Minute)

	ticket, _, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	require.NoError(t, ticket.CompleteInTx(ctx, store.Repos().Idempotency, "ok"))

	_, _, err = g.Begin(ctx, "scope", "k1", payload{2})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBegin_ScopesIndependientes(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Minute)

	_, _, err := g.Begin(ctx, "a", "k1", payload{1})
	require.NoError(t, err)
	ticket, _, err := g.Begin(ctx, "b", "k1", payload{2})
	require.NoError(t, err)
	assert.NotNil(t, ticket)
}

func TestBegin_ComandoEnCurso(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Minute)

	_, _, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)

	_, _, err = g.Begin(ctx, "scope", "k1", payload{1})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.True(t, domain.IsRetryable(err))
}

func TestRelease_ConservaPuntoDeRecuperacion(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(time.Minute)

	ticket, _, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	require.NoError(t, ticket.Checkpoint(ctx, entity.RecoveryPointEmailDispatched))
	assert.Equal(t, entity.RecoveryPointEmailDispatched, ticket.RecoveryPoint())
	require.NoError(t, ticket.Release(ctx))

	retry, replay, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	assert.Nil(t, replay)
	require.NotNil(t, retry)
	assert.Equal(t, entity.RecoveryPointEmailDispatched, retry.RecoveryPoint())
}

func TestBegin_LeaseExpiradoSeRetoma(t *testing.T) {
	ctx := context.Background()
	g, _ := newGuard(5 * time.Millisecond)

	_, _, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	ticket, _, err := g.Begin(ctx, "scope", "k1", payload{1})
	require.NoError(t, err)
	assert.NotNil(t, ticket, "un lease vencido sin completar puede retomarse")
}

func TestFingerprint_Estable(t *testing.T) {
	a, err := idempotency.Fingerprint(payload{3})
	require.NoError(t, err)
	b, err := idempotency.Fingerprint(payload{3})
	require.NoError(t, err)
	c, err := idempotency.Fingerprint(payload{4})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
