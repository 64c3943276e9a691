package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/infrastructure/notification"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// HTTPGateway
// ──────────────────────────────────────────────────────────────────────────────

func TestHTTPGateway_EnviaPlantilla(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send", r.URL.Path)
		assert.Equal(t, "clave-123", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	gw := notification.NewHTTPGateway(srv.URL+"/", "clave-123", time.Second)
	res, err := gw.Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "o-1", got["order_uuid"])
	assert.Equal(t, ports.TemplateOrderConfirmation, got["template_type"])
	assert.Equal(t, "a@b.co", got["recipient"])
}

func TestHTTPGateway_StatusNo2xxEsFalloDeNegocio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res, err := notification.NewHTTPGateway(srv.URL, "", time.Second).
		Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "502")
}

func TestHTTPGateway_RespuestaSinExito(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"buzón lleno"}`))
	}))
	defer srv.Close()

	res, err := notification.NewHTTPGateway(srv.URL, "", time.Second).
		Send(context.Background(), "o-1", ports.TemplatePurchaseOrder, "p@q.co")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "buzón lleno", res.Error)
}

func TestHTTPGateway_TimeoutDelContexto(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := notification.NewHTTPGateway(srv.URL, "", 5*time.Second).
		Send(ctx, "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ──────────────────────────────────────────────────────────────────────────────
// BreakerGateway
// ──────────────────────────────────────────────────────────────────────────────

type countingGateway struct {
	calls  int
	result ports.SendResult
	err    error
}

func (g *countingGateway) Send(context.Context, string, string, string) (ports.SendResult, error) {
	g.calls++
	return g.result, g.err
}

func TestBreaker_AbreTrasFallosConsecutivos(t *testing.T) {
	next := &countingGateway{err: errors.New("connection refused")}
	gw := notification.NewBreakerGateway(next, notification.BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
	}, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := gw.Send(ctx, "o-1", ports.TemplateOrderConfirmation, "a@b.co")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, gw.State())

	_, err := gw.Send(ctx, "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls, "con el circuito abierto no se llama al gateway")
}

func TestBreaker_ResultadoSinExitoCuentaComoFallo(t *testing.T) {
	next := &countingGateway{result: ports.SendResult{Error: "rechazado"}}
	gw := notification.NewBreakerGateway(next, notification.BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	}, logger.Nop())

	res, err := gw.Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.NoError(t, err, "el resultado de negocio se devuelve sin error de transporte")
	assert.False(t, res.Success)
	assert.Equal(t, "rechazado", res.Error)

	for i := 0; i < 2; i++ {
		_, _ = gw.Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	}
	assert.Equal(t, gobreaker.StateOpen, gw.State())
}

func TestBreaker_ExitoPasaTalCual(t *testing.T) {
	next := &countingGateway{result: ports.SendResult{Success: true}}
	gw := notification.NewBreakerGateway(next, notification.BreakerConfig{}, logger.Nop())

	res, err := gw.Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, gobreaker.StateClosed, gw.State())
}

func TestLogGateway_RespondeExito(t *testing.T) {
	res, err := notification.NewLogGateway(logger.Nop()).
		Send(context.Background(), "o-1", ports.TemplateOrderConfirmation, "a@b.co")
	require.NoError(t, err)
	assert.True(t, res.Success)
}
