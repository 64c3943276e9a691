package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/pkg/logger"
	"github.com/sony/gobreaker"
)

var _ ports.NotificationGateway = (*BreakerGateway)(nil)

// errNotSent un SendResult sin Success cuenta como fallo para el breaker.
var errNotSent = errors.New("notificación no enviada")

// BreakerConfig umbrales del circuit breaker del gateway.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // fallos consecutivos para abrir
	Cooldown         time.Duration // tiempo abierto antes de semiabierto
	MaxRequests      uint32        // llamadas de prueba en semiabierto
}

// BreakerGateway envuelve un gateway con gobreaker: con el circuito abierto falla de inmediato
// sin esperar al timeout del servicio caído.
type BreakerGateway struct {
	next ports.NotificationGateway
	cb   *gobreaker.CircuitBreaker
	log  *logger.Logger
}

// NewBreakerGateway construye el wrapper.
func NewBreakerGateway(next ports.NotificationGateway, cfg BreakerConfig, log *logger.Logger) *BreakerGateway {
	if cfg.Name == "" {
		cfg.Name = "notification-gateway"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	l := log.Component("notification_breaker")
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker cambió de estado")
		},
	}
	return &BreakerGateway{next: next, cb: gobreaker.NewCircuitBreaker(settings), log: l}
}

// Send delega en el gateway a través del breaker. Con el circuito abierto devuelve error sin llamar.
func (b *BreakerGateway) Send(ctx context.Context, orderUUID, templateType, recipient string) (ports.SendResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		res, err := b.next.Send(ctx, orderUUID, templateType, recipient)
		if err != nil {
			return res, err
		}
		if !res.Success {
			return res, fmt.Errorf("%w: %s", errNotSent, res.Error)
		}
		return res, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ports.SendResult{}, fmt.Errorf("notify: circuito abierto: %w", err)
	}
	if errors.Is(err, errNotSent) {
		// resultado de negocio: se devuelve tal cual, sin error de transporte
		res, _ := out.(ports.SendResult)
		return res, nil
	}
	if err != nil {
		return ports.SendResult{}, err
	}
	return out.(ports.SendResult), nil
}

// State estado actual del circuito.
func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
