package notification

import (
	"context"

	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/pkg/logger"
)

var _ ports.NotificationGateway = (*LogGateway)(nil)

// LogGateway adaptador sin servicio externo: registra el envío en el log y responde éxito.
// Se usa cuando NOTIFY_URL está vacío (desarrollo).
type LogGateway struct {
	log *logger.Logger
}

// NewLogGateway construye el adaptador.
func NewLogGateway(log *logger.Logger) *LogGateway {
	return &LogGateway{log: log.Component("notification")}
}

func (g *LogGateway) Send(ctx context.Context, orderUUID, templateType, recipient string) (ports.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.SendResult{}, err
	}
	g.log.Info().Str("order_uuid", orderUUID).Str("template", templateType).Str("recipient", recipient).
		Msg("notificación (solo log)")
	return ports.SendResult{Success: true}, nil
}
