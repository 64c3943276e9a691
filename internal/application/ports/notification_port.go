package ports

import "context"

// Plantillas conocidas por el gateway. El motor nunca inspecciona su contenido.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePurchaseOrder     = "purchase_order"
)

// SendResult respuesta del gateway de notificaciones.
type SendResult struct {
	Success bool
	Error   string
}

// NotificationGateway puerto de salida para el envío de emails (colaborador externo).
// El ctx debe llevar timeout; cualquier resultado sin Success se trata como fallo reintentable.
type NotificationGateway interface {
	Send(ctx context.Context, orderUUID, templateType, recipient string) (SendResult, error)
}
