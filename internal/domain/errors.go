package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrValidation entrada mal formada; se rechaza antes de cualquier escritura.
	ErrValidation = errors.New("entrada inválida")
	// ErrPreconditionFailed regla de negocio no cumplida (ej. pedido sin email de cliente).
	ErrPreconditionFailed = errors.New("precondición no cumplida")
	// ErrInvalidTransition el estado destino no es alcanzable desde el estado actual.
	ErrInvalidTransition = errors.New("transición de estado inválida")
	// ErrInsufficientStock el movimiento dejaría el saldo del producto en negativo.
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrConcurrentModification conflicto de concurrencia optimista; el cliente debe releer y reintentar.
	ErrConcurrentModification = errors.New("el recurso fue modificado concurrentemente")
	// ErrDownstreamUnavailable fallo o timeout del gateway de notificaciones; reintentable.
	ErrDownstreamUnavailable = errors.New("servicio externo no disponible")
	// ErrNoOp el comando no produce cambios (ej. ajuste al mismo saldo).
	ErrNoOp = errors.New("no hay cambios que aplicar")
)

// IsRetryable indica si el caller puede reintentar el comando con la misma clave de idempotencia.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrDownstreamUnavailable)
}
